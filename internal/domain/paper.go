package domain

import "time"

type Paper struct {
	ID          int64     `json:"id"`
	Name        string    `json:"examName"`
	Description string    `json:"examDescription"`
	Term        string    `json:"examTerm"`
	Semester    string    `json:"examSemester"`
	Date        string    `json:"examDate"`
	Professor   string    `json:"examProfessor"`
	Department  string    `json:"department"`
	QuestionURI string    `json:"examPdf"`
	SolutionURI *string   `json:"examSolution"`
	OwnerID     int64     `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OwnedBy reports whether the paper belongs to the given user.
// Mutation and deletion are permitted only for the owner.
func (p *Paper) OwnedBy(userID int64) bool {
	return p.OwnerID == userID
}

type Bookmark struct {
	ID        int64     `json:"id"`
	PaperID   int64     `json:"paper_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"createdAt"`
}

// PaperFilter narrows List queries. Equality filters are ANDed;
// Search matches case-insensitively against name, description and
// professor, ORed across the three fields.
type PaperFilter struct {
	Department string
	Term       string
	Semester   string
	Search     string
}

type CreatePaperRequest struct {
	Name        string `validate:"required"`
	Description string `validate:"required"`
	Term        string `validate:"required"`
	Semester    string `validate:"required"`
	Date        string `validate:"required"`
	Professor   string `validate:"required"`
	Department  string `validate:"required"`
}

// UpdatePaperRequest carries a partial metadata update. Nil fields are
// left untouched by Update.
type UpdatePaperRequest struct {
	Name        *string
	Description *string
	Term        *string
	Semester    *string
	Date        *string
	Professor   *string
	Department  *string
}
