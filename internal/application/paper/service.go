package paper

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/paperhub-api/internal/domain"
)

const (
	// maxDocumentSize is the per-document upload ceiling in bytes.
	maxDocumentSize = 5_000_000
	pdfContentType  = "application/pdf"

	questionKeyPrefix = "question_papers"
	solutionKeyPrefix = "solutions"
)

// Document is an uploaded file as received at the transport boundary.
type Document struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
}

// ReadResult pairs a paper with the requester's bookmark state.
type ReadResult struct {
	Paper      *domain.Paper `json:"paper"`
	Bookmarked bool          `json:"is_bookmarked"`
}

type Service interface {
	Create(ctx context.Context, ownerID int64, req domain.CreatePaperRequest, question Document, solution *Document) (*domain.Paper, error)
	Read(ctx context.Context, paperID int64, user *domain.User) (*ReadResult, error)
	List(ctx context.Context, filter domain.PaperFilter) ([]domain.Paper, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Paper, error)
	Update(ctx context.Context, userID, paperID int64, req domain.UpdatePaperRequest, question, solution *Document) (*domain.Paper, error)
	Delete(ctx context.Context, userID, paperID int64) error
	ToggleBookmark(ctx context.Context, userID, paperID int64) (bool, error)
	ListBookmarks(ctx context.Context, userID int64) ([]domain.Paper, error)
}

type paperStore interface {
	Create(ctx context.Context, p *domain.Paper) error
	Get(ctx context.Context, paperID int64) (*domain.Paper, error)
	List(ctx context.Context, f domain.PaperFilter) ([]domain.Paper, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Paper, error)
	Update(ctx context.Context, paperID int64, updates map[string]any) error
	DeleteWithBookmarks(ctx context.Context, paperID int64) error
}

type bookmarkStore interface {
	Get(ctx context.Context, userID, paperID int64) (*domain.Bookmark, error)
	Create(ctx context.Context, b *domain.Bookmark) error
	Delete(ctx context.Context, userID, paperID int64) error
	ListPapers(ctx context.Context, userID int64) ([]domain.Paper, error)
}

type objectStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, uri string) error
}

type service struct {
	papers    paperStore
	bookmarks bookmarkStore
	objects   objectStore
}

type ServiceDeps struct {
	PaperRepo    paperStore
	BookmarkRepo bookmarkStore
	ObjectStore  objectStore
}

func NewService(deps ServiceDeps) Service {
	return &service{
		papers:    deps.PaperRepo,
		bookmarks: deps.BookmarkRepo,
		objects:   deps.ObjectStore,
	}
}

// validateDocument enforces the PDF-only and size-ceiling rules before
// anything touches storage.
func validateDocument(d Document) error {
	if d.ContentType != pdfContentType {
		return fmt.Errorf("only PDF files are allowed: %w", domain.ErrBadRequest)
	}
	if d.Size > maxDocumentSize {
		return fmt.Errorf("file size should not exceed 5MB: %w", domain.ErrBadRequest)
	}
	return nil
}

// objectKey namespaces uploads by creation time. The ULID prefix is
// time-ordered and collision-free even for same-second uploads.
func objectKey(prefix, filename string) string {
	return fmt.Sprintf("%s/%s_%s", prefix, ulid.MustNew(ulid.Now(), rand.Reader).String(), sanitizeFilename(filename))
}

// sanitizeFilename strips directory components and keeps only safe characters
// (alphanumeric, dot, dash, underscore) to prevent path traversal in S3 keys.
func sanitizeFilename(name string) string {
	name = path.Base(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." {
		return result
	}
	return "_"
}

// deleteObject is best-effort cleanup; failures are logged, never fatal.
func (s *service) deleteObject(ctx context.Context, uri string) {
	if err := s.objects.Delete(ctx, uri); err != nil {
		slog.Warn("failed to delete stored document", "uri", uri, "err", err)
	}
}

// Create validates both documents up front, uploads them, and persists
// the row. An object-store failure aborts the whole operation; a row
// failure rolls the uploads back best-effort so no orphaned objects
// accumulate.
func (s *service) Create(ctx context.Context, ownerID int64, req domain.CreatePaperRequest, question Document, solution *Document) (*domain.Paper, error) {
	if err := validateDocument(question); err != nil {
		return nil, err
	}
	if solution != nil {
		if err := validateDocument(*solution); err != nil {
			return nil, err
		}
	}

	questionURI, err := s.objects.Put(ctx, objectKey(questionKeyPrefix, question.Filename), question.Reader, question.ContentType)
	if err != nil {
		slog.Error("question document upload failed", "err", err)
		return nil, fmt.Errorf("error uploading document: %w", domain.ErrDependency)
	}
	var solutionURI *string
	if solution != nil {
		uri, err := s.objects.Put(ctx, objectKey(solutionKeyPrefix, solution.Filename), solution.Reader, solution.ContentType)
		if err != nil {
			slog.Error("solution document upload failed", "err", err)
			s.deleteObject(ctx, questionURI)
			return nil, fmt.Errorf("error uploading document: %w", domain.ErrDependency)
		}
		solutionURI = &uri
	}

	p := &domain.Paper{
		Name:        req.Name,
		Description: req.Description,
		Term:        req.Term,
		Semester:    req.Semester,
		Date:        req.Date,
		Professor:   req.Professor,
		Department:  req.Department,
		QuestionURI: questionURI,
		SolutionURI: solutionURI,
		OwnerID:     ownerID,
	}
	if err := s.papers.Create(ctx, p); err != nil {
		s.deleteObject(ctx, questionURI)
		if solutionURI != nil {
			s.deleteObject(ctx, *solutionURI)
		}
		return nil, err
	}
	return p, nil
}

// Read returns the paper and whether the requesting user has it
// bookmarked. Unauthenticated reads always report false.
func (s *service) Read(ctx context.Context, paperID int64, user *domain.User) (*ReadResult, error) {
	p, err := s.papers.Get(ctx, paperID)
	if err != nil {
		return nil, err
	}
	bookmarked := false
	if user != nil {
		if _, err := s.bookmarks.Get(ctx, user.ID, paperID); err == nil {
			bookmarked = true
		}
	}
	return &ReadResult{Paper: p, Bookmarked: bookmarked}, nil
}

func (s *service) List(ctx context.Context, filter domain.PaperFilter) ([]domain.Paper, error) {
	return s.papers.List(ctx, filter)
}

func (s *service) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Paper, error) {
	return s.papers.ListByOwner(ctx, ownerID)
}

// Update applies a partial metadata update and optional document
// replacements. Ownership is required; superseded documents are removed
// from the object store best-effort once the row update succeeds.
func (s *service) Update(ctx context.Context, userID, paperID int64, req domain.UpdatePaperRequest, question, solution *Document) (*domain.Paper, error) {
	p, err := s.papers.Get(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if !p.OwnedBy(userID) {
		return nil, fmt.Errorf("you are not authorized to edit this paper: %w", domain.ErrForbidden)
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Term != nil {
		updates["term"] = *req.Term
	}
	if req.Semester != nil {
		updates["semester"] = *req.Semester
	}
	if req.Date != nil {
		updates["exam_date"] = *req.Date
	}
	if req.Professor != nil {
		updates["professor"] = *req.Professor
	}
	if req.Department != nil {
		updates["department"] = *req.Department
	}

	var superseded []string
	if question != nil {
		if err := validateDocument(*question); err != nil {
			return nil, err
		}
		uri, err := s.objects.Put(ctx, objectKey(questionKeyPrefix, question.Filename), question.Reader, question.ContentType)
		if err != nil {
			slog.Error("question document upload failed", "paper_id", paperID, "err", err)
			return nil, fmt.Errorf("error uploading document: %w", domain.ErrDependency)
		}
		updates["question_uri"] = uri
		superseded = append(superseded, p.QuestionURI)
	}
	if solution != nil {
		if err := validateDocument(*solution); err != nil {
			return nil, err
		}
		uri, err := s.objects.Put(ctx, objectKey(solutionKeyPrefix, solution.Filename), solution.Reader, solution.ContentType)
		if err != nil {
			slog.Error("solution document upload failed", "paper_id", paperID, "err", err)
			return nil, fmt.Errorf("error uploading document: %w", domain.ErrDependency)
		}
		updates["solution_uri"] = uri
		if p.SolutionURI != nil {
			superseded = append(superseded, *p.SolutionURI)
		}
	}

	// The row is written even when updates is empty so updated_at is
	// refreshed on every successful call.
	if err := s.papers.Update(ctx, paperID, updates); err != nil {
		return nil, err
	}
	for _, uri := range superseded {
		s.deleteObject(ctx, uri)
	}
	return s.papers.Get(ctx, paperID)
}

// Delete removes the paper and its bookmarks atomically, then cleans
// both backing documents best-effort.
func (s *service) Delete(ctx context.Context, userID, paperID int64) error {
	p, err := s.papers.Get(ctx, paperID)
	if err != nil {
		return err
	}
	if !p.OwnedBy(userID) {
		return fmt.Errorf("you are not authorized to delete this paper: %w", domain.ErrForbidden)
	}
	if err := s.papers.DeleteWithBookmarks(ctx, paperID); err != nil {
		return err
	}
	s.deleteObject(ctx, p.QuestionURI)
	if p.SolutionURI != nil {
		s.deleteObject(ctx, *p.SolutionURI)
	}
	return nil
}

// ToggleBookmark flips the (user, paper) bookmark and returns the
// resulting state: true when the paper is now bookmarked.
func (s *service) ToggleBookmark(ctx context.Context, userID, paperID int64) (bool, error) {
	if _, err := s.papers.Get(ctx, paperID); err != nil {
		return false, err
	}
	if _, err := s.bookmarks.Get(ctx, userID, paperID); err == nil {
		if err := s.bookmarks.Delete(ctx, userID, paperID); err != nil {
			return false, err
		}
		return false, nil
	}
	b := &domain.Bookmark{PaperID: paperID, UserID: userID}
	if err := s.bookmarks.Create(ctx, b); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) ListBookmarks(ctx context.Context, userID int64) ([]domain.Paper, error) {
	return s.bookmarks.ListPapers(ctx, userID)
}
