package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	paperapp "github.com/paperhub-api/internal/application/paper"
	"github.com/paperhub-api/internal/domain"
	"github.com/paperhub-api/internal/pkg/validate"
	"github.com/paperhub-api/internal/transport/http/middleware"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing.
const maxUploadMemory = 32 << 20

// PaperHandler handles paper and bookmark endpoints.
type PaperHandler struct {
	svc paperapp.Service
}

func NewPaperHandler(svc paperapp.Service) *PaperHandler { return &PaperHandler{svc: svc} }

// formDocument pulls a named file out of the parsed multipart form.
// Returns nil when the field is absent.
func formDocument(r *http.Request, field string) (*paperapp.Document, func(), error) {
	f, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, func() {}, nil
		}
		return nil, func() {}, err
	}
	doc := &paperapp.Document{
		Reader:      f,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}
	return doc, func() { _ = f.Close() }, nil
}

func paperID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *PaperHandler) Upload(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	req := domain.CreatePaperRequest{
		Name:        r.FormValue("examName"),
		Description: r.FormValue("examDescription"),
		Term:        r.FormValue("examTerm"),
		Semester:    r.FormValue("examSemester"),
		Date:        r.FormValue("examDate"),
		Professor:   r.FormValue("examProfessor"),
		Department:  r.FormValue("department"),
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	question, closeQuestion, err := formDocument(r, "examPdf")
	if err != nil || question == nil {
		writeError(w, http.StatusBadRequest, "examPdf file is required")
		return
	}
	defer closeQuestion()
	solution, closeSolution, err := formDocument(r, "examSolution")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid examSolution file")
		return
	}
	defer closeSolution()

	p, err := h.svc.Create(r.Context(), u.ID, req, *question, solution)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PaperHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	papers, err := h.svc.List(r.Context(), domain.PaperFilter{
		Department: q.Get("department"),
		Term:       q.Get("examTerm"),
		Semester:   q.Get("examSemester"),
		Search:     q.Get("search"),
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, papers)
}

func (h *PaperHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := paperID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid paper id")
		return
	}
	// Identity is optional here; anonymous reads report bookmarked=false.
	u, _ := middleware.UserFromContext(r.Context())
	result, err := h.svc.Read(r.Context(), id, u)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PaperHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	papers, err := h.svc.ListByOwner(r.Context(), u.ID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, papers)
}

func (h *PaperHandler) ToggleBookmark(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := paperID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid paper id")
		return
	}
	bookmarked, err := h.svc.ToggleBookmark(r.Context(), u.ID, id)
	if err != nil {
		httpError(w, err)
		return
	}
	if bookmarked {
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Bookmark added"})
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Bookmark removed"})
}

func (h *PaperHandler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	papers, err := h.svc.ListBookmarks(r.Context(), u.ID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, papers)
}

func (h *PaperHandler) Edit(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := paperID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid paper id")
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	var req domain.UpdatePaperRequest
	set := func(field string) *string {
		if v := r.FormValue(field); v != "" {
			return &v
		}
		return nil
	}
	req.Name = set("examName")
	req.Description = set("examDescription")
	req.Term = set("examTerm")
	req.Semester = set("examSemester")
	req.Date = set("examDate")
	req.Professor = set("examProfessor")
	req.Department = set("department")

	question, closeQuestion, err := formDocument(r, "examPdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid examPdf file")
		return
	}
	defer closeQuestion()
	solution, closeSolution, err := formDocument(r, "examSolution")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid examSolution file")
		return
	}
	defer closeSolution()

	p, err := h.svc.Update(r.Context(), u.ID, id, req, question, solution)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PaperHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := paperID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid paper id")
		return
	}
	if err := h.svc.Delete(r.Context(), u.ID, id); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Paper deleted successfully"})
}
