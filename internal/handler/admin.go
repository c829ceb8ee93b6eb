package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/portfolio-ai/concierge/internal/middleware"
	"github.com/portfolio-ai/concierge/internal/service"
	"github.com/portfolio-ai/concierge/internal/tracker"
	"github.com/portfolio-ai/concierge/pkg/logger"
)

// AdminHandler handles knowledge-base and triage endpoints.
type AdminHandler struct {
	service *service.AdminService
	logger  *logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(svc *service.AdminService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		service: svc,
		logger:  log,
	}
}

// Routes mounts the admin endpoints on r.
func (h *AdminHandler) Routes(r chi.Router) {
	r.Route("/unanswered-questions", func(r chi.Router) {
		r.Get("/", h.ListUnanswered)
		r.Post("/{id}/answer", h.Answer)
		r.Post("/{id}/ignore", h.Ignore)
	})
	r.Get("/recent-questions", h.RecentQuestions)
	r.Get("/question-stats", h.Stats)
	r.Route("/knowledge-base", func(r chi.Router) {
		r.Get("/", h.Passages)
		r.Get("/validate", h.Validate)
		r.Post("/answers", h.AddAnswer)
	})
}

// ListUnanswered handles GET /api/admin/unanswered-questions
func (h *AdminHandler) ListUnanswered(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	questions, err := h.service.ListUnanswered(r.Context(), all)
	if err != nil {
		h.fail(w, "failed to list unanswered questions", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"questions": questions,
		"total":     len(questions),
	})
}

type answerRequest struct {
	Answer             string `json:"answer"`
	AddToKnowledgeBase bool   `json:"add_to_knowledge_base"`
}

// Answer handles POST /api/admin/unanswered-questions/{id}/answer
func (h *AdminHandler) Answer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateAnswer(req.Answer); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.MarkAnswered(r.Context(), id, req.Answer, req.AddToKnowledgeBase)
	if err != nil {
		h.fail(w, "failed to answer question", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Ignore handles POST /api/admin/unanswered-questions/{id}/ignore
func (h *AdminHandler) Ignore(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.MarkIgnored(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "failed to ignore question", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"question": q})
}

// RecentQuestions handles GET /api/admin/recent-questions
func (h *AdminHandler) RecentQuestions(w http.ResponseWriter, r *http.Request) {
	limit := tracker.DefaultRecentLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	entries, err := h.service.RecentQuestions(r.Context(), limit)
	if err != nil {
		h.fail(w, "failed to read question log", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"questions": entries,
		"total":     len(entries),
	})
}

// Stats handles GET /api/admin/question-stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, "failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Passages handles GET /api/admin/knowledge-base
func (h *AdminHandler) Passages(w http.ResponseWriter, r *http.Request) {
	passages := h.service.Passages(r.Context(), r.URL.Query().Get("search"))
	writeJSON(w, http.StatusOK, map[string]any{
		"passages": passages,
		"total":    len(passages),
	})
}

// Validate handles GET /api/admin/knowledge-base/validate
func (h *AdminHandler) Validate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Validate(r.Context()))
}

type addAnswerRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AddAnswer handles POST /api/admin/knowledge-base/answers
func (h *AdminHandler) AddAnswer(w http.ResponseWriter, r *http.Request) {
	var req addAnswerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateAnswer(req.Answer); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	added, err := h.service.RecordAdminAnswer(r.Context(), req.Question, req.Answer)
	if err != nil {
		h.fail(w, "failed to add answer", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int{"chunks_added": added})
}

func (h *AdminHandler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(w, err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err))
		writeError(w, status, message)
		return
	}
	writeError(w, status, err.Error())
}
