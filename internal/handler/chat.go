// Package handler provides HTTP handlers for the concierge API.
package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/portfolio-ai/concierge/internal/middleware"
	"github.com/portfolio-ai/concierge/internal/model"
	"github.com/portfolio-ai/concierge/internal/service"
	"github.com/portfolio-ai/concierge/pkg/logger"
)

// ChatHandler handles the public chat endpoint.
type ChatHandler struct {
	service *service.ChatService
	logger  *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  log,
	}
}

// Chat handles POST /api/chat. Every answer, including failures, carries a
// reply the widget can display.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ChatResponse{Reply: model.ReplyInvalidInput})
		return
	}
	if err := middleware.ValidateChatMessage(req.Message); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ChatResponse{Reply: model.ReplyInvalidInput, ConversationID: req.ConversationID})
		return
	}
	if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ChatResponse{Reply: model.ReplyInvalidInput})
		return
	}

	req.ClientKey = middleware.ClientIP(r)
	req.CorrelationID = middleware.GetCorrelationID(ctx)

	resp, err := h.service.Chat(ctx, req)
	if err != nil {
		status := statusFor(w, err)
		if status >= http.StatusInternalServerError {
			h.logger.Warn("chat failed",
				zap.String("correlation_id", req.CorrelationID),
				zap.String("conversation_id", resp.ConversationID),
				zap.Error(err),
			)
		}
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
