package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"campusrag/internal/app"
	"campusrag/internal/model"
	"campusrag/internal/transport/http/middleware"
	"campusrag/internal/transport/http/response"
)

type ChatService interface {
	Stream(ctx context.Context, userID uint, question string, sink app.EventSink) (app.StreamState, error)
	Ask(ctx context.Context, userID uint, question string) (*app.AskResult, error)
	History(ctx context.Context, userID uint, limit int) ([]model.Message, error)
}

type ChatHandler struct {
	chatService ChatService
}

type ChatRequest struct {
	Message string `json:"message"`
}

func NewChatHandler(chatService ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Stream answers with server-sent events: content deltas, the cited sources,
// then [DONE], or a single error event.
func (h *ChatHandler) Stream(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "Message invalide")
		return
	}

	sink := newSSESink(c.Writer)
	state, err := h.chatService.Stream(c.Request.Context(), userID, req.Message, sink)
	if state == app.StreamIdle && err != nil {
		writeQuestionError(c, err)
		return
	}
	if !sink.started {
		// nothing was written, e.g. the client left before the first delta
		c.Status(http.StatusNoContent)
	}
}

func (h *ChatHandler) Ask(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "Message invalide")
		return
	}

	result, err := h.chatService.Ask(c.Request.Context(), userID, req.Message)
	if err != nil {
		writeQuestionError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	limit := app.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	history, err := h.chatService.History(c.Request.Context(), userID, limit)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "Erreur lors de la récupération de l'historique")
		}
		return
	}

	response.OK(c, history)
}

func writeQuestionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrMessageEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeMessageEmpty, "Message invalide")
	case errors.Is(err, app.ErrMessageTooLong):
		response.Error(c, http.StatusBadRequest, response.CodeMessageTooLong, "Message too long")
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "Message invalide")
	case errors.Is(err, app.ErrRetrieval), errors.Is(err, app.ErrGeneration):
		response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, "Service temporairement indisponible")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "Erreur interne du serveur")
	}
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok && userID != 0
}
