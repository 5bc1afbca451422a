package httpapi

import (
	"errors"
	"net/http"

	"github.com/hackjutsu/mini-chatbot/internal/chat"

	"go.uber.org/zap"
)

type chatRequest struct {
	UserID    string `json:"userId" validate:"notblank"`
	SessionID string `json:"sessionId" validate:"notblank"`
	Content   string `json:"content" validate:"notblank"`
}

func (h Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	user, ok := h.loadUser(w, r, req.UserID)
	if !ok {
		return
	}
	session, ok := h.loadSession(w, r, req.SessionID, user)
	if !ok {
		return
	}

	sink := newNDJSONSink(w)
	if !sink.streaming {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", errStreamingUnsupported.Error())
		return
	}

	_, err := h.chat.HandleTurn(r.Context(), user, session, req.Content, sink)
	if errors.Is(err, chat.ErrEmptyContent) {
		writeError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}
	if err != nil {
		h.logger.Error("chat turn failed",
			zap.String("userId", user.ID),
			zap.String("sessionId", session.ID),
			zap.Error(err),
		)
		_ = sink.Fail("Unable to process chat message.")
	}
}
