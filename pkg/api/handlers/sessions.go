package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/PantaKoda/shiftsnap/internal/logger"
	"github.com/PantaKoda/shiftsnap/pkg/capture"
)

// SessionHandler serves the read-only session inspection endpoints. These
// exist for operators debugging a stuck capture flow; there is no write
// surface here.
type SessionHandler struct {
	sessions capture.SessionRepository
	images   capture.ImageRepository
}

// NewSessionHandler creates a session inspection handler.
func NewSessionHandler(sessions capture.SessionRepository, images capture.ImageRepository) *SessionHandler {
	return &SessionHandler{sessions: sessions, images: images}
}

type sessionResponse struct {
	ID         uuid.UUID     `json:"id"`
	UserID     int64         `json:"user_id"`
	State      capture.State `json:"state"`
	CreatedAt  time.Time     `json:"created_at"`
	ClosedAt   *time.Time    `json:"closed_at,omitempty"`
	Error      *string       `json:"error,omitempty"`
	ImageCount int           `json:"image_count"`
}

type imageResponse struct {
	ID                uuid.UUID `json:"id"`
	Sequence          int       `json:"sequence"`
	ObjectKey         string    `json:"object_key"`
	ExternalMessageID *int64    `json:"external_message_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Get handles GET /api/v1/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "get session", err)
		return
	}

	count, err := h.images.CountBySession(r.Context(), id)
	if err != nil {
		h.writeError(w, "count images", err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse(sessionResponse{
		ID:         session.ID,
		UserID:     session.UserID,
		State:      session.State,
		CreatedAt:  session.CreatedAt,
		ClosedAt:   session.ClosedAt,
		Error:      session.Error,
		ImageCount: count,
	}))
}

// ListImages handles GET /api/v1/sessions/{id}/images.
func (h *SessionHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	// Resolve the session first so a missing id is a 404, not an empty list.
	if _, err := h.sessions.GetByID(r.Context(), id); err != nil {
		h.writeError(w, "get session", err)
		return
	}

	images, err := h.images.ListBySession(r.Context(), id)
	if err != nil {
		h.writeError(w, "list images", err)
		return
	}

	out := make([]imageResponse, 0, len(images))
	for _, img := range images {
		out = append(out, imageResponse{
			ID:                img.ID,
			Sequence:          img.Sequence,
			ObjectKey:         img.ObjectKey,
			ExternalMessageID: img.ExternalMessageID,
			CreatedAt:         img.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, okResponse(out))
}

func (h *SessionHandler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid session id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *SessionHandler) writeError(w http.ResponseWriter, op string, err error) {
	switch capture.KindOf(err) {
	case capture.KindNotFound:
		writeJSON(w, http.StatusNotFound, errorResponse("session not found"))
	case capture.KindCancelled:
		writeJSON(w, http.StatusServiceUnavailable, errorResponse("request cancelled"))
	default:
		logger.Error("Session inspection failed", "op", op, logger.KeyError, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal error"))
	}
}
