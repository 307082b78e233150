package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/audit"
	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/logging"
	"github.com/plumelab/plume-engine/pkg/models"
	"github.com/plumelab/plume-engine/pkg/services"
)

// CreateSessionRequest represents the request body for session creation.
// An empty title gets the default French one.
type CreateSessionRequest struct {
	Title string `json:"title"`
}

// SendChatMessageRequest represents the request body for a chat turn.
// module_type is optional; absent, the dispatcher classifies the message.
type SendChatMessageRequest struct {
	Content    string `json:"content"`
	ModuleType string `json:"module_type,omitempty"`
	Context    string `json:"context,omitempty"`
	Style      string `json:"style,omitempty"`
}

// SessionDetailResponse carries a session with its full transcript.
type SessionDetailResponse struct {
	Session  *models.ChatSession `json:"session"`
	Messages []*models.Message   `json:"messages"`
}

// StreamFrame is one SSE message frame. Concatenating the chunk frames'
// content reproduces the reply; accumulated carries the prefix emitted so
// far and progress its percentage of the full reply.
type StreamFrame struct {
	Type        string `json:"type"`
	Content     string `json:"content"`
	Accumulated string `json:"accumulated"`
	Done        bool   `json:"done"`
	Progress    int    `json:"progress"`
}

// ChatHandler handles chat session and message HTTP requests, including the
// SSE streaming variant of message sending.
type ChatHandler struct {
	sessions services.SessionService
	chat     services.ChatService
	auditor  *audit.SecurityAuditor
	logger   *zap.Logger
}

// NewChatHandler creates a new chat handler. auditor may be nil to disable
// security audit events.
func NewChatHandler(sessions services.SessionService, chat services.ChatService, auditor *audit.SecurityAuditor, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		sessions: sessions,
		chat:     chat,
		auditor:  auditor,
		logger:   logger,
	}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
// Everything is owner-scoped except the shared transcript, which resolves by
// its capability token alone.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	sessionBase := "/api/chat/sessions"

	mux.HandleFunc("POST "+sessionBase, authMiddleware.RequireAuth(h.CreateSession))
	mux.HandleFunc("GET "+sessionBase, authMiddleware.RequireAuth(h.ListSessions))
	mux.HandleFunc("GET "+sessionBase+"/{id}", authMiddleware.RequireAuth(h.GetSession))
	mux.HandleFunc("DELETE "+sessionBase+"/{id}", authMiddleware.RequireAuth(h.DeleteSession))
	mux.HandleFunc("POST "+sessionBase+"/{id}/messages", authMiddleware.RequireAuth(h.SendMessage))
	mux.HandleFunc("POST "+sessionBase+"/{id}/share", authMiddleware.RequireAuth(h.Share))
	mux.HandleFunc("DELETE "+sessionBase+"/{id}/share", authMiddleware.RequireAuth(h.Unshare))
	mux.HandleFunc("GET "+sessionBase+"/{id}/export", authMiddleware.RequireAuth(h.Export))

	mux.HandleFunc("GET /api/chat/shared/{token}", h.Shared)
}

// CreateSession handles POST /api/chat/sessions.
func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		if err := ErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	session, err := h.sessions.Create(r.Context(), userID, req.Title)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: session}); err != nil {
		h.logger.Error("Failed to encode session response", zap.Error(err))
	}
}

// ListSessions handles GET /api/chat/sessions.
func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	sessions, err := h.sessions.List(r.Context(), userID)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: sessions}); err != nil {
		h.logger.Error("Failed to encode sessions response", zap.Error(err))
	}
}

// GetSession handles GET /api/chat/sessions/{id}.
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	session, messages, err := h.sessions.Get(r.Context(), userID, sessionID)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	response := SessionDetailResponse{Session: session, Messages: messages}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to encode session response", zap.Error(err))
	}
}

// DeleteSession handles DELETE /api/chat/sessions/{id}.
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.sessions.Delete(r.Context(), userID, sessionID); err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true}); err != nil {
		h.logger.Error("Failed to encode delete response", zap.Error(err))
	}
}

// SendMessage handles POST /api/chat/sessions/{id}/messages.
// Returns the persisted exchange as JSON, or streams it as SSE when the
// caller asks with ?stream=true or an Accept: text/event-stream header.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	var req SendChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		if err := ErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if h.auditor != nil {
		h.auditor.ScreenUserText(r.Context(), "message", req.Content, clientIP(r))
	}

	chatReq := &services.ChatRequest{
		SessionID:  sessionID,
		UserID:     userID,
		Content:    req.Content,
		ModuleType: req.ModuleType,
		Context:    req.Context,
		Style:      req.Style,
	}

	if wantsStream(r) {
		h.streamTurn(w, r, chatReq)
		return
	}

	result, err := h.chat.SendMessage(r.Context(), chatReq)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to encode chat response", zap.Error(err))
	}
}

// Share handles POST /api/chat/sessions/{id}/share.
// Returns the session carrying its share token. Re-sharing keeps the token.
func (h *ChatHandler) Share(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	session, err := h.sessions.Share(r.Context(), userID, sessionID)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: session}); err != nil {
		h.logger.Error("Failed to encode share response", zap.Error(err))
	}
}

// Unshare handles DELETE /api/chat/sessions/{id}/share.
// Revokes the share token; the old link stops resolving immediately.
func (h *ChatHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.sessions.Unshare(r.Context(), userID, sessionID); err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true}); err != nil {
		h.logger.Error("Failed to encode unshare response", zap.Error(err))
	}
}

// Shared handles GET /api/chat/shared/{token}.
// Read-only transcript access by capability token, no account needed.
func (h *ChatHandler) Shared(w http.ResponseWriter, r *http.Request) {
	token, ok := ParseShareToken(w, r, h.logger)
	if !ok {
		return
	}

	session, messages, err := h.sessions.Shared(r.Context(), token)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	response := SessionDetailResponse{Session: session, Messages: messages}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to encode shared response", zap.Error(err))
	}
}

// Export handles GET /api/chat/sessions/{id}/export.
// Streams the transcript as a Markdown download.
func (h *ChatHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	markdown, err := h.sessions.ExportMarkdown(r.Context(), userID, sessionID)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"session-%d.md\"", sessionID))
	if _, err := w.Write([]byte(markdown)); err != nil {
		h.logger.Debug("Export write failed", zap.Error(err))
	}
}

// streamTurn runs the chat turn and streams the persisted reply as SSE.
// The full result is computed first, so the cached and streamed paths return
// identical content; frames then go out at word boundaries.
func (h *ChatHandler) streamTurn(w http.ResponseWriter, r *http.Request, req *services.ChatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("SSE not supported by response writer")
		if err := ErrorResponse(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Streaming is not supported"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	correlationID := logging.CorrelationID(r.Context())
	h.writeEvent(w, flusher, "start", map[string]any{
		"session_id":     req.SessionID,
		"correlation_id": correlationID,
	})

	result, err := h.chat.SendMessage(r.Context(), req)
	if err != nil {
		_, code, message := classifyServiceError(err)
		h.writeEvent(w, flusher, "error", map[string]string{
			"error_code":     code,
			"message":        message,
			"correlation_id": correlationID,
		})
		h.writeEvent(w, flusher, "end", struct{}{})
		return
	}

	content := result.AssistantMessage.Content
	sent := 0
	for _, chunk := range services.ChunkContent(content) {
		// Client gone: stop at the chunk boundary. The turn is already
		// persisted in full, so nothing partial survives.
		if r.Context().Err() != nil {
			return
		}
		sent += len(chunk)
		progress := 100
		if len(content) > 0 {
			progress = sent * 100 / len(content)
		}
		h.writeEvent(w, flusher, "message", StreamFrame{
			Type:        "chunk",
			Content:     chunk,
			Accumulated: content[:sent],
			Done:        false,
			Progress:    progress,
		})
	}

	h.writeEvent(w, flusher, "message", StreamFrame{
		Type:        "done",
		Accumulated: content,
		Done:        true,
		Progress:    100,
	})
	h.writeEvent(w, flusher, "end", struct{}{})
}

// writeEvent emits one named SSE event with a JSON payload.
func (h *ChatHandler) writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal stream event", zap.Error(err))
		return
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		h.logger.Debug("Stream write failed", zap.Error(err))
		return
	}
	flusher.Flush()
}

// wantsStream reports whether the request asked for the SSE variant.
func wantsStream(r *http.Request) bool {
	if r.URL.Query().Get("stream") == "true" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}
