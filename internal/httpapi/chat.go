package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/elacava/principia/internal/chat"
)

// The original front-end sends the account name as `userId`; `username` is
// accepted as an alias.
type chatRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

func (r chatRequest) user() string {
	if u := strings.TrimSpace(r.UserID); u != "" {
		return u
	}
	return strings.TrimSpace(r.Username)
}

type userRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (r userRequest) user() string {
	if u := strings.TrimSpace(r.UserID); u != "" {
		return u
	}
	return strings.TrimSpace(r.Username)
}

// handleChat streams the assistant reply as chunked text/plain. The status
// code is committed on the first delta, so every fatal condition must be
// detected before generation starts.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	username := req.user()
	if username == "" || strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "userId and message are required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	streaming := false
	err := s.orchestrator.HandleTurn(r.Context(), username, req.Message, func(delta string) error {
		if !streaming {
			streaming = true
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
		}
		if _, err := w.Write([]byte(delta)); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if streaming {
			// Too late for a status code; the stream just ends short.
			s.logger.Warn("turn failed mid-stream", "username", username, "error", err)
			return
		}
		s.respondTurnError(w, username, err)
		return
	}
	if !streaming {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) respondTurnError(w http.ResponseWriter, username string, err error) {
	switch {
	case errors.Is(err, chat.ErrUnknownUser):
		respondError(w, http.StatusUnauthorized, "unknown_user", "no such user")
	case errors.Is(err, chat.ErrPromptTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, "prompt_too_large", "message does not fit the prompt budget")
	case errors.Is(err, chat.ErrHistoryUnavailable):
		respondError(w, http.StatusServiceUnavailable, "history_unavailable", "conversation history is unavailable")
	default:
		s.logger.Error("turn failed", "username", username, "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "turn failed")
	}
}

func (s *Server) handleGreet(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	greeting, err := s.orchestrator.Greet(r.Context(), req.user())
	if err != nil {
		if errors.Is(err, chat.ErrUnknownUser) {
			respondError(w, http.StatusUnauthorized, "unknown_user", "no such user")
			return
		}
		s.logger.Error("greet failed", "username", req.user(), "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "greeting failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"greeting": greeting})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	username := req.user()
	if username == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "userId is required")
		return
	}

	if err := s.orchestrator.Clear(r.Context(), username); err != nil {
		s.logger.Error("history clear failed", "username", username, "error", err)
		respondError(w, http.StatusServiceUnavailable, "history_unavailable", "conversation history is unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Websocket chat events. One request per turn; the connection stays open
// for further turns. The user is normally bound at connect time via the
// user_id query parameter; a turn may override it.
type wsTurnRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

func (r wsTurnRequest) user() string {
	if u := strings.TrimSpace(r.UserID); u != "" {
		return u
	}
	return strings.TrimSpace(r.Username)
}

type wsEvent struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	connUser := strings.TrimSpace(r.URL.Query().Get("user_id"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 20)

	for {
		var req wsTurnRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		username := req.user()
		if username == "" {
			username = connUser
		}
		if username == "" || strings.TrimSpace(req.Message) == "" {
			if err := s.writeWSEvent(conn, wsEvent{Type: "error", Code: "invalid_request", Detail: "user_id and message are required"}); err != nil {
				return
			}
			continue
		}

		turnErr := s.orchestrator.HandleTurn(r.Context(), username, req.Message, func(delta string) error {
			return s.writeWSEvent(conn, wsEvent{Type: "delta", Text: delta})
		})
		if turnErr != nil {
			code := "internal"
			switch {
			case errors.Is(turnErr, chat.ErrUnknownUser):
				code = "unknown_user"
			case errors.Is(turnErr, chat.ErrPromptTooLarge):
				code = "prompt_too_large"
			case errors.Is(turnErr, chat.ErrHistoryUnavailable):
				code = "history_unavailable"
			default:
				s.logger.Error("ws turn failed", "username", username, "error", turnErr)
			}
			if err := s.writeWSEvent(conn, wsEvent{Type: "error", Code: code}); err != nil {
				return
			}
			continue
		}
		if err := s.writeWSEvent(conn, wsEvent{Type: "done"}); err != nil {
			return
		}
	}
}

func (s *Server) writeWSEvent(conn *websocket.Conn, ev wsEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(ev)
}
