package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/elacava/principia/internal/accounts"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authResponse is the body the original front-end consumes for both
// register and login.
type authResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, authResponse{Success: false, Message: "invalid request body"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respondJSON(w, http.StatusBadRequest, authResponse{Success: false, Message: "username and password are required"})
		return
	}

	if err := s.accounts.Register(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, accounts.ErrUserExists) {
			respondJSON(w, http.StatusConflict, authResponse{Success: false, Message: "Username already exists"})
			return
		}
		s.logger.Error("register failed", "username", req.Username, "error", err)
		respondJSON(w, http.StatusInternalServerError, authResponse{Success: false, Message: "registration failed"})
		return
	}
	respondJSON(w, http.StatusCreated, authResponse{Success: true, Message: "Account created"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, authResponse{Success: false, Message: "invalid request body"})
		return
	}

	ok, err := s.accounts.Authenticate(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		s.logger.Error("login failed", "username", req.Username, "error", err)
		respondJSON(w, http.StatusInternalServerError, authResponse{Success: false, Message: "login failed"})
		return
	}
	if !ok {
		// Unknown user and wrong password are indistinguishable on purpose.
		respondJSON(w, http.StatusUnauthorized, authResponse{Success: false, Message: "Invalid credentials"})
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Success: true, Message: "Login successful"})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.accounts.List(r.Context())
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "listing failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(chi.URLParam(r, "username"))
	if username == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "missing username")
		return
	}

	if err := s.accounts.Delete(r.Context(), username); err != nil {
		if errors.Is(err, accounts.ErrUnknownUser) {
			respondError(w, http.StatusNotFound, "unknown_user", "no such user")
			return
		}
		s.logger.Error("delete user failed", "username", username, "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "deletion failed")
		return
	}
	// The transcript goes with the account.
	if err := s.orchestrator.Clear(r.Context(), username); err != nil {
		s.logger.Warn("history clear after delete failed", "username", username, "error", err)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "username": username})
}
