package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"casetrack/internal/auth"
	"casetrack/internal/core"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  core.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(sanitizeInput(req.Email)))
	if err != nil {
		// Same response for unknown email and wrong password.
		if errors.Is(err, core.ErrNotFound) {
			respondError(ctx, w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		respondDomainError(ctx, w, err)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		slog.WarnContext(ctx, "Failed login attempt", "email", req.Email)
		respondError(ctx, w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}

	slog.InfoContext(ctx, "User logged in", "user_id", user.ID, "role", user.Role)
	respondJSON(ctx, w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := s.store.GetUser(ctx, identity(r).UserID)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, user)
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// handleCreateUser registers a new account. Admin only.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if identity(r).Role != core.RoleAdmin {
		respondError(ctx, w, http.StatusForbidden, "access denied")
		return
	}

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	role := core.Role(req.Role)
	if role != core.RoleAdmin && role != core.RoleManager && role != core.RoleAgent {
		respondError(ctx, w, http.StatusUnprocessableEntity, "unknown role")
		return
	}
	req.Email = strings.ToLower(sanitizeInput(req.Email))
	req.Username = sanitizeInput(req.Username)
	if req.Email == "" || req.Username == "" {
		respondError(ctx, w, http.StatusUnprocessableEntity, "username and email are required")
		return
	}
	if len(req.Password) < 8 {
		respondError(ctx, w, http.StatusUnprocessableEntity, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}

	id, err := s.store.CreateUser(ctx, core.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}

	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, user)
}
