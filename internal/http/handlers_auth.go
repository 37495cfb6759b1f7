package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Avatar   string `json:"avatar,omitempty"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u := &core.User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Avatar:    strings.TrimSpace(req.Avatar),
		CreatedAt: time.Now().UTC(),
	}
	if err := u.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Password hashing failed", log.FieldError, err)
		writeDomainError(w, err)
		return
	}
	u.PasswordHash = hash

	if err := s.repo.CreateUser(r.Context(), u); err != nil {
		if !errors.Is(err, core.ErrEmailTaken) {
			s.logger.ErrorContext(r.Context(), "User creation failed", log.FieldError, err)
		}
		writeDomainError(w, err)
		return
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Token issuance failed", log.FieldError, err, log.FieldUserID, u.ID)
		writeDomainError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "User registered", log.FieldUserID, u.ID)
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token})
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := s.repo.UserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			writeError(w, http.StatusForbidden, "invalid credentials")
			return
		}
		s.logger.ErrorContext(r.Context(), "User lookup failed", log.FieldError, err)
		writeDomainError(w, err)
		return
	}

	if !auth.CheckPassword(req.Password, u.PasswordHash) {
		writeError(w, http.StatusForbidden, "invalid credentials")
		return
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Token issuance failed", log.FieldError, err, log.FieldUserID, u.ID)
		writeDomainError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "User signed in", log.FieldUserID, u.ID)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}
