package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type accountResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Type      core.AccountType `json:"type"`
	Balance   core.Money       `json:"balance"`
	IsActive  bool             `json:"isActive"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

func toAccountResponse(a *core.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Type:      a.Type,
		Balance:   a.Balance,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

type createAccountRequest struct {
	Name    string           `json:"name"`
	Type    core.AccountType `json:"type"`
	Balance *core.Money      `json:"balance,omitempty"`
}

type updateAccountRequest struct {
	Name    *string           `json:"name,omitempty"`
	Type    *core.AccountType `json:"type,omitempty"`
	Balance *core.Money       `json:"balance,omitempty"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.repo.ActiveAccountsByUser(r.Context(), callerID(r))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Account listing failed", log.FieldError, err)
		writeDomainError(w, err)
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, toAccountResponse(&accounts[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := time.Now().UTC()
	a := &core.Account{
		ID:        uuid.NewString(),
		UserID:    callerID(r),
		Name:      req.Name,
		Type:      req.Type,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Balance != nil {
		a.Balance = *req.Balance
	}
	if err := a.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.repo.CreateAccount(r.Context(), a); err != nil {
		s.logger.ErrorContext(r.Context(), "Account creation failed", log.FieldError, err)
		writeDomainError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Account created",
		log.FieldOperation, log.OpCreate,
		log.FieldAccountID, a.ID,
		log.FieldUserID, a.UserID)
	writeJSON(w, http.StatusCreated, toAccountResponse(a))
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := s.repo.AccountOwned(r.Context(), r.PathValue("id"), callerID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if req.Name != nil {
		a.Name = *req.Name
	}
	if req.Type != nil {
		a.Type = *req.Type
	}
	if req.Balance != nil {
		a.Balance = *req.Balance
	}
	a.UpdatedAt = time.Now().UTC()

	if err := a.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.repo.UpdateAccount(r.Context(), a); err != nil {
		s.logger.ErrorContext(r.Context(), "Account update failed", log.FieldError, err, log.FieldAccountID, a.ID)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(a))
}

// handleDeleteAccount deactivates an account. Transactions referencing it stay
// in place; the ledger treats the account as gone for new postings.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.repo.AccountOwned(r.Context(), r.PathValue("id"), callerID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	a.IsActive = false
	a.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateAccount(r.Context(), a); err != nil {
		s.logger.ErrorContext(r.Context(), "Account deactivation failed", log.FieldError, err, log.FieldAccountID, a.ID)
		writeDomainError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Account deactivated",
		log.FieldOperation, log.OpDelete,
		log.FieldAccountID, a.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}
