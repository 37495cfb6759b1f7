package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type budgetResponse struct {
	ID        string     `json:"id"`
	Category  string     `json:"category"`
	Amount    core.Money `json:"amount"`
	Month     string     `json:"month"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func toBudgetResponse(b *core.Budget) budgetResponse {
	return budgetResponse{
		ID:        b.ID,
		Category:  b.Category,
		Amount:    b.Amount,
		Month:     b.Month,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

type createBudgetRequest struct {
	Category string     `json:"category"`
	Amount   core.Money `json:"amount"`
	Month    string     `json:"month"`
}

type updateBudgetRequest struct {
	Category *string     `json:"category,omitempty"`
	Amount   *core.Money `json:"amount,omitempty"`
	Month    *string     `json:"month,omitempty"`
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req createBudgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := time.Now().UTC()
	b := &core.Budget{
		ID:        uuid.NewString(),
		UserID:    callerID(r),
		Category:  req.Category,
		Amount:    req.Amount,
		Month:     req.Month,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := b.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.repo.CreateBudget(r.Context(), b); err != nil {
		s.logger.ErrorContext(r.Context(), "Budget creation failed", log.FieldError, err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetResponse(b))
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.repo.BudgetsByUser(r.Context(), callerID(r), r.URL.Query().Get("month"))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Budget listing failed", log.FieldError, err)
		writeDomainError(w, err)
		return
	}

	out := make([]budgetResponse, 0, len(budgets))
	for i := range budgets {
		out = append(out, toBudgetResponse(&budgets[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.repo.BudgetOwned(r.Context(), r.PathValue("id"), callerID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b))
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req updateBudgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := s.repo.BudgetOwned(r.Context(), r.PathValue("id"), callerID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if req.Category != nil {
		b.Category = *req.Category
	}
	if req.Amount != nil {
		b.Amount = *req.Amount
	}
	if req.Month != nil {
		b.Month = *req.Month
	}
	b.UpdatedAt = time.Now().UTC()

	if err := b.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.repo.UpdateBudget(r.Context(), b); err != nil {
		s.logger.ErrorContext(r.Context(), "Budget update failed", log.FieldError, err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteBudget(r.Context(), r.PathValue("id"), callerID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "budget deleted"})
}
