package http

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

type transactionResponse struct {
	ID          string               `json:"id"`
	AccountID   string               `json:"accountId"`
	Amount      core.Money           `json:"amount"`
	Type        core.TransactionType `json:"type"`
	Description string               `json:"description"`
	Category    string               `json:"category"`
	Date        time.Time            `json:"date"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

func toTransactionResponse(t *core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Amount:      t.Amount,
		Type:        t.Type,
		Description: t.Description,
		Category:    t.Category,
		Date:        t.Date,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

type createTransactionRequest struct {
	AccountID   string               `json:"accountId"`
	Amount      core.Money           `json:"amount"`
	Type        core.TransactionType `json:"type"`
	Description string               `json:"description"`
	Category    string               `json:"category"`
	Date        string               `json:"date,omitempty"`
}

type updateTransactionRequest struct {
	AccountID   *string               `json:"accountId,omitempty"`
	Amount      *core.Money           `json:"amount,omitempty"`
	Type        *core.TransactionType `json:"type,omitempty"`
	Description *string               `json:"description,omitempty"`
	Category    *string               `json:"category,omitempty"`
	Date        *string               `json:"date,omitempty"`
}

type summaryResponse struct {
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Net     core.Money `json:"net"`
}

// parseDate accepts a plain date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// txFilterFromQuery builds a transaction filter from accountId, type,
// category, startDate and endDate query parameters.
func txFilterFromQuery(q url.Values) (storage.TxFilter, error) {
	filter := storage.TxFilter{
		AccountID: q.Get("accountId"),
		Type:      core.TransactionType(q.Get("type")),
		Category:  q.Get("category"),
	}
	if v := q.Get("startDate"); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			return filter, fmt.Errorf("invalid startDate")
		}
		filter.StartDate = &parsed
	}
	if v := q.Get("endDate"); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			return filter, fmt.Errorf("invalid endDate")
		}
		filter.EndDate = &parsed
	}
	return filter, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		parsed, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
		date = parsed
	}

	t, err := s.poster.Post(r.Context(), ledger.PostInput{
		UserID:      callerID(r),
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		Type:        req.Type,
		Description: req.Description,
		Category:    req.Category,
		Date:        date,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSummaries(callerID(r))
	writeJSON(w, http.StatusCreated, toTransactionResponse(t))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := txFilterFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := s.repo.ListTransactions(r.Context(), callerID(r), filter)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Transaction listing failed", log.FieldError, err)
		writeDomainError(w, err)
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for i := range txs {
		out = append(out, toTransactionResponse(&txs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.repo.TransactionOwned(r.Context(), r.PathValue("id"), callerID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req updateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := ledger.RepostInput{
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		Type:        req.Type,
		Description: req.Description,
		Category:    req.Category,
	}
	if req.Date != nil {
		parsed, err := parseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
		in.Date = &parsed
	}

	t, err := s.poster.Repost(r.Context(), r.PathValue("id"), callerID(r), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSummaries(callerID(r))
	writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.poster.Unpost(r.Context(), r.PathValue("id"), callerID(r)); err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSummaries(callerID(r))
	writeJSON(w, http.StatusOK, map[string]string{"message": "transaction deleted"})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	key := userID + ":summary"

	if cached, ok := s.summaryCache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	income, expense, err := s.repo.Summary(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Summary failed", log.FieldError, err)
		writeDomainError(w, err)
		return
	}

	resp := summaryResponse{Income: income, Expense: expense, Net: income + expense}
	s.summaryCache.Set(key, resp)
	writeJSON(w, http.StatusOK, resp)
}

// handleSummaryFilter returns the transactions matching the query filters,
// not an aggregate: the aggregate lives on the plain summary endpoint.
func (s *Server) handleSummaryFilter(w http.ResponseWriter, r *http.Request) {
	filter, err := txFilterFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := s.repo.ListTransactions(r.Context(), callerID(r), filter)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Filtered listing failed", log.FieldError, err)
		writeDomainError(w, err)
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for i := range txs {
		out = append(out, toTransactionResponse(&txs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}
