package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type goalResponse struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	TargetAmount  core.Money      `json:"targetAmount"`
	CurrentAmount core.Money      `json:"currentAmount"`
	Deadline      time.Time       `json:"deadline"`
	Status        core.GoalStatus `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func toGoalResponse(g *core.Goal) goalResponse {
	return goalResponse{
		ID:            g.ID,
		Title:         g.Title,
		TargetAmount:  g.TargetAmount,
		CurrentAmount: g.CurrentAmount,
		Deadline:      g.Deadline,
		Status:        g.Status,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
	}
}

type createGoalRequest struct {
	Title         string     `json:"title"`
	TargetAmount  core.Money `json:"targetAmount"`
	CurrentAmount core.Money `json:"currentAmount,omitempty"`
	Deadline      string     `json:"deadline"`
}

type updateGoalRequest struct {
	Title         *string          `json:"title,omitempty"`
	TargetAmount  *core.Money      `json:"targetAmount,omitempty"`
	CurrentAmount *core.Money      `json:"currentAmount,omitempty"`
	Deadline      *string          `json:"deadline,omitempty"`
	Status        *core.GoalStatus `json:"status,omitempty"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	deadline, err := parseDate(req.Deadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid deadline")
		return
	}

	now := time.Now().UTC()
	g := &core.Goal{
		ID:            uuid.NewString(),
		UserID:        callerID(r),
		Title:         req.Title,
		TargetAmount:  req.TargetAmount,
		CurrentAmount: req.CurrentAmount,
		Deadline:      deadline,
		Status:        core.GoalInProgress,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := g.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.repo.CreateGoal(r.Context(), g); err != nil {
		s.logger.ErrorContext(r.Context(), "Goal creation failed", log.FieldError, err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalResponse(g))
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.repo.GoalsByUser(r.Context(), callerID(r))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Goal listing failed", log.FieldError, err)
		writeDomainError(w, err)
		return
	}

	out := make([]goalResponse, 0, len(goals))
	for i := range goals {
		out = append(out, toGoalResponse(&goals[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.repo.GoalOwned(r.Context(), r.PathValue("id"), callerID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalResponse(g))
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req updateGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	g, err := s.repo.GoalOwned(r.Context(), r.PathValue("id"), callerID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if req.Title != nil {
		g.Title = *req.Title
	}
	if req.TargetAmount != nil {
		g.TargetAmount = *req.TargetAmount
	}
	if req.CurrentAmount != nil {
		g.CurrentAmount = *req.CurrentAmount
	}
	if req.Deadline != nil {
		parsed, err := parseDate(*req.Deadline)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid deadline")
			return
		}
		g.Deadline = parsed
	}
	if req.Status != nil {
		g.Status = *req.Status
	}
	g.UpdatedAt = time.Now().UTC()

	if err := g.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.repo.UpdateGoal(r.Context(), g); err != nil {
		s.logger.ErrorContext(r.Context(), "Goal update failed", log.FieldError, err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalResponse(g))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteGoal(r.Context(), r.PathValue("id"), callerID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "goal deleted"})
}
