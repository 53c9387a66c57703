package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-agent/internal/types"
)

// handleTriggerRun starts a manual run and blocks until it finishes.
// 409 while another run is active.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runner.Trigger(r.Context())
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusCreated, run)
}

// handleListRuns returns run history, newest first. Supports ?status=
// and ?limit=.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.errorResponse(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	var statuses []types.RunStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		statuses = append(statuses, types.RunStatus(raw))
	}

	runs := s.store.List(limit, statuses...)
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleGetRun returns one run by id.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := s.store.Get(id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleListScheduled returns queue items, optionally filtered by status.
func (s *Server) handleListScheduled(w http.ResponseWriter, r *http.Request) {
	var statuses []types.ItemStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		statuses = append(statuses, types.ItemStatus(raw))
	}

	items := s.queue.List(statuses...)
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
		"stats": s.queue.Stats(),
	})
}

// handleGetScheduled returns one queue item by id.
func (s *Server) handleGetScheduled(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}

	item, err := s.queue.Get(id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, item)
}

// handleCancelScheduled cancels a queued item. 409 once it has left the
// queued state.
func (s *Server) handleCancelScheduled(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}

	item, err := s.queue.Cancel(id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, item)
}

type rescheduleRequest struct {
	ScheduledTime time.Time `json:"scheduled_time"`
}

// handleRescheduleScheduled moves a queued item to a new time.
func (s *Server) handleRescheduleScheduled(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ScheduledTime.IsZero() {
		verr := &ErrValidation{Field: "scheduled_time", Message: "required"}
		s.errorResponse(w, HTTPStatus(verr), verr.Error())
		return
	}

	item, err := s.queue.Reschedule(id, req.ScheduledTime)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, item)
}

// handleDispatchScheduled force-dispatches an item immediately,
// including manual re-dispatch of failed items.
func (s *Server) handleDispatchScheduled(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}

	item, err := s.queue.DispatchNow(r.Context(), id)
	if err != nil {
		// A publish failure still transitions the item; report the item
		// state alongside the error so the operator sees both.
		if item != nil {
			s.jsonResponse(w, http.StatusBadGateway, map[string]any{
				"item":  item,
				"error": err.Error(),
			})
			return
		}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, item)
}

// handleMetrics reports run metrics and queue stats.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	metrics := s.store.Metrics()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"runs":         metrics,
		"success_rate": metrics.SuccessRate(),
		"queue":        s.queue.Stats(),
	})
}

func (s *Server) itemID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid item id")
		return uuid.Nil, false
	}
	return id, true
}
