package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/engine"
)

func (s *Server) handleAPICreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req CreateExperimentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	exp, err := s.service.CreateExperiment(r.Context(), req.config())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, NewExperimentResponse(exp))
}

func (s *Server) handleAPIListExperiments(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	experiments, err := s.service.ListExperiments(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]ExperimentResponse, len(experiments))
	for i, e := range experiments {
		out[i] = NewExperimentResponse(e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPIGetExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := s.service.GetExperiment(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewExperimentResponse(exp))
}

func (s *Server) handleAPIStartExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := s.service.StartExperiment(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewExperimentResponse(exp))
}

func (s *Server) handleAPIStopExperiment(w http.ResponseWriter, r *http.Request) {
	var req StopRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	exp, err := s.service.StopExperiment(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewExperimentResponse(exp))
}

func (s *Server) handleAPICompleteExperiment(w http.ResponseWriter, r *http.Request) {
	var req StopRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	exp, err := s.service.CompleteExperiment(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewExperimentResponse(exp))
}

func (s *Server) handleAPIResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.service.GetResults(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewResultsResponse(results))
}

func (s *Server) handleAPIAssign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	id := r.PathValue("id")
	res, err := s.service.GetAssignment(r.Context(), id, req.EntityID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, newAssignmentResponse(id, req.EntityID, res))
}

func (s *Server) handleAPIListAssignments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, fmt.Errorf("%w: invalid limit %q", errBadRequest, v))
			return
		}
		limit = n
	}

	id := r.PathValue("id")
	assignments, err := s.service.ListAssignments(r.Context(), id, r.URL.Query().Get("after"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]AssignmentResponse, len(assignments))
	for i, a := range assignments {
		out[i] = newAssignmentResponse(id, a.EntityID, engine.AssignmentResult{
			Variant:    a.Variant,
			HashValue:  a.HashValue,
			AssignedAt: a.AssignedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPITrackEvent(w http.ResponseWriter, r *http.Request) {
	var req TrackEventRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	in := engine.TrackEventInput{
		ExperimentID: r.PathValue("id"),
		EntityID:     req.EntityID,
		EventType:    req.EventType,
		Properties:   req.Properties,
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}
	ack, err := s.service.TrackEvent(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, EventAckResponse{
		Recorded:  ack.Recorded,
		Duplicate: ack.Duplicate,
		Timestamp: ack.Timestamp,
	})
}

func parseFilter(r *http.Request) (domain.ExperimentFilter, error) {
	filter := domain.ExperimentFilter{ScopeKey: r.URL.Query().Get("scope")}
	if v := r.URL.Query().Get("status"); v != "" {
		status, err := domain.ParseStatus(v)
		if err != nil {
			return filter, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		filter.Status = status
	}
	return filter, nil
}
