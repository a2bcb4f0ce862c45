package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"transvox/internal/jobs"
	"transvox/internal/logging"
	"transvox/internal/scheduler"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: s.version})
}

func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user := submitterID(r)
	resp := WhoamiResponse{UserID: user, QueueDepth: s.sched.QueueDepth()}
	if latest := s.sched.Latest(user); latest != nil {
		view := FromJob(latest)
		resp.LatestJob = &view
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	jobCfg, err := s.validateStart(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	submitter := submitterID(r)
	job, err := s.sched.Submit(submitter, jobCfg)
	if err != nil {
		var admission *jobs.AdmissionError
		switch {
		case errors.As(err, &admission):
			s.writeJSON(w, http.StatusConflict, ConflictResponse{
				Error:       "an active job already exists for this user",
				ActiveJobID: admission.ExistingJobID,
			})
		case errors.Is(err, scheduler.ErrStopped):
			s.writeError(w, http.StatusServiceUnavailable, "daemon is shutting down")
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.logger.Info("submission accepted", logging.Args(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldSubmitter, submitter),
	)...)
	s.writeJSON(w, http.StatusAccepted, StartResponse{Job: FromJob(job)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID, ok := pathID(r.URL.Path, "/api/pipeline/status/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	job, err := s.sched.Status(submitterID(r), jobID)
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FromJob(job))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID, ok := pathID(r.URL.Path, "/api/pipeline/stop/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	job, err := s.sched.Cancel(submitterID(r), jobID)
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FromJob(job))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID, ok := pathID(r.URL.Path, "/api/pipeline/clear/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	if err := s.sched.Purge(r.Context(), submitterID(r), jobID); err != nil {
		if errors.Is(err, jobs.ErrNotTerminal) {
			s.writeError(w, http.StatusConflict, "job is still active; stop it first")
			return
		}
		s.writeJobError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"cleared": jobID})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := s.sched.History(r.Context(), submitterID(r), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, HistoryResponse{Jobs: records})
}

func (s *Server) writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, jobs.ErrForbidden):
		s.writeError(w, http.StatusForbidden, "job belongs to another user")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func pathID(path, prefix string) (string, bool) {
	id := strings.TrimPrefix(path, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
