package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/Scribe/core/errors"
	"github.com/FocuswithJustin/Scribe/internal/logging"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is an asynchronous parse.
type Job struct {
	ID          string          `json:"id"`
	Status      JobStatus       `json:"status"`
	Progress    int             `json:"progress"` // 0-100
	Format      string          `json:"format,omitempty"`
	Name        string          `json:"name,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	CompletedAt string          `json:"completed_at,omitempty"`

	ctx      context.Context
	cancel   context.CancelFunc
	finished time.Time
}

// JobStore manages jobs in memory.
type JobStore struct {
	jobs map[string]*Job
	mu   sync.RWMutex
	now  func() time.Time
}

// NewJobStore creates a new job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job), now: time.Now}
}

func (s *JobStore) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// Create registers a pending job for req and returns a snapshot of it.
func (s *JobStore) Create(req ParseRequest) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	now := s.stamp()
	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Format:    req.Format,
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.jobs[job.ID] = job
	return *job
}

// Get returns a snapshot of a job.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Update records progress. Updates to a finished job are ignored, so a
// cancellation is never overwritten by a late result.
func (s *JobStore) Update(id string, status JobStatus, progress int, result json.RawMessage, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return errors.NewNotFound("job", id)
	}
	if job.Status.finished() {
		return nil
	}
	job.Status = status
	job.Progress = progress
	job.UpdatedAt = s.stamp()
	if result != nil {
		job.Result = result
	}
	if errMsg != "" {
		job.Error = errMsg
	}
	if status.finished() {
		s.finish(job)
	}
	return nil
}

// finish must be called with s.mu held.
func (s *JobStore) finish(job *Job) {
	job.finished = s.now()
	job.CompletedAt = job.finished.UTC().Format(time.RFC3339)
	job.cancel()
}

// Cancel stops a pending or running job.
func (s *JobStore) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return errors.NewNotFound("job", id)
	}
	if job.Status.finished() {
		return errors.NewValidation("status", "job cannot be cancelled (status: "+string(job.Status)+")")
	}
	job.Status = JobStatusCancelled
	job.UpdatedAt = s.stamp()
	s.finish(job)
	return nil
}

// CancelAll stops every unfinished job.
func (s *JobStore) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if !job.Status.finished() {
			job.Status = JobStatusCancelled
			s.finish(job)
		}
	}
}

// Prune drops jobs that finished before cutoff and returns how many.
func (s *JobStore) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, job := range s.jobs {
		if job.Status.finished() && job.finished.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// runJob parses in the background, reporting progress through the hub.
func (s *Server) runJob(job Job, req ParseRequest) {
	go func() {
		s.jobs.Update(job.ID, JobStatusRunning, 10, nil, "")
		s.hub.Broadcast(ProgressMessage{
			Type: "progress", Operation: "parse", JobID: job.ID,
			Stage: "parsing", Progress: 10, Message: "Parsing " + jobLabel(req),
		})

		data, cached, err := s.parse(logging.WithRequestID(job.ctx, job.ID), req)
		if job.ctx.Err() != nil {
			return
		}
		if err != nil {
			s.jobs.Update(job.ID, JobStatusFailed, 100, nil, err.Error())
			s.hub.Broadcast(ProgressMessage{
				Type: "error", Operation: "parse", JobID: job.ID, Message: err.Error(),
			})
			return
		}
		s.jobs.Update(job.ID, JobStatusCompleted, 100, data, "")
		s.hub.Broadcast(ProgressMessage{
			Type: "complete", Operation: "parse", JobID: job.ID, Progress: 100,
			Message: "Parsed " + jobLabel(req),
			Data:    map[string]any{"cached": cached},
		})
	}()
}

func jobLabel(req ParseRequest) string {
	switch {
	case req.Name != "":
		return req.Name
	case req.Format != "":
		return req.Format + " source"
	}
	return "source"
}

// handleJobs handles POST /jobs.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}
	req, ok := s.readParseRequest(w, r)
	if !ok {
		return
	}
	job := s.jobs.Create(req)
	s.runJob(job, req)
	respond(w, http.StatusCreated, job)
}

// handleJobByID handles GET /jobs/{id} and DELETE /jobs/{id}.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Job ID is required")
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Job ID must be a UUID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, ok := s.jobs.Get(id)
		if !ok {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
			return
		}
		respond(w, http.StatusOK, job)
	case http.MethodDelete:
		if err := s.jobs.Cancel(id); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
				return
			}
			respondError(w, http.StatusConflict, "CANCEL_FAILED", err.Error())
			return
		}
		respond(w, http.StatusOK, map[string]string{"message": "Job cancelled"})
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and DELETE are allowed")
	}
}
