package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

const (
	jobKindRemember = "remember"
	jobKindBatch    = "batch_create"
	jobKindExport   = "export"
)

const (
	statusPending    = "pending"
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusFailed     = "failed"
)

// jobDoc is the stored form of a job. Input is kept so the worker can pick
// it up after the request that created it has returned.
type jobDoc struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Status      string         `json:"status"`
	Contents    []string       `json:"contents,omitempty"`
	SessionID   string         `json:"sessionId,omitempty"`
	AgentID     string         `json:"agentId,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

type jobView struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

func (j jobDoc) view() jobView {
	return jobView{
		ID:          j.ID,
		Status:      j.Status,
		Result:      j.Result,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
}

// submitJob stores a pending job and hands it to the worker
func (s *Server) submitJob(ctx context.Context, kind string, contents []string, sessionID, agentID string) (*jobDoc, error) {
	job := &jobDoc{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    statusPending,
		Contents:  contents,
		SessionID: sessionID,
		AgentID:   agentID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.putDoc(ctx, collJobs, job.ID, job); err != nil {
		return nil, err
	}

	select {
	case s.queue <- job.ID:
	case <-s.stop:
		return nil, errors.New(errors.KindServer, "server is shutting down")
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.KindCanceled, "request canceled")
	}

	s.logger.Debug("Job submitted",
		slog.String("job_id", job.ID),
		slog.String("kind", kind),
		slog.Int("items", len(contents)),
	)
	return job, nil
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	var job jobDoc
	found, err := s.getDoc(r.Context(), collJobs, r.PathValue("id"), &job)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		s.writeError(w, errors.New(errors.KindNotFound, "Job not found"))
		return
	}
	s.writeJSON(w, http.StatusOK, job.view())
}

// runWorker processes queued jobs one at a time until Close
func (s *Server) runWorker() {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stop
		cancel()
	}()

	for {
		select {
		case <-s.stop:
			return
		case id := <-s.queue:
			if err := s.processJob(ctx, id); err != nil {
				s.logger.Error("Job processing failed",
					slog.String("job_id", id),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// processJob drives a job through processing to completed or failed
func (s *Server) processJob(ctx context.Context, id string) error {
	var job jobDoc
	found, err := s.getDoc(ctx, collJobs, id, &job)
	if err != nil {
		return err
	}
	if !found {
		return errors.Newf(errors.KindNotFound, "job %s vanished from storage", id)
	}

	if !s.pause(ctx) {
		return ctx.Err()
	}
	job.Status = statusProcessing
	if err := s.putDoc(ctx, collJobs, job.ID, job); err != nil {
		return err
	}

	if !s.pause(ctx) {
		return ctx.Err()
	}

	memoryIDs, failure := s.extract(ctx, &job)
	now := time.Now().UTC()
	job.CompletedAt = &now
	if failure != nil {
		job.Status = statusFailed
		job.Error = errors.GetMessage(failure)
	} else {
		job.Status = statusCompleted
		job.Result = map[string]any{"memory_ids": memoryIDs}
	}

	if err := s.putDoc(ctx, collJobs, job.ID, job); err != nil {
		return err
	}
	s.metrics.jobFinished(job.Kind, job.Status)
	s.logger.Info("Job finished",
		slog.String("job_id", job.ID),
		slog.String("status", job.Status),
		slog.Int("memories", len(memoryIDs)),
	)
	return nil
}

// extract turns job contents into memories. Every item is validated before
// anything is written, so a failed job leaves no memories behind.
func (s *Server) extract(ctx context.Context, job *jobDoc) ([]string, error) {
	for _, content := range job.Contents {
		if utf8.RuneCountInString(content) > s.opts.MaxContentLength {
			return nil, errors.New(errors.KindValidation, "content exceeds maximum length")
		}
	}

	now := time.Now().UTC()
	docs := make(map[string]any, len(job.Contents))
	ids := make([]string, 0, len(job.Contents))
	for _, content := range job.Contents {
		typ, importance := classify(content)
		doc := memoryDoc{
			ID:         uuid.NewString(),
			Content:    content,
			Type:       typ,
			AgentID:    job.AgentID,
			SessionID:  job.SessionID,
			Importance: importance,
			CreatedAt:  now,
		}
		docs[doc.ID] = doc
		ids = append(ids, doc.ID)
	}

	if err := s.putDocs(ctx, collMemories, docs); err != nil {
		return nil, err
	}
	for _, id := range ids {
		s.audit(ctx, "create", "memory", id, map[string]any{"job_id": job.ID})
	}
	return ids, nil
}

// pause sleeps for the configured processing delay. It reports false when
// the server is shutting down.
func (s *Server) pause(ctx context.Context) bool {
	if s.opts.ProcessingDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.opts.ProcessingDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
