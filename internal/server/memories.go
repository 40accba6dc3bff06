package server

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

// memoryDoc is the stored form of a memory. Access tracking feeds the
// stale and never_accessed cleanup strategies.
type memoryDoc struct {
	ID             string     `json:"id"`
	Content        string     `json:"content"`
	Type           string     `json:"type"`
	AgentID        string     `json:"agentId,omitempty"`
	SessionID      string     `json:"sessionId,omitempty"`
	Importance     float64    `json:"importance"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastAccessedAt *time.Time `json:"lastAccessedAt,omitempty"`
	AccessCount    int        `json:"accessCount"`
}

// memoryView is the wire form
type memoryView struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	AgentID    string    `json:"agentId,omitempty"`
	Importance float64   `json:"importance"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (m memoryDoc) view() memoryView {
	return memoryView{
		ID:         m.ID,
		Content:    m.Content,
		Type:       m.Type,
		AgentID:    m.AgentID,
		Importance: m.Importance,
		CreatedAt:  m.CreatedAt,
	}
}

type scoredMemory struct {
	memoryView
	Score float64 `json:"score"`
}

type rememberBody struct {
	Content   string `json:"content"`
	SessionID string `json:"session_id"`
	AgentID   string `json:"agent_id"`
}

func (s *Server) handleRemember(w http.ResponseWriter, r *http.Request) {
	var body rememberBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(body.Content) == "" {
		s.writeError(w, errors.New(errors.KindValidation, "content is required").WithCode("missing_content"))
		return
	}

	job, err := s.submitJob(r.Context(), jobKindRemember, []string{body.Content}, body.SessionID, body.AgentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "status": job.Status})
}

type batchCreateBody struct {
	Memories []struct {
		Content string `json:"content"`
	} `json:"memories"`
	SessionID string `json:"session_id"`
	AgentID   string `json:"agent_id"`
}

func (s *Server) handleBatchCreate(w http.ResponseWriter, r *http.Request) {
	var body batchCreateBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if len(body.Memories) == 0 {
		s.writeError(w, errors.New(errors.KindValidation, "memories must not be empty"))
		return
	}

	contents := make([]string, 0, len(body.Memories))
	for i, m := range body.Memories {
		if strings.TrimSpace(m.Content) == "" {
			s.writeError(w, errors.Newf(errors.KindValidation, "memories[%d].content is required", i))
			return
		}
		contents = append(contents, m.Content)
	}

	job, err := s.submitJob(r.Context(), jobKindBatch, contents, body.SessionID, body.AgentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.audit(r.Context(), "batch_create", "memory", "", map[string]any{"count": len(contents), "job_id": job.ID})
	s.writeJSON(w, http.StatusAccepted, map[string]any{"jobId": job.ID, "status": job.Status})
}

type batchDeleteBody struct {
	IDs []string `json:"ids"`
}

// handleBatchDelete removes all listed memories or none of them
func (s *Server) handleBatchDelete(w http.ResponseWriter, r *http.Request) {
	var body batchDeleteBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if len(body.IDs) == 0 {
		s.writeError(w, errors.New(errors.KindValidation, "ids must not be empty"))
		return
	}

	s.memMu.Lock()
	defer s.memMu.Unlock()

	for _, id := range body.IDs {
		rec, err := s.store.Get(r.Context(), collMemories, id)
		if err != nil {
			s.writeError(w, errors.Wrap(err, errors.KindServer, "failed to read memories"))
			return
		}
		if rec == nil {
			s.writeError(w, errors.Newf(errors.KindNotFound, "Memory %s not found", id))
			return
		}
	}

	n, err := s.store.Delete(r.Context(), collMemories, body.IDs...)
	if err != nil {
		s.writeError(w, errors.Wrap(err, errors.KindServer, "failed to delete memories"))
		return
	}
	s.audit(r.Context(), "batch_delete", "memory", "", map[string]any{"count": n, "ids": body.IDs})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		s.writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	agentID := r.URL.Query().Get("agent_id")

	docs, err := listDocs[memoryDoc](r.Context(), s.store, collMemories)
	if err != nil {
		s.writeError(w, err)
		return
	}

	views := make([]memoryView, 0, len(docs))
	for _, d := range docs {
		if agentID != "" && d.AgentID != agentID {
			continue
		}
		views = append(views, d.view())
	}

	items, more := page(views, limit, offset)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"memories": items,
		"total":    len(views),
		"hasMore":  more,
	})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var doc memoryDoc
	found, err := s.getDoc(r.Context(), collMemories, id, &doc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		s.writeError(w, errors.New(errors.KindNotFound, "Memory not found"))
		return
	}

	s.touch(r, doc.ID)
	s.writeJSON(w, http.StatusOK, doc.view())
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.memMu.Lock()
	defer s.memMu.Unlock()

	n, err := s.store.Delete(r.Context(), collMemories, id)
	if err != nil {
		s.writeError(w, errors.Wrap(err, errors.KindServer, "failed to delete memory"))
		return
	}
	if n == 0 {
		s.writeError(w, errors.New(errors.KindNotFound, "Memory not found"))
		return
	}

	s.audit(r.Context(), "delete", "memory", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAllMemories(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Confirm-Delete")), "true") {
		s.writeError(w, errors.New(errors.KindValidation, "X-Confirm-Delete: true header is required").WithCode("confirmation_required"))
		return
	}

	s.memMu.Lock()
	defer s.memMu.Unlock()

	records, err := s.store.List(r.Context(), collMemories)
	if err != nil {
		s.writeError(w, errors.Wrap(err, errors.KindServer, "failed to list memories"))
		return
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}

	n, err := s.store.Delete(r.Context(), collMemories, ids...)
	if err != nil {
		s.writeError(w, errors.Wrap(err, errors.KindServer, "failed to delete memories"))
		return
	}

	s.audit(r.Context(), "delete_all", "memory", "", map[string]any{"count": n})
	w.WriteHeader(http.StatusNoContent)
}

type searchBody struct {
	Query   string `json:"query"`
	Limit   int    `json:"limit"`
	Mode    string `json:"mode"`
	AgentID string `json:"agent_id"`
}

// handleSearch ranks memories by the share of query terms they contain
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var body searchBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		s.writeError(w, errors.New(errors.KindValidation, "query is required"))
		return
	}
	switch body.Mode {
	case "", "semantic", "keyword", "hybrid":
	default:
		s.writeError(w, errors.Newf(errors.KindValidation, "mode must be one of [semantic, keyword, hybrid], got '%s'", body.Mode))
		return
	}
	if body.Limit <= 0 {
		body.Limit = 10
	}

	docs, err := listDocs[memoryDoc](r.Context(), s.store, collMemories)
	if err != nil {
		s.writeError(w, err)
		return
	}

	terms := tokenize(body.Query)
	hits := make([]scoredMemory, 0)
	matched := make([]memoryDoc, 0)
	for _, d := range docs {
		if body.AgentID != "" && d.AgentID != body.AgentID {
			continue
		}
		score := overlap(terms, tokenize(d.Content))
		if score == 0 {
			continue
		}
		hits = append(hits, scoredMemory{memoryView: d.view(), Score: score})
		matched = append(matched, d)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > body.Limit {
		hits = hits[:body.Limit]
	}

	returned := make(map[string]bool, len(hits))
	for _, h := range hits {
		returned[h.ID] = true
	}
	for _, d := range matched {
		if returned[d.ID] {
			s.touch(r, d.ID)
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"memories":    hits,
		"queryTimeMs": float64(time.Since(start).Microseconds()) / 1000.0,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	docs, err := listDocs[memoryDoc](r.Context(), s.store, collMemories)
	if err != nil {
		s.writeError(w, err)
		return
	}

	byType := make(map[string]int)
	for _, d := range docs {
		byType[d.Type]++
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"totalMemories": len(docs),
		"byType":        byType,
	})
}

// touch records a read of the memory. The record is re-read under memMu so
// a concurrent delete is never undone. Failures only cost accuracy of the
// cleanup strategies, so they are logged and dropped.
func (s *Server) touch(r *http.Request, id string) {
	s.memMu.Lock()
	defer s.memMu.Unlock()

	var doc memoryDoc
	found, err := s.getDoc(r.Context(), collMemories, id, &doc)
	if err == nil && !found {
		return
	}
	if err == nil {
		now := time.Now().UTC()
		doc.LastAccessedAt = &now
		doc.AccessCount++
		err = s.putDoc(r.Context(), collMemories, id, doc)
	}
	if err != nil {
		s.logger.Warn("Failed to record memory access",
			slog.String("memory_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// overlap returns the fraction of distinct query terms present in words
func overlap(query, words []string) float64 {
	if len(query) == 0 {
		return 0
	}
	present := make(map[string]bool, len(words))
	for _, w := range words {
		present[w] = true
	}

	seen := make(map[string]bool, len(query))
	hits := 0
	for _, q := range query {
		if seen[q] {
			continue
		}
		seen[q] = true
		if present[q] {
			hits++
		}
	}
	return float64(hits) / float64(len(seen))
}

// classify assigns a memory type from surface cues in the content
func classify(content string) (string, float64) {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "prefer") || strings.Contains(lower, "like") || strings.Contains(lower, "favorite"):
		return "preference", 0.7
	case strings.Contains(lower, "always") || strings.Contains(lower, "never") || strings.Contains(lower, "must"):
		return "rule", 0.8
	case strings.Contains(lower, "tomorrow") || strings.Contains(lower, "yesterday") || strings.Contains(lower, "meeting"):
		return "event", 0.5
	default:
		return "fact", 0.5
	}
}
