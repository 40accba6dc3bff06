package keyoku

import (
	"context"
	"net/http"
	"net/url"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

const (
	defaultListLimit   = 50
	defaultSearchLimit = 10
)

// MemoriesResource manages stored memories
type MemoriesResource struct {
	client *Client
}

// List returns one page of memories, 50 per page by default
func (r *MemoriesResource) List(ctx context.Context, opts *ListOptions) (*ListMemoriesResponse, error) {
	limit, offset, agentID := defaultListLimit, 0, ""
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		offset = opts.Offset
		agentID = opts.AgentID
	}

	query := (&Params{}).
		Add("limit", limit).
		Add("offset", offset).
		Add("agent_id", agentID)

	var resp *ListMemoriesResponse
	if err := r.client.do(ctx, request{method: http.MethodGet, path: "/v1/memories", query: query}, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &ListMemoriesResponse{}
	}
	if resp.Memories == nil {
		resp.Memories = []Memory{}
	}
	return resp, nil
}

// Get fetches one memory
func (r *MemoriesResource) Get(ctx context.Context, memoryID string) (*Memory, error) {
	var m *Memory
	err := r.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/memories/" + url.PathEscape(memoryID),
		route:  "/v1/memories/{id}",
	}, &m)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.Newf(errors.KindMalformedResponse, "empty response for memory %s", memoryID)
	}
	return m, nil
}

// Delete removes one memory
func (r *MemoriesResource) Delete(ctx context.Context, memoryID string) error {
	return r.client.do(ctx, request{
		method: http.MethodDelete,
		path:   "/v1/memories/" + url.PathEscape(memoryID),
		route:  "/v1/memories/{id}",
	}, nil)
}

// DeleteAll removes every memory of the caller. The service requires the
// explicit confirmation header, which this method always sends.
func (r *MemoriesResource) DeleteAll(ctx context.Context) error {
	header := http.Header{}
	header.Set("X-Confirm-Delete", "true")
	return r.client.do(ctx, request{method: http.MethodDelete, path: "/v1/memories", header: header}, nil)
}

// BatchCreate submits several contents as one job. Partial failure within
// the batch is reported by the service, not split up here.
func (r *MemoriesResource) BatchCreate(ctx context.Context, contents []string, opts *BatchCreateOptions) (*JobHandle, error) {
	body := batchCreateRequest{Memories: make([]BatchMemory, 0, len(contents))}
	for _, c := range contents {
		body.Memories = append(body.Memories, BatchMemory{Content: c})
	}
	if opts != nil {
		body.SessionID = opts.SessionID
		body.AgentID = opts.AgentID
	}

	var accepted *jobAccepted
	if err := r.client.do(ctx, request{method: http.MethodPost, path: "/v1/memories/batch", body: body}, &accepted); err != nil {
		return nil, err
	}
	return r.client.handleFor(accepted)
}

// BatchDelete removes the given memories in one round trip
func (r *MemoriesResource) BatchDelete(ctx context.Context, memoryIDs []string) error {
	if memoryIDs == nil {
		memoryIDs = []string{}
	}
	return r.client.do(ctx, request{
		method: http.MethodDelete,
		path:   "/v1/memories/batch",
		body:   batchDeleteRequest{IDs: memoryIDs},
	}, nil)
}
