package keyoku

import (
	"context"
	"net/http"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

// CleanupResource finds and removes memories in bulk
type CleanupResource struct {
	client *Client
}

// Suggestions lists cleanup strategies with how many memories each would hit
func (r *CleanupResource) Suggestions(ctx context.Context) (*CleanupSuggestionsResponse, error) {
	var resp *CleanupSuggestionsResponse
	if err := r.client.do(ctx, request{method: http.MethodGet, path: "/v1/memories/cleanup-suggestions"}, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &CleanupSuggestionsResponse{}
	}
	resp.Suggestions = nonNil(resp.Suggestions)
	return resp, nil
}

// Execute runs a cleanup. With DryRun set nothing is deleted and the
// response lists what would be.
func (r *CleanupResource) Execute(ctx context.Context, req CleanupRequest) (*CleanupResponse, error) {
	if req.Strategy == "" {
		return nil, errors.New(errors.KindValidation, "cleanup strategy is required")
	}

	var resp *CleanupResponse
	if err := r.client.do(ctx, request{method: http.MethodPost, path: "/v1/memories/cleanup", body: req}, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &CleanupResponse{}
	}
	return resp, nil
}
