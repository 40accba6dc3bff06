package keyoku

import (
	"context"
	"net/http"
	"net/url"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

// RelationshipsResource reads knowledge graph edges
type RelationshipsResource struct {
	client *Client
}

// List returns relationships, optionally filtered by type
func (r *RelationshipsResource) List(ctx context.Context, opts *EntityListOptions) ([]Relationship, error) {
	limit, offset, typ := defaultListLimit, 0, ""
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		offset = opts.Offset
		typ = opts.Type
	}

	query := (&Params{}).Add("limit", limit).Add("offset", offset).Add("type", typ)

	var env relationshipsEnvelope
	if err := r.client.do(ctx, request{method: http.MethodGet, path: "/v1/relationships", query: query}, &env); err != nil {
		return nil, err
	}
	return nonNil(env.Relationships), nil
}

// Get fetches one relationship
func (r *RelationshipsResource) Get(ctx context.Context, relationshipID string) (*Relationship, error) {
	var rel *Relationship
	err := r.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/relationships/" + url.PathEscape(relationshipID),
		route:  "/v1/relationships/{id}",
	}, &rel)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, errors.Newf(errors.KindMalformedResponse, "empty response for relationship %s", relationshipID)
	}
	return rel, nil
}
