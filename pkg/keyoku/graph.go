package keyoku

import (
	"context"
	"net/http"
)

const defaultMaxDepth = 5

type pathEnvelope struct {
	Path          bool           `json:"path"`
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

// GraphResource runs graph queries
type GraphResource struct {
	client *Client
}

// FindPath looks for a chain of relationships from one entity to another.
// It returns nil with no error when the entities are not connected within
// MaxDepth hops (5 by default).
func (r *GraphResource) FindPath(ctx context.Context, from, to string, opts *FindPathOptions) (*PathResult, error) {
	maxDepth := defaultMaxDepth
	var types []string
	if opts != nil {
		if opts.MaxDepth > 0 {
			maxDepth = opts.MaxDepth
		}
		types = opts.RelationshipTypes
	}

	query := (&Params{}).
		Add("from", from).
		Add("to", to).
		Add("max_depth", maxDepth).
		Add("relationship_types", types)

	var env pathEnvelope
	if err := r.client.do(ctx, request{method: http.MethodGet, path: "/v1/graph/path", query: query}, &env); err != nil {
		return nil, err
	}
	if !env.Path {
		return nil, nil
	}

	return &PathResult{
		Entities:      nonNil(env.Entities),
		Relationships: nonNil(env.Relationships),
		Length:        len(env.Relationships),
	}, nil
}
