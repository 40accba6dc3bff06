package keyoku

import (
	"context"
	"net/http"
)

// AuditResource reads the audit trail
type AuditResource struct {
	client *Client
}

// List returns audit logs matching q. Unset filters are omitted, leaving
// paging to the service defaults.
func (r *AuditResource) List(ctx context.Context, q *AuditLogsQuery) (*AuditLogsResponse, error) {
	query := &Params{}
	if q != nil {
		query.
			Add("operation", q.Operation).
			Add("resource_type", q.ResourceType).
			Add("start_date", q.StartDate).
			Add("end_date", q.EndDate).
			Add("limit", positive(q.Limit)).
			Add("offset", positive(q.Offset))
	}

	var resp *AuditLogsResponse
	if err := r.client.do(ctx, request{method: http.MethodGet, path: "/v1/audit-logs", query: query}, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &AuditLogsResponse{}
	}
	resp.AuditLogs = nonNil(resp.AuditLogs)
	return resp, nil
}

// positive returns nil for n <= 0 so Params drops it
func positive(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}
