package keyoku

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// DataResource exports account data
type DataResource struct {
	client *Client
}

// Export starts an export job. Once it completes, Download streams the file.
func (r *DataResource) Export(ctx context.Context) (*JobHandle, error) {
	var accepted *jobAccepted
	if err := r.client.do(ctx, request{method: http.MethodGet, path: "/v1/data/export"}, &accepted); err != nil {
		return nil, err
	}
	return r.client.handleFor(accepted)
}

// Download streams a finished export. The caller must close the returned
// body; the request timeout keeps running until then.
func (r *DataResource) Download(ctx context.Context, jobID string) (io.ReadCloser, error) {
	return r.client.doRaw(ctx, request{
		method: http.MethodGet,
		path:   "/v1/data/export/" + url.PathEscape(jobID) + "/download",
		route:  "/v1/data/export/{id}/download",
		header: http.Header{"Accept": {"*/*"}},
	})
}
