package keyoku

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/propagation"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
	"github.com/keyoku-dev/keyoku-go/pkg/logging"
)

// Params is an ordered set of query parameters. Add silently drops unset
// values so optional filters never reach the wire as empty strings.
type Params struct {
	pairs [][2]string
}

// Add appends key=value unless value is nil, a nil pointer, an empty string
// or a zero time. Pointers are dereferenced; slices of strings are joined
// with commas.
func (p *Params) Add(key string, value any) *Params {
	s, ok := formatParam(value)
	if ok {
		p.pairs = append(p.pairs, [2]string{key, s})
	}
	return p
}

// Len returns the number of encoded pairs
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.pairs)
}

// Encode renders the parameters in insertion order
func (p *Params) Encode() string {
	if p.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for i, kv := range p.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[1]))
	}
	return b.String()
}

func formatParam(value any) (string, bool) {
	if value == nil {
		return "", false
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	value = rv.Interface()

	switch v := value.(type) {
	case string:
		return v, v != ""
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case time.Time:
		return v.UTC().Format(time.RFC3339), !v.IsZero()
	case []string:
		return strings.Join(v, ","), len(v) > 0
	case fmt.Stringer:
		s := v.String()
		return s, s != ""
	default:
		return fmt.Sprint(v), true
	}
}

// request describes one call through the dispatcher
type request struct {
	method string
	path   string
	// route is the path template used for span names and metrics, e.g.
	// /v1/memories/{id}. Defaults to path.
	route  string
	query  *Params
	body   any
	header http.Header
}

func (r request) operation() string {
	route := r.route
	if route == "" {
		route = r.path
	}
	return r.method + " " + route
}

// do sends r and decodes a successful JSON response into out. An empty body
// leaves out untouched, so a pointer-to-pointer out reads as nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	return c.dispatch(ctx, r, func(callCtx context.Context, resp *http.Response) error {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return c.transportError(ctx, callCtx, err)
		}
		return decodeResponse(resp, body, out)
	}, true)
}

// doRaw sends r and hands back the open response on success. The per-call
// timeout keeps running until the caller closes the body.
func (c *Client) doRaw(ctx context.Context, r request) (io.ReadCloser, error) {
	var raw *http.Response
	err := c.dispatch(ctx, r, func(callCtx context.Context, resp *http.Response) error {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return c.transportError(ctx, callCtx, err)
			}
			return classify(resp, body)
		}
		raw = resp
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	// dispatch has swapped in a body that releases the call on Close
	return raw.Body, nil
}

// dispatch is the single chokepoint every call flows through. handle runs
// while the per-call context is live. When releaseOnReturn is false and
// handle succeeds, cancellation is deferred to the response body's Close.
func (c *Client) dispatch(ctx context.Context, r request, handle func(context.Context, *http.Response) error, releaseOnReturn bool) error {
	return c.interceptor.InterceptRequest(ctx, r.operation(), func(ctx context.Context) error {
		start := time.Now()
		ctx, span := c.tel.start(ctx, r)

		status := 0
		err := func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.cfg.timeout)
			keepAlive := false
			defer func() {
				if !keepAlive {
					cancel()
				}
			}()

			req, err := c.newHTTPRequest(callCtx, r)
			if err != nil {
				return err
			}

			resp, err := c.transport.Do(req)
			if err != nil {
				return c.transportError(ctx, callCtx, err)
			}
			status = resp.StatusCode

			if err := handle(callCtx, resp); err != nil {
				return err
			}
			if !releaseOnReturn {
				keepAlive = true
				resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			}
			return nil
		}()

		c.tel.end(ctx, span, r, status, err, time.Since(start))
		return err
	})
}

func (c *Client) newHTTPRequest(ctx context.Context, r request) (*http.Request, error) {
	target := c.cfg.baseURL + r.path
	if q := r.query.Encode(); q != "" {
		target += "?" + q
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindValidation, "failed to encode request body")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConfiguration, "failed to build request")
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.userAgent)
	if c.cfg.entityID != "" {
		req.Header.Set("X-Entity-ID", c.cfg.entityID)
	}
	if id := logging.GetRequestID(ctx); id != "" {
		req.Header.Set(logging.RequestIDHeader, id)
	}
	// per-request headers replace the defaults above
	for name, values := range r.header {
		req.Header.Del(name)
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	c.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	return req, nil
}

// transportError classifies a failure that happened before a response could
// be read. parent is the caller's context, callCtx the per-call one.
func (c *Client) transportError(parent, callCtx context.Context, err error) error {
	switch {
	case stderrors.Is(parent.Err(), context.Canceled):
		return errors.Wrap(err, errors.KindCanceled, "request canceled")
	case stderrors.Is(parent.Err(), context.DeadlineExceeded):
		// the caller's deadline, not the per-call timeout
		return errors.Wrap(err, errors.KindCanceled, "request canceled: context deadline exceeded")
	case stderrors.Is(callCtx.Err(), context.DeadlineExceeded), stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrapf(err, errors.KindClientTimeout, "request timed out after %s", c.cfg.timeout)
	default:
		return errors.Wrap(err, errors.KindTransport, "request failed")
	}
}

// cancelOnClose releases the per-call context when a streamed body is closed
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
