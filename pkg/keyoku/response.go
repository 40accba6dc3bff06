package keyoku

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
)

// decodeResponse turns a completed exchange into a value or a typed error
func decodeResponse(resp *http.Response, body []byte, out any) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return decodeSuccess(resp.StatusCode, body, out)
	}
	return classify(resp, body)
}

// decodeSuccess decodes a 2xx body. An empty body is the null value and
// leaves out untouched. A body that is not JSON is a broken contract and is
// reported even when the caller discards the value.
func decodeSuccess(status int, body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if out == nil {
		if !json.Valid(body) {
			return errors.New(errors.KindMalformedResponse, "response body is not valid JSON").WithStatus(status)
		}
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, errors.KindMalformedResponse, "failed to decode response body").WithStatus(status)
	}
	return nil
}

// classify maps a non-2xx response to a typed error. A body in the
// {"error": {"message", "code"}} envelope supplies message and code; a
// JSON body without a message falls back to the kind's default; anything
// else falls back to the status text.
func classify(resp *http.Response, body []byte) error {
	var message, code string

	var payload errors.Payload
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != nil {
			message = payload.Error.Message
			code = payload.Error.Code
		}
	} else {
		message = statusText(resp)
	}

	return errors.FromStatus(resp.StatusCode, resp.Header, message, code)
}

// statusText strips the numeric prefix from resp.Status ("404 Not Found")
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(resp.Status)
	text = strings.TrimPrefix(text, strconv.Itoa(resp.StatusCode))
	text = strings.TrimSpace(text)
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
