package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/keyoku-dev/keyoku-go/pkg/errors"
	"github.com/keyoku-dev/keyoku-go/pkg/logging"
)

// adminHandler exposes runtime controls under /admin
type adminHandler struct {
	server *Server
	mux    *http.ServeMux
}

func newAdminHandler(s *Server) *adminHandler {
	a := &adminHandler{server: s, mux: http.NewServeMux()}
	a.mux.HandleFunc("GET /log-level", a.getLogLevel)
	a.mux.HandleFunc("POST /log-level", a.setLogLevel)
	a.mux.HandleFunc("GET /storage", a.storageCounts)
	return a
}

func (a *adminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// LogLevelRequest changes the level of one component
type LogLevelRequest struct {
	Component string `json:"component"`
	Level     string `json:"level"`
}

// LogLevelResponse reports a component's level
type LogLevelResponse struct {
	Component string `json:"component"`
	Level     string `json:"level"`
	Message   string `json:"message,omitempty"`
}

var validLevels = map[string]logging.LogLevel{
	"debug": logging.LogLevelDebug,
	"info":  logging.LogLevelInfo,
	"warn":  logging.LogLevelWarn,
	"error": logging.LogLevelError,
}

func (a *adminHandler) factory(w http.ResponseWriter) *logging.Factory {
	f := a.server.opts.LogFactory
	if f == nil {
		a.server.writeError(w, errors.New(errors.KindGeneric, "log levels are not managed by this server").
			WithStatus(http.StatusNotImplemented))
	}
	return f
}

func (a *adminHandler) getLogLevel(w http.ResponseWriter, r *http.Request) {
	f := a.factory(w)
	if f == nil {
		return
	}
	component := r.URL.Query().Get("component")
	if component == "" {
		component = "default"
	}
	a.server.writeJSON(w, http.StatusOK, LogLevelResponse{
		Component: component,
		Level:     string(f.Level(component)),
	})
}

func (a *adminHandler) setLogLevel(w http.ResponseWriter, r *http.Request) {
	f := a.factory(w)
	if f == nil {
		return
	}

	var req LogLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.server.writeError(w, errors.Wrap(err, errors.KindValidation, "invalid JSON body"))
		return
	}

	level, ok := validLevels[strings.ToLower(req.Level)]
	if !ok {
		a.server.writeError(w, errors.Newf(errors.KindValidation,
			"invalid log level '%s'. Must be one of: debug, info, warn, error", req.Level))
		return
	}
	component := req.Component
	if component == "" {
		component = "default"
	}

	f.UpdateLevel(component, level)
	a.server.logger.Info("Log level updated",
		slog.String("target_component", component),
		slog.String("level", string(level)),
	)

	a.server.writeJSON(w, http.StatusOK, LogLevelResponse{
		Component: component,
		Level:     string(level),
		Message:   fmt.Sprintf("Log level for component '%s' updated to '%s'", component, level),
	})
}

func (a *adminHandler) storageCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := a.server.store.Count(r.Context())
	if err != nil {
		a.server.writeError(w, errors.Wrap(err, errors.KindServer, "failed to count records"))
		return
	}
	a.server.writeJSON(w, http.StatusOK, map[string]any{"collections": counts})
}
