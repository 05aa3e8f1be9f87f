// Package server exposes the assignment flow over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/entrhq/enroll/pkg/abm"
	"github.com/entrhq/enroll/pkg/assign"
	"github.com/entrhq/enroll/pkg/config"
	"github.com/entrhq/enroll/pkg/dispatch"
	"github.com/entrhq/enroll/pkg/logging"
)

// Assigner runs one assignment to completion.
type Assigner interface {
	Assign(ctx context.Context, req assign.Request) assign.Result
}

// Notifier delivers results to callback URLs.
type Notifier interface {
	Allowed(baseURL string) error
	Dispatch(mark, baseURL string, p dispatch.Payload)
}

// Renewer refreshes the console session.
type Renewer interface {
	Renew(ctx context.Context) error
}

// Invoker sends a raw console operation.
type Invoker interface {
	Invoke(ctx context.Context, mark string, op abm.Operation, body string) (string, error)
}

// Server routes the front door endpoints.
type Server struct {
	cfg      *config.Config
	assigner Assigner
	notifier Notifier
	sessions Renewer
	console  Invoker
	logger   *logging.Logger
	mux      *http.ServeMux
}

// New creates a server and registers its routes.
func New(cfg *config.Config, assigner Assigner, notifier Notifier, sessions Renewer, console Invoker, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		cfg:      cfg,
		assigner: assigner,
		notifier: notifier,
		sessions: sessions,
		console:  console,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /assignDevice", s.handleAssignDevice)
	s.mux.HandleFunc("GET /assignDeviceAndCallBack", s.handleAssignDeviceAndCallBack)
	s.mux.HandleFunc("GET /makeGql", s.handleMakeGql)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler. A panicking handler answers 500.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Errorf("Error processing request %s: %v\n%s", r.URL.Path, rec, debug.Stack())
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}()
	s.mux.ServeHTTP(w, r)
}

// envelope is the JSON shape of every answer. The callback endpoint reports
// success and errCode as strings, the others as bool and number.
type envelope struct {
	ErrMessage string      `json:"errMessage"`
	Result     interface{} `json:"result"`
	Success    interface{} `json:"success"`
	ErrCode    interface{} `json:"errCode"`
}

type callbackResult struct {
	ID        string `json:"id"`
	RPAResult string `json:"rpaResult"`
	Message   string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warnf("failed to write response: %v", err)
	}
}

// sentinel maps an outcome to the configured result string.
func (s *Server) sentinel(outcome assign.Outcome) string {
	if outcome == assign.Success {
		return s.cfg.Response.Success
	}
	return s.cfg.Response.Failed
}
