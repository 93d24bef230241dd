// BSD 2-Clause License
//
// Copyright (c) 2020, Andrea Giacomo Baldan
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
// * Redistributions of source code must retain the above copyright notice, this
//   list of conditions and the following disclaimer.
//
// * Redistributions in binary form must reproduce the above copyright notice,
//   this list of conditions and the following disclaimer in the documentation
//   and/or other materials provided with the distribution.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
// FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
// CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
// OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

// Package httpapi exposes the Job Orchestrator, Task Persistence, and
// State Store over HTTP: submit a job, poll its progress, fetch its
// report, inspect state-store entries, and receive GitHub push
// webhooks. Routes are a flat http.ServeMux of closures over their
// backing dependency, wrapped by a request-logging middleware, served
// by an *http.Server and shut down on SIGINT/SIGTERM.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fullselfcoding/fsc-server/internal/domain"
	"github.com/fullselfcoding/fsc-server/internal/orchestrator"
	"github.com/fullselfcoding/fsc-server/internal/persistence"
	"github.com/fullselfcoding/fsc-server/internal/state"
	"github.com/fullselfcoding/fsc-server/internal/webhook"
)

// Orchestrator is the subset of *orchestrator.Orchestrator the HTTP
// surface depends on, narrowed so handler tests can supply a fake.
type Orchestrator interface {
	SubmitJob(input domain.JobInput) (string, error)
	StopJob(id string) error
	SubmitGitHubJob(repoURL, branch string) (string, error)
}

var _ Orchestrator = (*orchestrator.Orchestrator)(nil)
var _ webhook.JobSubmitter = (*orchestrator.Orchestrator)(nil)

// Server wraps an *http.Server bound to the job/report/state routes.
type Server struct {
	server *http.Server
	logger *zap.SugaredLogger
}

// New builds a Server. The webhook route is registered whatever
// githubSecret holds, and every payload is checked against it by
// github.ValidatePayload; an empty githubSecret does not turn signature
// checking off.
func New(addr string, orch Orchestrator, persist *persistence.Store, store *state.Store, githubSecret string, logger *zap.SugaredLogger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/jobs", handleJobs(orch, persist))
	mux.Handle("/jobs/", handleJob(orch, persist))
	mux.Handle("/state/", handleState(store))
	mux.Handle("/webhooks/github", webhook.Handler(githubSecret, orch, logger))

	return &Server{
		logger: logger,
		server: &http.Server{
			Addr:           addr,
			Handler:        logReq(logger)(mux),
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    30 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
	}
}

// Run starts the server and blocks until SIGINT/SIGTERM, then shuts it
// down gracefully.
func (s *Server) Run() error {
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		if s.logger != nil {
			s.logger.Info("shutting down")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.server.SetKeepAlivesEnabled(false)
		if err := s.server.Shutdown(ctx); err != nil && s.logger != nil {
			s.logger.Errorw("shutdown error", "error", err)
		}
		close(done)
	}()

	if s.logger != nil {
		s.logger.Infow("listening", "addr", s.server.Addr)
	}
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-done
	return nil
}

func logReq(l *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			if l != nil {
				l.Infow("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
			}
		})
	}
}

type submitRequest struct {
	Kind   domain.InputKind       `json:"kind"`
	URL    string                 `json:"url"`
	Config *domain.ConfigOverride `json:"config,omitempty"`
}

type submitResponse struct {
	ID string `json:"id"`
}

// handleJobs serves POST /jobs (submit) and GET /jobs (history
// listing with ?limit=&offset=).
func handleJobs(orch Orchestrator, persist *persistence.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req submitRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			id, err := orch.SubmitJob(domain.JobInput{Kind: req.Kind, URL: req.URL, Config: req.Config})
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(submitResponse{ID: id})
		case http.MethodGet:
			limit := intParam(r, "limit", 20)
			offset := intParam(r, "offset", 0)
			page, err := persist.History(limit, offset)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(page)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

// handleJob serves GET /jobs/{id}, GET /jobs/{id}/report, and
// POST /jobs/{id}/stop.
func handleJob(orch Orchestrator, persist *persistence.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/jobs/")
		id, sub, _ := strings.Cut(rest, "/")
		if id == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		switch {
		case sub == "" && r.Method == http.MethodGet:
			job, ok, err := persist.LoadJob(id)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(job)
		case sub == "report" && r.Method == http.MethodGet:
			results, ok, err := persist.LoadResults(id)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(results)
		case sub == "stop" && r.Method == http.MethodPost:
			if err := orch.StopJob(id); err != nil {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusAccepted)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

// handleState serves GET /state/{key}, a read-only view onto the State
// Store for inspecting job progress mirrored there by the orchestrator.
func handleState(store *state.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		key := strings.TrimPrefix(r.URL.Path, "/state/")
		if key == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		entry, ok := store.Get(key)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entry)
	}
}

func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
