// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package searchtest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"

	"github.com/platform-engineering-labs/searchprov/pkg/search"
)

var pathPattern = regexp.MustCompile(`^/(datasources|skillsets|indexes|indexers)\('([^']*)'\)(/status)?$`)

// Request is a request received by a Server.
type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Header http.Header
	Body   []byte
}

// Server exposes a search.Service over the REST protocol.
type Server struct {
	*httptest.Server
	svc search.Service

	mu       sync.Mutex
	requests []Request
}

// NewServer starts an HTTP server backed by svc. Close it when done.
func NewServer(svc search.Service) *Server {
	s := &Server{svc: svc}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	query := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  query,
		Header: r.Header.Clone(),
		Body:   body,
	})
	s.mu.Unlock()

	if query["api-version"] == "" {
		writeError(w, http.StatusBadRequest, "MissingApiVersionParameter", "The api-version query parameter is required.")
		return
	}
	if r.Header.Get("api-key") == "" && r.Header.Get("Authorization") == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Access denied due to missing credentials.")
		return
	}

	m := pathPattern.FindStringSubmatch(r.URL.Path)
	if m == nil {
		writeError(w, http.StatusNotFound, "ResourceNotFound", "Unknown path.")
		return
	}
	kind, name, status := search.Kind(m[1]), m[2], m[3] != ""
	ctx := r.Context()

	switch {
	case status && r.Method == http.MethodGet && kind == search.KindIndexer:
		st, err := s.svc.IndexerStatus(ctx, name)
		if err != nil {
			writeRemoteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, "", st)

	case status:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "Unsupported method.")

	case r.Method == http.MethodGet:
		res, err := s.svc.Get(ctx, kind, name)
		if err != nil {
			writeRemoteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res.ETag, res.Body)

	case r.Method == http.MethodPut && r.Header.Get("If-None-Match") == "*":
		res, err := s.svc.Create(ctx, kind, name, body)
		if err != nil {
			writeRemoteError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, res.ETag, res.Body)

	case r.Method == http.MethodPut:
		res, err := s.svc.Update(ctx, kind, name, body, r.Header.Get("If-Match"))
		if err != nil {
			writeRemoteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res.ETag, res.Body)

	case r.Method == http.MethodDelete:
		if err := s.svc.Delete(ctx, kind, name); err != nil {
			writeRemoteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "Unsupported method.")
	}
}

func writeJSON(w http.ResponseWriter, status int, etag string, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	w.WriteHeader(status)
	if raw, ok := v.(json.RawMessage); ok {
		_, _ = w.Write(raw)
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeRemoteError(w http.ResponseWriter, err error) {
	var remote *search.RemoteError
	if errors.As(err, &remote) && remote.StatusCode != 0 {
		writeError(w, remote.StatusCode, remote.Code, remote.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, "InternalServerError", err.Error())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
