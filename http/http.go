package http

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"

	"github.com/nasdf/crdoc/codec"
	"github.com/nasdf/crdoc/core"
	"github.com/nasdf/crdoc/query"

	"github.com/99designs/gqlgen/graphql/playground"
)

// maxBodySize is the largest request body accepted by the sync endpoints.
const maxBodySize = 32 << 20

// Server exposes a document over http.
type Server struct {
	doc    *core.Document
	logger *slog.Logger
	onSave func(r *http.Request) error
}

// Option configures a Server.
type Option func(s *Server)

// WithLogger sets the logger used for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSave sets a function that is called after the document is changed by a request.
func WithSave(fn func(r *http.Request) error) Option {
	return func(s *Server) {
		s.onSave = fn
	}
}

// NewServer returns a new server for the given document.
func NewServer(doc *core.Document, opts ...Option) *Server {
	s := &Server{
		doc:    doc,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe starts an http server bound to the given address.
func ListenAndServe(doc *core.Document, addr string, opts ...Option) error {
	return http.ListenAndServe(addr, NewServer(doc, opts...).Handler())
}

// Handler returns an http.Handler that serves the playground, queries, and sync requests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", playground.Handler("crdoc", "/query"))
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("GET /clock", s.handleClock)
	mux.HandleFunc("POST /changes", s.handleChangesSince)
	mux.HandleFunc("PUT /changes", s.handleReceive)
	return mux
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var params query.Params
	switch r.Method {
	case http.MethodGet:
		p, err := parseQueryParams(r.URL.Query())
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to parse params: %v", err), http.StatusBadRequest)
			return
		}
		params = p

	case http.MethodPost:
		err := json.NewDecoder(r.Body).Decode(&params)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to parse body: %v", err), http.StatusBadRequest)
			return
		}

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	heads := s.doc.Heads()
	resp := query.Execute(r.Context(), s.doc, params)
	if !slices.Equal(heads, s.doc.Heads()) {
		s.save(r)
	}
	writeJSON(w, resp)
}

// handleClock writes the encoded version vector of the document.
func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	data, err := codec.EncodeVersionVector(s.doc.Clock())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.Write(data)
}

// handleChangesSince reads an encoded version vector and writes every change it does not cover.
func (s *Server) handleChangesSince(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	vv, err := codec.DecodeVersionVector(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to parse clock: %v", err), http.StatusBadRequest)
		return
	}
	data, err := s.doc.EncodeChangesSince(vv)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.Write(data)
}

// handleReceive merges an encoded batch of changes into the document.
func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := s.doc.ReceiveBytes(r.Context(), body)
	if res.Applied > 0 {
		s.save(r)
	}
	if err != nil {
		s.logger.Warn("failed to receive changes", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, res)
}

func (s *Server) save(r *http.Request) {
	if s.onSave == nil {
		return
	}
	if err := s.onSave(r); err != nil {
		s.logger.Error("failed to save document", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	out, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(out)
}

func parseQueryParams(values url.Values) (query.Params, error) {
	params := query.Params{
		Query:         values.Get("query"),
		OperationName: values.Get("operationName"),
	}
	if !values.Has("variables") {
		return params, nil
	}
	err := json.Unmarshal([]byte(values.Get("variables")), &params.Variables)
	if err != nil {
		return query.Params{}, err
	}
	return params, nil
}
