// Package server exposes a pedigree store over the record-service protocol
// spoken by the rest adapter, plus a live event stream and Prometheus
// metrics.
package server

import (
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/pedigree/pkg/adapters/rest"
	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/engine"
)

// MaxFormBytes caps the size of a posted pedigree.
const MaxFormBytes = 32 << 20

// Config holds the server collaborators.
type Config struct {
	Store     core.Store
	Source    core.SubjectSource // optional; serves the patient object
	Broker    *engine.Broker     // optional; enables /events
	Metrics   http.Handler       // optional; served on /metrics
	ViewToken string             // bearer token for reads
	EditToken string             // bearer token for reads and writes
	ReadOnly  bool
	Logger    *slog.Logger
}

// Server is the HTTP front of one pedigree.
type Server struct {
	config Config
	logger *slog.Logger
	router chi.Router
}

// New builds the router.
func New(config Config) (*Server, error) {
	if config.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{config: config, logger: config.Logger}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	if s.config.Metrics != nil {
		r.Handle("/metrics", s.config.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireRole(roleView))
		r.Get("/"+rest.ObjectPath(rest.PedigreeClass), s.handleGetPedigree)
		r.Get("/"+rest.ObjectPath(rest.PedigreeClass)+"/history", s.handleHistory)
		r.Get("/"+rest.ObjectPath(rest.PedigreeClass)+"/history/{id}", s.handleGetVersion)
		r.Get("/"+rest.ObjectPath(rest.PatientClass), s.handleGetPatient)
		if s.config.Broker != nil {
			r.Get("/events", s.handleEvents)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireRole(roleEdit))
		r.Post("/"+rest.ObjectPath(rest.PedigreeClass), s.handlePutPedigree)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) handleGetPedigree(w http.ResponseWriter, r *http.Request) {
	text, err := s.config.Store.FetchDocument(r.Context())
	if err != nil {
		s.fail(w, r, http.StatusBadGateway, err)
		return
	}
	obj := rest.Object{ClassName: rest.PedigreeClass}
	obj.Set(rest.PropData, text)
	s.writeXML(w, obj)
}

func (s *Server) handlePutPedigree(w http.ResponseWriter, r *http.Request) {
	if m := r.URL.Query().Get("method"); m != "" && m != http.MethodPut {
		http.Error(w, "unsupported method override", http.StatusBadRequest)
		return
	}
	if s.config.ReadOnly {
		http.Error(w, core.ErrReadOnly.Error(), http.StatusForbidden)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if _, ok := r.PostForm["property#"+rest.PropData]; !ok {
		http.Error(w, "property#data required", http.StatusBadRequest)
		return
	}
	text := r.PostForm.Get("property#" + rest.PropData)
	var image []byte
	if v := r.PostForm.Get("property#" + rest.PropImage); v != "" {
		image = []byte(v)
	}

	ctx := r.Context()
	if reason := r.Header.Get("X-Change-Reason"); reason != "" {
		ctx = core.WithChangeReason(ctx, reason)
	}

	if err := s.config.Store.PersistDocument(ctx, text, image); err != nil {
		if errors.Is(err, core.ErrReadOnly) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	s.logger.Info("pedigree stored", "bytes", len(text), "image_bytes", len(image))
	if s.config.Broker != nil {
		s.config.Broker.Publish(core.NewEvent(core.EventStoreChanged, 0, "remote save", nil))
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	vs, ok := s.config.Store.(core.VersionedStore)
	if !ok {
		http.NotFound(w, r)
		return
	}
	versions, err := vs.Versions(r.Context())
	if err != nil {
		s.fail(w, r, http.StatusBadGateway, err)
		return
	}
	h := rest.History{Revisions: make([]rest.Revision, 0, len(versions))}
	for _, v := range versions {
		h.Revisions = append(h.Revisions, rest.Revision{ID: v.ID, Created: v.Created.Unix(), Message: v.Message})
	}
	s.writeXML(w, h)
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	vs, ok := s.config.Store.(core.VersionedStore)
	if !ok {
		http.NotFound(w, r)
		return
	}
	text, err := vs.FetchVersion(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, core.ErrVersionNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.fail(w, r, http.StatusBadGateway, err)
		return
	}
	obj := rest.Object{ClassName: rest.PedigreeClass}
	obj.Set(rest.PropData, text)
	s.writeXML(w, obj)
}

func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	if s.config.Source == nil {
		http.NotFound(w, r)
		return
	}
	p, err := s.config.Source.FetchSubjectMetadata(r.Context())
	if err != nil {
		s.fail(w, r, http.StatusBadGateway, err)
		return
	}
	obj := rest.Object{ClassName: rest.PatientClass}
	obj.Set(rest.PropFirstName, p.FirstName)
	obj.Set(rest.PropLastName, p.LastName)
	obj.Set(rest.PropGender, string(p.Gender))
	if p.BirthDate != nil {
		obj.Set(rest.PropBirthDate, *p.BirthDate)
	}
	if p.DeathDate != nil {
		obj.Set(rest.PropDeathDate, *p.DeathDate)
	}
	s.writeXML(w, obj)
}

func (s *Server) writeXML(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, xml.Header)
	if err := xml.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, code int, err error) {
	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	http.Error(w, http.StatusText(code), code)
}
