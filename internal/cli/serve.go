package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/tessera/internal/datastore"
	"github.com/roach88/tessera/internal/model"
	"github.com/roach88/tessera/internal/observe"
	"github.com/roach88/tessera/internal/predicate"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only HTTP API over the store",
		Long: `Serve the store over HTTP until interrupted.

Endpoints:
  GET /health
  GET /metrics                      Prometheus metrics
  GET /api/models                   model names
  GET /api/models/{model}           records; ?where=...&page=&limit=
  GET /api/models/{model}/{id}      one record
  GET /api/events                   change events as NDJSON; ?model=&id=&where=`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8080", "listen address")
	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	reg := prometheus.NewRegistry()
	s, err := openSession(opts.RootOptions, cmd, withRegisterer(reg))
	if err != nil {
		return formatter.Fail("open store", err)
	}
	defer s.Close()

	server := &http.Server{
		Addr:              opts.Addr,
		Handler:           NewServer(s.store, s.ctors, reg, s.logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", opts.Addr).Msg("serving")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return WrapExitError(ExitCommandError, "serve", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Server exposes a DataStore over HTTP.
type Server struct {
	store    *datastore.DataStore
	ctors    map[string]*model.Constructor
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
}

// NewServer creates a server. gatherer may be nil, in which case
// /metrics is not routed.
func NewServer(store *datastore.DataStore, ctors map[string]*model.Constructor, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	return &Server{store: store, ctors: ctors, gatherer: gatherer, logger: logger}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/models", s.handleListModels).Methods("GET")
	api.HandleFunc("/models/{model}", s.handleQuery).Methods("GET")
	api.HandleFunc("/models/{model}/{id}", s.handleGet).Methods("GET")
	api.HandleFunc("/events", s.handleEvents).Methods("GET")
	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "tessera"})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.ctors))
	for name, ctor := range s.ctors {
		if ctor.IsModel() {
			names = append(names, name)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"models": sortedStrings(names)})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctor, ok := s.model(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	p, err := predicate.FromClauses(q["where"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err1 := parseUint(q.Get("page"))
	limit, err2 := parseUint(q.Get("limit"))
	if err := errors.Join(err1, err2); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.store.Query(r.Context(), ctor, p, datastore.WithPage(page, limit))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	recs := res.Records
	if res.Single {
		recs = []*model.Record{res.Record}
	}
	respondJSON(w, http.StatusOK, QueryResult{Model: ctor.Name(), Count: len(recs), Records: viewsOf(recs)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ctor, ok := s.model(w, r)
	if !ok {
		return
	}
	rec, err := s.store.QueryByID(r.Context(), ctor, mux.Vars(r)["id"])
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, viewOf(rec))
}

// eventView is the wire form of a change event.
type eventView struct {
	Seq    int64      `json:"seq"`
	ID     string     `json:"id"`
	Op     string     `json:"op"`
	Record recordView `json:"record"`
}

// handleEvents streams change events as newline-delimited JSON until the
// client goes away or the store closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var target any
	if name := q.Get("model"); name != "" {
		ctor, ok := s.ctors[name]
		if !ok {
			respondError(w, http.StatusNotFound, "unknown model "+name)
			return
		}
		target = ctor
		if id := q.Get("id"); id != "" {
			rec, err := s.store.QueryByID(r.Context(), ctor, id)
			if err != nil {
				s.respondStoreError(w, err)
				return
			}
			target = rec
		}
	}

	var fn predicate.CriteriaFunc
	if clauses := q["where"]; len(clauses) > 0 {
		p, err := predicate.FromClauses(clauses)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		fn = func(*predicate.Criteria) predicate.Predicate { return p }
	}

	sub, err := s.store.Observe(r.Context(), target, fn)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := enc.Encode(viewOfEvent(ev)); err != nil {
				s.logger.Debug().Err(err).Msg("event stream closed")
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func viewOfEvent(ev observe.ChangeEvent) eventView {
	return eventView{Seq: ev.Seq, ID: ev.ID, Op: ev.Op.String(), Record: viewOf(ev.Element)}
}

func (s *Server) model(w http.ResponseWriter, r *http.Request) (*model.Constructor, bool) {
	name := mux.Vars(r)["model"]
	ctor, ok := s.ctors[name]
	if !ok || !ctor.IsModel() {
		respondError(w, http.StatusNotFound, "unknown model "+name)
		return nil, false
	}
	return ctor, true
}

func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	code, _ := classify(err)
	status := http.StatusInternalServerError
	switch code {
	case ErrCodeNotFound:
		status = http.StatusNotFound
	case ErrCodeInvalidPredicate, ErrCodeNotAModel, ErrCodeFieldError:
		status = http.StatusBadRequest
	default:
		s.logger.Error().Err(err).Msg("store request failed")
	}
	respondError(w, status, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func parseUint(s string) (uint, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	return uint(n), err
}

func sortedStrings(in []string) []string {
	slices.Sort(in)
	return in
}
