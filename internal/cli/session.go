package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/tessera/internal/compiler"
	"github.com/roach88/tessera/internal/datastore"
	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/logger"
	"github.com/roach88/tessera/internal/metrics"
	"github.com/roach88/tessera/internal/model"
	"github.com/roach88/tessera/internal/store"
)

// session is an open runtime: schema loaded, registry initialized and a
// DataStore over the configured engine. Storage opens lazily on first
// use.
type session struct {
	schema   *ir.SchemaDescriptor
	registry *model.Registry
	ctors    map[string]*model.Constructor
	store    *datastore.DataStore
	logger   zerolog.Logger
}

// sessionOption adjusts the DataStore a session builds.
type sessionOption func(*sessionConfig)

type sessionConfig struct {
	registerer prometheus.Registerer
}

func withRegisterer(reg prometheus.Registerer) sessionOption {
	return func(c *sessionConfig) { c.registerer = reg }
}

func openSession(opts *RootOptions, cmd *cobra.Command, extra ...sessionOption) (*session, error) {
	var cfg sessionConfig
	for _, opt := range extra {
		opt(&cfg)
	}

	log := logger.New(logger.Config{
		Level:  opts.LogLevel,
		Pretty: opts.Format != "json",
		Output: cmd.ErrOrStderr(),
	})
	if opts.Verbose {
		log = log.Level(zerolog.DebugLevel)
	}

	desc, err := compiler.LoadSchema(opts.Schema)
	if err != nil {
		return nil, err
	}

	registry := model.NewRegistry()
	ctors, err := registry.InitSchema(desc)
	if err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	var factory store.Factory
	switch opts.Engine {
	case "memory":
		factory = store.MemoryFactory(store.WithSnapshotFile(opts.DB))
	default:
		factory = store.SQLiteFactory(opts.DB)
	}

	dsOpts := []datastore.Option{datastore.WithLogger(log)}
	if cfg.registerer != nil {
		dsOpts = append(dsOpts, datastore.WithMetrics(metrics.New(cfg.registerer)))
	}

	log.Debug().
		Str("schema", opts.Schema).
		Str("engine", opts.Engine).
		Str("db", opts.DB).
		Int("models", len(desc.Models)).
		Msg("session opened")

	return &session{
		schema:   desc,
		registry: registry,
		ctors:    ctors,
		store:    datastore.New(registry, factory, dsOpts...),
		logger:   log,
	}, nil
}

// model resolves a model constructor by name.
func (s *session) model(name string) (*model.Constructor, error) {
	ctor, ok := s.ctors[name]
	if !ok {
		return nil, fmt.Errorf("unknown type %q: %w", name, model.ErrNotAModel)
	}
	if !ctor.IsModel() {
		return nil, fmt.Errorf("%s: %w", name, model.ErrNotAModel)
	}
	return ctor, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// recordView is the output form of a record.
type recordView struct {
	Model  string         `json:"model"`
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

func (v recordView) String() string {
	data, err := ir.MarshalCanonical(mustIR(v.Fields))
	if err != nil {
		return fmt.Sprintf("%s %s", v.Model, v.ID)
	}
	return fmt.Sprintf("%s %s %s", v.Model, v.ID, data)
}

func mustIR(fields map[string]any) ir.IRValue {
	v, err := ir.FromNative(fields)
	if err != nil {
		return ir.IRNull{}
	}
	return v
}

func viewOf(rec *model.Record) recordView {
	native, _ := ir.ToNative(rec.Fields()).(map[string]any)
	return recordView{Model: rec.Model(), ID: rec.ID(), Fields: native}
}

func viewsOf(recs []*model.Record) []recordView {
	out := make([]recordView, len(recs))
	for i, rec := range recs {
		out[i] = viewOf(rec)
	}
	return out
}
