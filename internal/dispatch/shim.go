package dispatch

import (
	"context"
	"log/slog"

	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/reconcile"
	"github.com/roach88/tombstone/internal/rewrite"
)

// Query executes one operation with the given arguments. A host binds it to
// the model and verb the caller invoked.
type Query = func(ctx context.Context, args ir.IRValue) (ir.IRValue, error)

// Invoker executes an arbitrary model operation directly against the host.
type Invoker interface {
	Invoke(ctx context.Context, model string, verb rewrite.Verb, args ir.IRValue) (ir.IRValue, error)
}

// Shim routes operations through the rewrite engine and reconciler.
//
// A Shim holds no per-operation state and is safe for concurrent use.
type Shim struct {
	engine     *rewrite.Engine
	reconciler *reconcile.Reconciler
	invoker    Invoker
	ids        IDGenerator
	logger     *slog.Logger
}

// Option configures a Shim.
type Option func(*Shim)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Shim) {
		s.logger = l
	}
}

// WithIDGenerator sets the operation id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Shim) {
		s.ids = g
	}
}

// NewShim creates a shim over engine. invoker runs operations whose verb
// the engine changed.
func NewShim(engine *rewrite.Engine, invoker Invoker, opts ...Option) *Shim {
	s := &Shim{
		engine:     engine,
		reconciler: reconcile.New(engine.Policies(), engine.Facts()),
		invoker:    invoker,
		ids:        UUIDv7Generator{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle runs one intercepted operation.
//
// Errors from the engine are returned before anything executes. Errors from
// query or the invoker are returned unchanged.
func (s *Shim) Handle(ctx context.Context, d rewrite.Descriptor, query Query) (ir.IRValue, error) {
	opID := s.ids.Generate()
	log := s.logger.With("op", opID, "model", d.Model, "verb", string(d.Verb))

	out, err := s.engine.Rewrite(d)
	if err != nil {
		log.Warn("operation blocked", "error", err)
		return nil, err
	}
	next := out.Descriptor

	if !ir.Equal(d.Args, next.Args) || out.VerbChanged(d) {
		log.Debug("operation rewritten",
			"rewritten_verb", string(next.Verb),
			"fingerprint", fingerprint(next),
			"injected", out.SideChannel != nil,
		)
	}

	var result ir.IRValue
	if out.VerbChanged(d) {
		log.Debug("verb changed, invoking directly", "rewritten_verb", string(next.Verb))
		result, err = s.invoker.Invoke(ctx, next.Model, next.Verb, next.Args)
	} else {
		result, err = query(ctx, next.Args)
	}
	if err != nil {
		return nil, err
	}

	return s.reconciler.Reconcile(d, out.SideChannel, result), nil
}

func fingerprint(d rewrite.Descriptor) string {
	fp, err := ir.Fingerprint(d.Model, string(d.Verb), d.Args)
	if err != nil {
		return "unavailable"
	}
	return fp
}
