package sqlhost

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/rewrite"
	"github.com/roach88/tombstone/internal/schema"
)

// Query executes one operation with the given arguments.
type Query = func(ctx context.Context, args ir.IRValue) (ir.IRValue, error)

// Interceptor wraps every operation of one model.
type Interceptor = func(ctx context.Context, d rewrite.Descriptor, query Query) (ir.IRValue, error)

// Recorder observes every operation the client executes, after any
// interceptor has rewritten it.
type Recorder func(model string, verb rewrite.Verb, args ir.IRValue)

// Client executes model operations against a SQLite database.
//
// Thread-safety: Client is safe for concurrent use. Interceptors should be
// installed before operations start.
type Client struct {
	db    *sql.DB
	facts *schema.Facts

	mu           sync.RWMutex
	interceptors map[string]Interceptor
	recorder     Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithRecorder installs a recorder for executed operations.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// Open creates or opens a SQLite database at the given path and creates a
// table for every model in facts.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, facts *schema.Facts, opts ...Option) (*Client, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := createTables(db, facts); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	c := &Client{
		db:           db,
		facts:        facts,
		interceptors: make(map[string]Interceptor),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - operations issued here bypass interceptors.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Facts returns the schema facts the tables were created from.
func (c *Client) Facts() *schema.Facts {
	return c.facts
}

// Models lists the models the client can execute operations on.
func (c *Client) Models() []string {
	return c.facts.Models()
}

// Intercept installs fn in front of every operation on model, replacing
// any interceptor installed before.
func (c *Client) Intercept(model string, fn Interceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interceptors[model] = fn
}

// Do runs one operation the way application code issues it: through the
// interceptor installed for the model, if any.
func (c *Client) Do(ctx context.Context, model string, verb rewrite.Verb, args ir.IRValue) (ir.IRValue, error) {
	c.mu.RLock()
	fn, ok := c.interceptors[model]
	c.mu.RUnlock()

	query := func(ctx context.Context, args ir.IRValue) (ir.IRValue, error) {
		return c.Invoke(ctx, model, verb, args)
	}
	if !ok {
		return query(ctx, args)
	}
	return fn(ctx, rewrite.Descriptor{Model: model, Verb: verb, Args: args}, query)
}

// Invoke executes an operation directly, bypassing interceptors.
func (c *Client) Invoke(ctx context.Context, model string, verb rewrite.Verb, args ir.IRValue) (ir.IRValue, error) {
	m, ok := c.facts.Model(model)
	if !ok {
		return nil, invalid(model, "unknown model")
	}
	if args == nil {
		args = ir.IRObject{}
	}
	obj, ok := args.(ir.IRObject)
	if !ok {
		return nil, invalid(model, "%s args must be an object, got %T", verb, args)
	}

	if c.recorder != nil {
		c.recorder(model, verb, ir.Clone(obj))
	}

	switch verb {
	case rewrite.FetchOne, rewrite.FetchOneOrThrow, rewrite.FetchFirst, rewrite.FetchFirstOrThrow,
		rewrite.FetchMany, rewrite.Count, rewrite.Aggregate, rewrite.GroupBy:
		return c.read(ctx, c.db, m, verb, obj)
	case rewrite.Create, rewrite.CreateMany, rewrite.Update, rewrite.UpdateMany,
		rewrite.Upsert, rewrite.Delete, rewrite.DeleteMany:
		return c.write(ctx, m, verb, obj)
	default:
		return nil, invalid(model, "unsupported verb %q", verb)
	}
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}
