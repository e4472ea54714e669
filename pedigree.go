package pedigree

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/pedigree/internal/platform"
	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/engine"
)

// Version exposes the version of the library.
// See version.go for the implementation using go:embed.

// --- Types ---

// Session is a wired engine together with its graph, view, history and store.
type Session = platform.Session

// LoadOptions tune one load or import.
type LoadOptions = engine.LoadOptions

// --- Configuration ---

// Option defines a functional option for configuring a Session.
type Option = platform.Option

// Adapter names.
const (
	AdapterFS       = platform.AdapterFS
	AdapterSQLite   = platform.AdapterSQLite
	AdapterPostgres = platform.AdapterPostgres
	AdapterS3       = platform.AdapterS3
	AdapterRedis    = platform.AdapterRedis
	AdapterREST     = platform.AdapterREST
	AdapterMemory   = platform.AdapterMemory
)

// WithAutoInit enables automatic initialization of the pedigree directory.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithVersioning enables or disables git history for the fs adapter.
func WithVersioning(enabled bool) Option {
	return platform.WithVersioning(enabled)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithMustExist ensures the pedigree directory must already exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithLogger sets the logger for the session.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithStore allows injecting a custom storage adapter.
func WithStore(store core.Store) Option {
	return platform.WithStore(store)
}

// WithAdapter allows specifying the storage adapter to use by name.
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithSystemDir allows specifying the hidden directory name (e.g. ".pedigree").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithKey names the pedigree inside a shared backend.
func WithKey(key string) Option {
	return platform.WithKey(key)
}

// WithToken sets the bearer token of the rest adapter.
func WithToken(token string) Option {
	return platform.WithToken(token)
}

// WithS3 configures the s3 adapter.
func WithS3(prefix, region, endpoint string, pathStyle bool) Option {
	return platform.WithS3(prefix, region, endpoint, pathStyle)
}

// WithEventBuffer allows specifying the size of event subscriptions.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithReadOnly enables read-only mode.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithDevSafety controls the sandbox used when running via `go run`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithSubjectSource sets where proband metadata comes from.
func WithSubjectSource(src core.SubjectSource) Option {
	return platform.WithSubjectSource(src)
}

// WithSubjectCache memoizes remote subject metadata for ttl.
func WithSubjectCache(ttl time.Duration) Option {
	return platform.WithSubjectCache(ttl)
}

// WithSnapshots enables or disables the SVG image saved with each document.
func WithSnapshots(enabled bool) Option {
	return platform.WithSnapshots(enabled)
}

// WithTemplates sets the handler invoked when the store holds no document.
func WithTemplates(h core.TemplateHandler) Option {
	return platform.WithTemplates(h)
}

// WithObserver registers an engine event observer.
func WithObserver(obs core.Observer) Option {
	return platform.WithObserver(obs)
}

// --- Factory ---

// New opens the store at uri and wires a session around it.
func New(uri string, opts ...Option) (*Session, error) {
	return platform.New(uri, opts...)
}

// OpenStore builds and initializes a store without an engine.
func OpenStore(ctx context.Context, uri string, opts ...Option) (core.Store, error) {
	return platform.OpenStore(ctx, uri, opts...)
}

// --- Safety & Utils ---

// ResolvePath determines the actual directory used by the fs adapter.
func ResolvePath(userPath string, forceTemp bool) string {
	return platform.ResolvePath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot looks upwards for a pedigree directory.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
