package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/pedigree/pkg/core"
)

// Adapter names accepted by WithAdapter.
const (
	AdapterFS       = "fs"
	AdapterSQLite   = "sqlite"
	AdapterPostgres = "postgres"
	AdapterS3       = "s3"
	AdapterRedis    = "redis"
	AdapterREST     = "rest"
	AdapterMemory   = "memory"
)

// Adapters lists every adapter name.
var Adapters = []string{AdapterFS, AdapterSQLite, AdapterPostgres, AdapterS3, AdapterRedis, AdapterREST, AdapterMemory}

// options holds the internal configuration for a pedigree session.
type options struct {
	store     core.Store
	source    core.SubjectSource
	templates core.TemplateHandler
	observers []core.Observer
	logger    *slog.Logger
	adapter   string
	config    map[string]interface{}
}

// Option defines a functional option for configuring a session.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter: AdapterFS,
		config:  make(map[string]interface{}),
	}
}

func (o *options) string(key string) string {
	v, _ := o.config[key].(string)
	return v
}

func (o *options) int(key string) int {
	v, _ := o.config[key].(int)
	return v
}

func (o *options) bool(key string) bool {
	v, _ := o.config[key].(bool)
	return v
}

// WithAutoInit enables automatic initialization of the pedigree directory
// (creates directory and git init).
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.config["auto_init"] = auto
	}
}

// WithVersioning enables or disables git history for the fs adapter.
// By default, versioning is enabled for new directories.
func WithVersioning(enabled bool) Option {
	return func(o *options) {
		o.config["gitless"] = !enabled
	}
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithMustExist ensures the pedigree directory must already exist.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore injects a custom store. The adapter setting is then ignored.
func WithStore(store core.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithAdapter selects the storage adapter by name (see Adapters).
// Defaults to "fs".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithSystemDir sets the hidden directory name (e.g. ".pedigree").
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithKey names the pedigree inside a shared backend (SQL table, Redis
// namespace, S3 prefix). Usually the patient identifier.
func WithKey(key string) Option {
	return func(o *options) {
		o.config["key"] = key
	}
}

// WithToken sets the bearer token of the rest adapter.
func WithToken(token string) Option {
	return func(o *options) {
		o.config["token"] = token
	}
}

// WithS3 configures the s3 adapter. The uri is the bucket.
func WithS3(prefix, region, endpoint string, pathStyle bool) Option {
	return func(o *options) {
		o.config["s3_prefix"] = prefix
		o.config["s3_region"] = region
		o.config["s3_endpoint"] = endpoint
		o.config["s3_path_style"] = pathStyle
	}
}

// WithEventBuffer sets the capacity of event subscriptions.
// Zero means default (100).
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.config["event_buffer"] = size
	}
}

// WithWatcherErrorHandler registers a callback for errors of the fs watcher.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["watcher_error_handler"] = fn
	}
}

// WithReadOnly enables read-only mode.
// In this mode:
// 1. Saves return ErrReadOnly.
// 2. Initialization (Mkdir, Git Init) is skipped.
// 3. Dev Safety Lock (go run temp dir) is BYPASSED (uses real path).
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.config["read_only"] = enabled
	}
}

// WithDevSafety controls the sandbox used when running via `go run`.
// By default (true), the fs adapter is redirected to a temporary directory
// to prevent accidental data loss.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}

// WithSubjectSource sets where proband metadata comes from. Without it the
// rest adapter reads the patient record, and the fs adapter reads
// patient.yaml next to the document when present.
func WithSubjectSource(src core.SubjectSource) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithSubjectCache memoizes remote subject metadata for ttl.
func WithSubjectCache(ttl time.Duration) Option {
	return func(o *options) {
		o.config["subject_cache"] = ttl
	}
}

// WithSnapshots enables or disables the SVG image saved with each document.
// Enabled by default.
func WithSnapshots(enabled bool) Option {
	return func(o *options) {
		o.config["snapshots"] = enabled
	}
}

// WithTemplates sets the handler invoked when the store holds no document.
func WithTemplates(h core.TemplateHandler) Option {
	return func(o *options) {
		o.templates = h
	}
}

// WithObserver registers an engine event observer.
func WithObserver(obs core.Observer) Option {
	return func(o *options) {
		o.observers = append(o.observers, obs)
	}
}
