package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/pedigree/pkg/adapters/fs"
	"github.com/aretw0/pedigree/pkg/adapters/memory"
	"github.com/aretw0/pedigree/pkg/adapters/redisstore"
	"github.com/aretw0/pedigree/pkg/adapters/rest"
	"github.com/aretw0/pedigree/pkg/adapters/s3"
	"github.com/aretw0/pedigree/pkg/adapters/sqlstore"
	"github.com/aretw0/pedigree/pkg/core"
)

// OpenStore builds and initializes the store selected by the options.
// The uri argument is adapter-specific: a directory for fs, a file or DSN
// for sql, a bucket for s3, a redis URL, or the record base URL for rest.
func OpenStore(ctx context.Context, uri string, opts ...Option) (core.Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return openStore(ctx, uri, o)
}

func openStore(ctx context.Context, uri string, o *options) (core.Store, error) {
	if o.store != nil {
		return o.store, nil
	}

	readOnly := o.bool("read_only")

	switch o.adapter {
	case AdapterFS, "":
		store, err := initFS(uri, o)
		if err != nil {
			return nil, err
		}
		if err := store.Initialize(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case AdapterSQLite, AdapterPostgres:
		return sqlstore.Open(ctx, sqlstore.Config{
			Dialect:  o.adapter,
			DSN:      uri,
			Key:      o.string("key"),
			ReadOnly: readOnly,
			Logger:   o.logger,
		})
	case AdapterS3:
		return s3.New(ctx, s3.Config{
			Bucket:    uri,
			Prefix:    o.string("s3_prefix"),
			Region:    o.string("s3_region"),
			Endpoint:  o.string("s3_endpoint"),
			PathStyle: o.bool("s3_path_style"),
			ReadOnly:  readOnly,
			Logger:    o.logger,
		})
	case AdapterRedis:
		if uri == "" {
			uri = redisstore.URLFromEnv()
		}
		return redisstore.Open(ctx, redisstore.Config{
			URL:      uri,
			Key:      o.string("key"),
			ReadOnly: readOnly,
			Logger:   o.logger,
		})
	case AdapterREST:
		return rest.NewClient(rest.Config{
			BaseURL: uri,
			Token:   o.string("token"),
			Logger:  o.logger,
		})
	case AdapterMemory:
		store := memory.NewStore()
		store.SetReadOnly(readOnly)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
}

// initFS handles the path resolution and mode detection of the fs adapter.
func initFS(path string, o *options) (*fs.Store, error) {
	autoInit := o.bool("auto_init")
	gitless := o.bool("gitless")
	tempDir := o.bool("temp_dir")
	mustExist := o.bool("must_exist")
	systemDir := o.string("system_dir")
	errorHandler, _ := o.config["watcher_error_handler"].(func(error))
	isReadOnly := o.bool("read_only")

	// Default to true (safe) if not present.
	devSafety := true
	if val, ok := o.config["dev_safety"].(bool); ok {
		devSafety = val
	}

	// Bypass Safety if:
	// 1. ReadOnly is active (inherently safe)
	// 2. User explicitly disabled DevSafety
	bypassSafety := isReadOnly || !devSafety

	useTemp := tempDir || (IsDevRun() && !bypassSafety)
	resolvedPath := ResolvePath(path, useTemp)

	if IsDevRun() && o.logger != nil {
		if bypassSafety {
			if isReadOnly {
				o.logger.Debug("running in READ-ONLY mode (bypassing dev sandbox)", "path", resolvedPath)
			} else {
				o.logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", resolvedPath)
			}
		} else {
			o.logger.Debug("running in SAFE mode (dev sandbox enabled)", "path", resolvedPath)
		}
	}

	if systemDir == "" {
		systemDir = fs.DefaultSystemDir
	}

	// Smart gitless detection when versioning was not configured.
	if _, ok := o.config["gitless"]; !ok {
		if _, err := os.Stat(filepath.Join(resolvedPath, ".git")); err == nil {
			gitless = false
		} else {
			if autoInit {
				// An existing system dir without .git is a gitless pedigree;
				// a fresh directory gets git.
				_, statErr := os.Stat(filepath.Join(resolvedPath, systemDir))
				gitless = statErr == nil
			} else {
				gitless = true
			}

			if gitless && o.logger != nil {
				o.logger.Debug("auto-detected gitless mode", "reason", ".git missing")
			}
		}
	}

	if o.logger != nil && useTemp && filepath.Clean(path) != resolvedPath {
		o.logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", path, "resolved_path", resolvedPath)
	}

	return fs.NewStore(fs.Config{
		Path:         resolvedPath,
		AutoInit:     autoInit,
		Gitless:      gitless,
		MustExist:    mustExist || (!autoInit && !useTemp),
		ReadOnly:     isReadOnly,
		SystemDir:    systemDir,
		Logger:       o.logger,
		ErrorHandler: errorHandler,
	}), nil
}
