package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/aretw0/pedigree/internal/config"
	"github.com/aretw0/pedigree/internal/platform"
	"github.com/aretw0/pedigree/pkg/proband"
)

var (
	verbose     bool
	adapter     string
	uri         string
	key         string
	gitless     bool
	readOnly    bool
	noSnapshots bool
	patientFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pedigree",
	Short: "Save, load and version pedigree documents",
	Long: `pedigree keeps family-history diagrams in a versioned store.
Documents are migrated to the current format on load, reconciled with the
patient record and saved together with an SVG snapshot.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := charmlog.InfoLevel
		if verbose {
			level = charmlog.DebugLevel
		}
		slog.SetDefault(slog.New(newLogger(os.Stderr, level)))
	},
}

// newLogger creates a charm logger; it doubles as the slog handler.
func newLogger(w io.Writer, level charmlog.Level) *charmlog.Logger {
	return charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&adapter, "adapter", "", "Storage adapter: fs, sqlite, postgres, s3, redis, rest, memory")
	flags.StringVar(&uri, "uri", "", "Adapter location (directory, DSN, bucket, URL)")
	flags.StringVar(&key, "key", "", "Pedigree identifier in shared stores")
	flags.BoolVar(&gitless, "gitless", false, "Keep fs history as snapshots instead of git commits")
	flags.BoolVar(&readOnly, "read-only", false, "Refuse to save")
	flags.BoolVar(&noSnapshots, "no-snapshots", false, "Do not render an SVG image on save")
	flags.StringVar(&patientFile, "patient", "", "YAML or JSON file with the proband record")
}

// loadConfig reads the config file of the pedigree root, if any.
func loadConfig() (*config.Config, string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	root, err := platform.FindRoot(wd)
	if err != nil {
		root = wd
	}
	cfg, err := config.LoadDir(root)
	if err != nil {
		return nil, "", err
	}
	return cfg, root, nil
}

// resolve merges flags over the config file and returns the adapter, its
// uri and the session options.
func resolve(cfg *config.Config, root string) (string, string, []platform.Option) {
	name := adapter
	if name == "" {
		name = cfg.Adapter
	}
	if name == "" {
		name = platform.AdapterFS
	}

	target := uri
	if target == "" {
		target = cfg.URI
	}
	if target == "" {
		switch name {
		case platform.AdapterFS:
			target = root
		case platform.AdapterSQLite:
			target = cfg.SQL.DSN
			if target == "" {
				target = "pedigree.db"
			}
		case platform.AdapterPostgres:
			target = cfg.SQL.DSN
		case platform.AdapterS3:
			target = cfg.S3.Bucket
		case platform.AdapterRedis:
			target = cfg.Redis.URL
		case platform.AdapterREST:
			target = cfg.REST.BaseURL
		}
	}

	opts := []platform.Option{
		platform.WithLogger(slog.Default()),
		platform.WithAdapter(name),
		platform.WithReadOnly(readOnly || cfg.ReadOnly),
		platform.WithDevSafety(false),
		platform.WithToken(cfg.REST.Token),
		platform.WithS3(cfg.S3.Prefix, cfg.S3.Region, cfg.S3.Endpoint, cfg.S3.PathStyle),
		platform.WithSubjectCache(proband.DefaultCacheTTL),
	}
	if k := firstNonEmpty(key, cfg.Key); k != "" {
		opts = append(opts, platform.WithKey(k))
	}
	if gitless {
		opts = append(opts, platform.WithVersioning(false))
	} else if cfg.Versioning != nil {
		opts = append(opts, platform.WithVersioning(*cfg.Versioning))
	}
	if cfg.SystemDir != "" {
		opts = append(opts, platform.WithSystemDir(cfg.SystemDir))
	}
	if noSnapshots {
		opts = append(opts, platform.WithSnapshots(false))
	} else if cfg.Snapshots != nil {
		opts = append(opts, platform.WithSnapshots(*cfg.Snapshots))
	}
	if p := firstNonEmpty(patientFile, cfg.Patient); p != "" {
		opts = append(opts, platform.WithSubjectSource(proband.FileSource{Path: p}))
	}
	return name, target, opts
}

// openSession opens the configured store. extra options are applied last.
func openSession(extra ...platform.Option) (*platform.Session, *config.Config) {
	cfg, root, err := loadConfig()
	if err != nil {
		fatal("Failed to load config", err)
	}
	_, target, opts := resolve(cfg, root)
	opts = append(opts, platform.WithMustExist(true))
	opts = append(opts, extra...)

	s, err := platform.New(target, opts...)
	if err != nil {
		fatal("Failed to open pedigree", err)
	}
	return s, cfg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// commandContext bounds one-shot commands.
func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Minute)
}

func must(msg string, err error) {
	if err != nil {
		fatal(msg, err)
	}
}


// noSnapshotsOption skips the renderer for commands that never save.
func noSnapshotsOption() []platform.Option {
	return []platform.Option{platform.WithSnapshots(false)}
}
