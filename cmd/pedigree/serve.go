package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/spf13/cobra"

	"github.com/aretw0/pedigree/internal/platform"
	"github.com/aretw0/pedigree/internal/server"
	"github.com/aretw0/pedigree/pkg/adapters/fs"
	lcsource "github.com/aretw0/pedigree/pkg/adapters/lifecycle"
	"github.com/aretw0/pedigree/pkg/adapters/mqtt"
	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/metrics"
)

var (
	serveAddr      string
	serveMQTT      string
	serveMQTTTopic string
	serveNoWatch   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pedigree over HTTP",
	Long: `Expose the pedigree and patient objects over the record-service
protocol, stream engine events on /events (WebSocket) and metrics on
/metrics. Events can also be forwarded to an MQTT broker.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		logger := slog.Default()
		obs := metrics.New()

		s, cfg := openSession(platform.WithObserver(obs))
		defer s.Close()

		// First SIGINT/SIGTERM cancels ctx and runs the shutdown hooks.
		ctx := lifecycle.NewSignalContext(context.Background())
		defer ctx.Stop()

		if err := s.Engine.Load(ctx); err != nil {
			logger.Warn("initial load failed", "error", err)
		}

		if url := firstNonEmpty(serveMQTT, cfg.MQTT.URL); url != "" {
			pub := mqtt.NewPublisher(mqtt.Config{
				URL:      url,
				Topic:    firstNonEmpty(serveMQTTTopic, cfg.MQTT.Topic),
				Pedigree: firstNonEmpty(key, cfg.Key),
				Logger:   logger,
			})
			if err := pub.Connect(); err != nil {
				fatal("Failed to connect to MQTT broker", err)
			}
			lifecycle.OnShutdown(ctx, pub.Disconnect)

			events, cancel := s.Subscribe()
			defer cancel()
			pub.Start(ctx, events)
			logger.Info("forwarding events", "broker", url)
		}

		if fsStore, ok := s.Store.(*fs.Store); ok && !serveNoWatch {
			watch, err := fsStore.Watch(ctx)
			if err != nil {
				fatal("Failed to watch pedigree", err)
			}
			reloadOnChange(ctx, s, lcsource.NewSource(watch, core.EventStoreChanged), logger)
		}

		srv, err := server.New(server.Config{
			Store:     s.Store,
			Source:    s.Source,
			Broker:    s.Engine.Events(),
			Metrics:   obs.Handler(),
			ViewToken: cfg.Server.ViewToken,
			EditToken: cfg.Server.EditToken,
			ReadOnly:  readOnly || cfg.ReadOnly,
			Logger:    logger,
		})
		must("Failed to create server", err)

		addr := firstNonEmpty(serveAddr, cfg.Server.Addr, ":8080")
		httpServer := &http.Server{
			Addr:              addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ln, err := net.Listen("tcp", addr)
		must("Failed to listen", err)

		if err := serveUntilShutdown(ctx, httpServer, ln, logger); err != nil {
			fatal("Server failed", err)
		}
		ctx.Wait()
	},
}

// serveUntilShutdown serves on ln until ctx is cancelled. The graceful
// shutdown is registered as a hook of the signal context, so callers wait
// for it with the context's Wait.
func serveUntilShutdown(ctx context.Context, httpServer *http.Server, ln net.Listener, logger *slog.Logger) error {
	lifecycle.OnShutdown(ctx, func() {
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return nil
	}
}

// reloadOnChange reloads the engine whenever the source reports an external
// change and re-announces the change to subscribers.
func reloadOnChange(ctx context.Context, s *platform.Session, src lifecycle.Source, logger *slog.Logger) {
	if err := src.Start(ctx); err != nil {
		logger.Error("failed to start change source", "error", err)
		return
	}
	lifecycle.Go(ctx, func(ctx context.Context) error {
		for ev := range src.Events() {
			e, ok := ev.(core.Event)
			if !ok {
				continue
			}
			logger.Info("pedigree changed on disk", "event", e.String())
			if err := s.Engine.Load(ctx); err != nil && !errors.Is(err, core.ErrNoDocument) {
				logger.Warn("reload failed", "error", err)
			}
			s.Engine.Events().Publish(e)
		}
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		logger.Error("reload loop panic", "error", err)
	}))
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default :8080)")
	serveCmd.Flags().StringVar(&serveMQTT, "mqtt", "", "MQTT broker URL for event forwarding")
	serveCmd.Flags().StringVar(&serveMQTTTopic, "mqtt-topic", "", "MQTT topic prefix")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not reload on external edits (fs adapter)")
	rootCmd.AddCommand(serveCmd)
}
