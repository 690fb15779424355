package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arthur-debert/nanocrud/nanocrud"
	"github.com/arthur-debert/nanocrud/nanocrud/auth"
	"github.com/arthur-debert/nanocrud/nanocrud/config"
	"github.com/arthur-debert/nanocrud/nanocrud/metrics"
	"github.com/arthur-debert/nanocrud/nanocrud/routes"
)

// metricsPath serves the Prometheus exposition when metrics are on
const metricsPath = "/metrics"

const shutdownTimeout = 10 * time.Second

func (cli *CLI) addServeCommand() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the CRUD routes over HTTP",
		Long: `Serve POST /<operation>-<route> for every operation in scope. Bodies
are form encoded; responses are {"state":0|1,"data":...} envelopes.

When --jwt-secret is set every operation requires a bearer token (see the
token command).

Examples:
  nanocrud --db widgets.json --route widget serve
  nanocrud --route widget --protect serve --addr 127.0.0.1:9000 --log-stdout`,

		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			handler, registered, cleanup, err := cli.newHandler()
			if err != nil {
				return err
			}
			defer cleanup()

			for _, r := range registered {
				cli.logs.main.Info("route registered", "name", r.Name, "path", r.Path)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveHTTP(ctx, cli.settings.Addr, handler, cli.logs.main, cmd)
		},
	}

	serveCmd.Flags().String(config.KeyAddr, ":8080", "Listen address")
	serveCmd.Flags().Bool(config.KeyMetrics, true, "Expose Prometheus metrics at "+metricsPath)
	serveCmd.Flags().Bool("log-stdout", false, "Mirror the access log to stdout")

	cli.rootCmd.AddCommand(serveCmd)
}

// newHandler builds the gzip-wrapped gin engine for the configured store
func (cli *CLI) newHandler() (http.Handler, []routes.Route, func(), error) {
	cfg, model, err := cli.controllerConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() { _ = model.Close() }

	var extra []gin.HandlerFunc
	if secret := cli.settings.JWTSecret; secret != "" {
		a, err := auth.NewJWT([]byte(secret))
		if err != nil {
			cleanup()
			return nil, nil, nil, NewConfigError("serve", err)
		}
		extra = append(extra, auth.Middleware(a, cli.logs.main))
		cfg.Middleware = append(cfg.Middleware, nanocrud.LoginRequired)
	}

	c, err := nanocrud.New(cfg)
	if err != nil {
		cleanup()
		return nil, nil, nil, NewConfigError("serve", err, CommonSuggestions.CheckConfig)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := routes.NewRouter(cli.logs.access, extra...)

	var observers []routes.Observer
	if cli.settings.Metrics {
		m := metrics.New(true)
		observers = append(observers, m)
		engine.GET(metricsPath, gin.WrapH(m.Handler()))
	}
	registered := routes.Register(engine, c, observers...)
	routes.NoRoute(engine, c, observers...)

	return gzhttp.GzipHandler(engine), registered, cleanup, nil
}

// serveHTTP runs the server until ctx is cancelled, then drains connections
func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger, cmd *cobra.Command) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", addr)
		fmt.Fprintf(cmd.OutOrStdout(), "nanocrud listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return &CLIError{Operation: "serve", Cause: "server failed", Details: err.Error(), Underlying: err}
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			warnf(cmd, "shutdown incomplete: %v", err)
			return err
		}
		logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}
