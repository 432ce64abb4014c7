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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/accord-dev/accord/pkg/gateway"
	"github.com/accord-dev/accord/pkg/rest"
)

func tailCmd() *cobra.Command {
	var (
		token       string
		apiURL      string
		gatewayURL  string
		shards      int
		compress    bool
		metricsAddr string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Connect to the gateway and print the event stream",
		Long: `Tail connects the bot to the gateway and prints every dispatched event.

The shard count defaults to the platform's recommendation from /gateway/bot.
With --metrics-addr, a Prometheus endpoint exposes per-shard connection
metrics at /metrics and a liveness probe at /healthz.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := tokenFromFlagOrEnv(token)
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			restCfg := rest.DefaultConfig()
			restCfg.Token = tok
			restCfg.Logger = logger
			if apiURL != "" {
				restCfg.BaseURL = apiURL
			}
			client := rest.NewClient(restCfg)

			url := gatewayURL
			count := shards
			if url == "" || count < 1 {
				info, err := client.GatewayBot(ctx)
				if err != nil {
					return fmt.Errorf("fetch gateway info: %w", err)
				}
				if url == "" {
					url = info.URL
				}
				if count < 1 {
					count = info.Shards
				}
				logger.Info("gateway info",
					"url", info.URL, "recommended_shards", info.Shards,
					"identifies_remaining", info.SessionStartLimit.Remaining)
			}

			gwCfg := gateway.DefaultConfig()
			gwCfg.Token = tok
			gwCfg.GatewayURL = url
			gwCfg.Compress = compress
			gwCfg.Logger = logger
			if metricsAddr != "" {
				gwCfg.Metrics = gateway.NewMetrics()
			}

			mgr := gateway.NewManager(gwCfg, count, gateway.SinkFunc(printEvent))

			if metricsAddr != "" {
				srv := metricsServer(metricsAddr, mgr)
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics server failed", "error", err)
					}
				}()
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(sctx)
				}()
				logger.Info("metrics listening", "addr", metricsAddr)
			}

			if err := mgr.Start(ctx); err != nil {
				return err
			}
			logger.Info("tailing events", "shards", count)

			<-ctx.Done()
			logger.Info("shutting down")
			mgr.Shutdown()
			return mgr.Err()
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Bot token (or ACCORD_TOKEN)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "API base URL override")
	cmd.Flags().StringVar(&gatewayURL, "gateway-url", "", "Gateway URL override (skips /gateway/bot)")
	cmd.Flags().IntVar(&shards, "shards", 0, "Shard count (0 = platform recommendation)")
	cmd.Flags().BoolVar(&compress, "compress", true, "Use transport compression")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	return cmd
}

func printEvent(e gateway.Event) {
	fmt.Printf("[shard %s] seq=%d %s %s\n", e.Shard, e.Seq, e.Name, e.Data)
}

// metricsServer serves /metrics and a /healthz that reports ok only while
// every shard is in a healthy state.
func metricsServer(addr string, mgr *gateway.Manager) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		for _, sh := range mgr.Shards() {
			if sh.Status() == gateway.StatusClosed {
				http.Error(w, fmt.Sprintf("shard %s closed: %v", sh.ID(), sh.Err()),
					http.StatusServiceUnavailable)
				return
			}
		}
		w.Write([]byte("ok"))
	})
	return &http.Server{Addr: addr, Handler: r}
}
