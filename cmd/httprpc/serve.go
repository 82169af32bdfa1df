package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mnehpets/httprpc/config"
	"github.com/mnehpets/httprpc/endpoint"
	"github.com/mnehpets/httprpc/internal/catalog"
	"github.com/mnehpets/httprpc/middleware"
	"github.com/mnehpets/httprpc/param"
	"github.com/mnehpets/httprpc/service"
)

// principalCookieName names the cookie read by the principal processor.
const principalCookieName = "httprpc_principal"

type serveOptions struct {
	*rootOptions
	Addr string
	Seed bool
}

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &serveOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog methods over HTTP",
		Long: `Serve the catalog methods over HTTP.

Methods are called at /rpc/{method} with GET query parameters or a POST
form body. Results are JSON unless the Accept header asks for CBOR, CSV or
server-sent events.

Example:
  httprpc serve --addr :8080
  curl 'localhost:8080/rpc/catalog.items?category=tools&tags=steel'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if opts.Addr != "" {
				cfg.Addr = opts.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, opts.Seed)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides configuration)")
	cmd.Flags().BoolVar(&opts.Seed, "seed", true, "fill an empty catalog with demonstration data")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, seed bool) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	setupLogging(level)

	handler, cleanup, err := newHandler(ctx, cfg, seed)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newHandler opens the catalog and builds the routes:
//
//	/rpc/{method}  catalog calls
//	GET /healthz   liveness
func newHandler(ctx context.Context, cfg config.Config, seed bool) (http.Handler, func(), error) {
	var catalogOpts []catalog.Option
	processors := []endpoint.Processor{
		middleware.NewRequestLogProcessor(nil),
	}

	var cors *middleware.CORSConfig
	if len(cfg.CORSOrigins) > 0 {
		cors = &middleware.CORSConfig{AllowedOrigins: cfg.CORSOrigins, AllowCredentials: cfg.CookieKey != ""}
	}
	processors = append(processors, middleware.NewAPIHeadersProcessor(cors))

	if cfg.Gzip {
		processors = append(processors, middleware.NewGzipProcessor())
	}
	if cfg.CookieKey != "" {
		pc, err := principalCookie(cfg)
		if err != nil {
			return nil, nil, err
		}
		processors = append(processors, middleware.NewPrincipalProcessor(pc, false))
		catalogOpts = append(catalogOpts, catalog.WithEditors())
	}

	cat, err := catalog.Open(cfg.DB, catalogOpts...)
	if err != nil {
		return nil, nil, err
	}
	if seed {
		if err := cat.Seed(ctx); err != nil {
			cat.Close()
			return nil, nil, fmt.Errorf("seed catalog: %w", err)
		}
	}

	svc := service.New()
	if err := cat.Register(svc); err != nil {
		cat.Close()
		return nil, nil, err
	}
	ep := service.NewEndpoint(svc)
	ep.JSON.Indent = cfg.Pretty

	mux := http.NewServeMux()
	mux.Handle("/rpc/{method}", endpoint.Handler(ep.Endpoint, processors...))
	mux.Handle("GET /healthz", endpoint.HandleFunc(func(w http.ResponseWriter, r *http.Request, _ param.Values) (endpoint.Renderer, error) {
		if err := cat.DB().PingContext(r.Context()); err != nil {
			return nil, endpoint.Error(http.StatusServiceUnavailable, "database unavailable", err)
		}
		return &endpoint.StringRenderer{Body: "ok\n"}, nil
	}))

	for _, m := range svc.Methods() {
		slog.Debug("registered method", "name", m.Name, "params", len(m.Params))
	}
	return mux, func() { cat.Close() }, nil
}

func principalCookie(cfg config.Config) (*middleware.PrincipalCookie, error) {
	key, err := cfg.Key()
	if err != nil {
		return nil, err
	}
	return middleware.NewPrincipalCookie(principalCookieName, "k1", map[string][]byte{"k1": key})
}
