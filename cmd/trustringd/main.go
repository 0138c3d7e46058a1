package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"xdao.co/trustring/internal/logging"
	"xdao.co/trustring/storage"
	"xdao.co/trustring/storage/grpcattr"
	"xdao.co/trustring/storage/registry"
	"xdao.co/trustring/storage/storeconfig"

	_ "xdao.co/trustring/storage/localfs"
	_ "xdao.co/trustring/storage/memory"
	_ "xdao.co/trustring/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("trustringd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	backend := fs.String("backend", "localfs", "Attribute store backend name")
	storeConfig := fs.String("store-config", "", "Storage config YAML (overrides --backend; --backend then picks the write backend)")
	metricsListen := fs.String("metrics-listen", "", "Serve Prometheus /metrics on this address when set")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error")
	logJSON := fs.Bool("log-json", false, "Log as JSON")

	registry.RegisterFlags(fs, registry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, b := range registry.List(registry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	logger, err := logging.New(logging.Options{Level: *logLevel, JSON: *logJSON, Writer: errOut})
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	store, closeFn, err := openStore(*storeConfig, *backend)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer lis.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trustringd",
		Name:      "requests_total",
		Help:      "Attribute RPCs served, by method and status code.",
	}, []string{"method", "code"})
	reg.MustRegister(requests)

	s := grpc.NewServer(grpc.UnaryInterceptor(countRequests(requests)))
	grpcattr.RegisterAttributesServer(s, &grpcattr.Server{Store: store, Logger: logger})

	if *metricsListen != "" {
		srv := &http.Server{Addr: *metricsListen, Handler: metricsMux(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		s.GracefulStop()
	}()

	logger.Info("trustringd listening", "addr", lis.Addr().String(), "backend", *backend, "metrics", *metricsListen)
	if err := s.Serve(lis); err != nil {
		logger.Error("serve failed", "error", err)
		return 1
	}
	return 0
}

func openStore(configPath, backend string) (storage.Store, func() error, error) {
	if configPath == "" {
		return registry.Open(backend, registry.UsageDaemon)
	}
	cfg, err := storeconfig.LoadFile(configPath)
	if err != nil {
		return nil, nil, err
	}
	preferred := ""
	for _, b := range cfg.Backends {
		if b.Name == backend || b.ID == backend {
			preferred = backend
		}
	}
	return cfg.Open(registry.UsageDaemon, preferred)
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

func countRequests(c *prometheus.CounterVec) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		c.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		return resp, err
	}
}
