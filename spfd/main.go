package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/davidbalbert/spfd/api"
	"github.com/davidbalbert/spfd/config"
	"github.com/davidbalbert/spfd/system"
	"github.com/encodeous/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

var version = "0.0.1"

type options struct {
	configPath  string
	socketPath  string
	metricsAddr string
	logLevel    string
	logFile     string
	kernelTable int
	dryRun      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:          "spfd",
		Short:        "OSPFv2 link state database and routing table daemon",
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "/etc/spfd/spfd.yaml", "path to spfd.yaml")
	flags.StringVarP(&opts.socketPath, "socket", "s", "/var/run/spfd.sock", "path to the API socket")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	flags.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	flags.StringVar(&opts.logFile, "log-file", "", "also write logs to this file")
	flags.IntVar(&opts.kernelTable, "kernel-table", 254, "kernel routing table to install routes into")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "keep routes in memory instead of installing them")

	return cmd
}

func newLogger(level, file string) (*slog.Logger, io.Closer, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q", level)
	}

	handlers := []slog.Handler{
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      l,
			TimeFormat: time.TimeOnly,
			NoColor:    !term.IsTerminal(int(os.Stderr.Fd())),
		}),
	}

	var closer io.Closer = io.NopCloser(nil)
	if file != "" {
		f, err := os.OpenFile(file, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o640)
		if err != nil {
			return nil, nil, err
		}
		closer = f
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: l}))
	}

	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

func run(ctx context.Context, opts options) error {
	log, closer, err := newLogger(opts.logLevel, opts.logFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	log.Info("starting spfd", "version", version, "uid", os.Getuid())

	conf, err := config.LoadConfig(opts.configPath)
	if err != nil {
		log.Error("failed to load config", "path", opts.configPath, "err", err)
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router, externals := conf.OSPF.NewRouter(log, reg)

	sysIfaces, err := system.Interfaces()
	if err != nil {
		return err
	}
	attachInterfaces(router, sysIfaces, log)

	prefixes := maps.Keys(externals)
	slices.SortFunc(prefixes, func(a, b netip.Prefix) int {
		return a.Addr().Compare(b.Addr())
	})
	for _, p := range prefixes {
		if err := router.UpdateExternalRoute(p, externals[p]); err != nil {
			return err
		}
	}

	if err := router.RebuildRoutingTable(); err != nil {
		return err
	}

	fib := newFIB(opts, log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return router.Run(ctx)
	})

	g.Go(func() error {
		return system.NewRouteSyncer(fib, router.Changes(), log).Run(ctx)
	})

	g.Go(func() error {
		return api.NewServer(router, opts.socketPath, cancel, version).Run(ctx)
	})

	if opts.metricsAddr != "" {
		server := &http.Server{
			Addr:    opts.metricsAddr,
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		}

		g.Go(func() error {
			log.Info("exporting prometheus metrics", "addr", opts.metricsAddr)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			return server.Shutdown(context.Background())
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("exiting", "err", err)
		return err
	}

	log.Info("shut down")
	return nil
}

func newFIB(opts options, log *slog.Logger) system.FIB {
	if opts.dryRun {
		return system.NewMemoryFIB()
	}

	fib, err := system.NewKernelFIB(opts.kernelTable)
	if err != nil {
		log.Warn("falling back to an in-memory FIB", "err", err)
		return system.NewMemoryFIB()
	}

	return fib
}
