package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/signalgw/gateway/config"
	"github.com/signalgw/gateway/daemon"
	"github.com/signalgw/gateway/events"
	"github.com/signalgw/gateway/gateway"
	"github.com/signalgw/gateway/metrics"
	"github.com/signalgw/gateway/rpc"
	"github.com/signalgw/gateway/webhook"
)

func main() {
	app := &cli.App{
		Name:  "signal-gateway",
		Usage: "REST/WebSocket gateway in front of a signal-cli JSON-RPC daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a TOML config file.",
			},
			&cli.StringFlag{
				Name:  "signal-cli",
				Usage: "Address of an already-running signal-cli daemon. When unset, the gateway spawns its own.",
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "The address for the HTTP server to listen on.",
			},
			&cli.StringFlag{
				Name:  "tls-cert",
				Usage: "Path to a PEM TLS certificate; enables HTTPS.",
			},
			&cli.StringFlag{
				Name:  "tls-key",
				Usage: "Path to the PEM TLS key.",
			},
			&cli.StringFlag{
				Name:  "rpc-timeout",
				Usage: "Per-call timeout for daemon RPCs, e.g. \"45s\".",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level. One of [debug,info,warn,error].",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx *cli.Context) error {
	cfg := config.Default()
	if path := ctx.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
	}
	if v := ctx.String("signal-cli"); v != "" {
		cfg.SignalCLI = v
	}
	if v := ctx.String("listen"); v != "" {
		cfg.Listen = v
	}
	if v := ctx.String("tls-cert"); v != "" {
		cfg.TLSCert = v
	}
	if v := ctx.String("tls-key"); v != "" {
		cfg.TLSKey = v
	}
	if v := ctx.String("rpc-timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing rpc-timeout: %w", err)
		}
		cfg.RPCTimeout = config.Duration(d)
	}
	if v := ctx.String("log-level"); v != "" {
		cfg.LogLevel = v
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()
	slog := logger.Sugar()

	// Either attach to an existing daemon or own one for our lifetime.
	daemonAddr := cfg.SignalCLI
	if daemonAddr == "" {
		d, err := daemon.Spawn(daemon.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("starting signal-cli: %w", err)
		}
		defer d.Stop()
		daemonAddr = d.Addr
	}

	m := metrics.New()
	bus := events.NewBus()

	client, err := rpc.Dial(daemonAddr, bus, m,
		rpc.WithLogger(logger),
		rpc.WithCallTimeout(time.Duration(cfg.RPCTimeout)),
	)
	if err != nil {
		return fmt.Errorf("connecting to signal-cli at %s: %w", daemonAddr, err)
	}
	defer client.Close()

	registry := webhook.NewRegistry()
	for _, wh := range cfg.Webhooks {
		reg := registry.Register(wh.URL, wh.Events)
		slog.Infow("webhook registered from config", "id", reg.ID, "url", reg.URL, "events", reg.Events)
	}
	dispatcher := webhook.NewDispatcher(logger.Sugar(), registry, bus)
	go dispatcher.Run()

	opts := []gateway.Option{
		gateway.WithListenAddr(cfg.Listen),
		gateway.WithLogger(logger),
	}
	if cfg.TLSCert != "" || cfg.TLSKey != "" {
		opts = append(opts, gateway.WithTLS(cfg.TLSCert, cfg.TLSKey))
	}
	server, err := gateway.NewServer(client, bus, m, registry, opts...)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Infof("received %s, shutting down", sig)
		server.Stop()
	}()

	return server.Run()
}
