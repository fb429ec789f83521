package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"driftwood/internal/config"
	"driftwood/internal/gateway"
	"driftwood/internal/linkcheck"
	"driftwood/internal/logging"
	"driftwood/internal/service"
	"driftwood/internal/storage/journal"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger, flag.Args()); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		logger.Error("command failed", "command", flag.Arg(0), "error", err)
		if notice, ok := service.Notify(err); ok {
			fmt.Fprintf(os.Stderr, "%s: %s\n", notice.Title, notice.Message)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	gw, closeGateway, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}
	defer closeGateway()

	var journalStore *journal.Store
	if cfg.Journal.Enabled {
		journalStore, err = journal.Open(ctx, cfg.Journal.Driver, cfg.Journal.DSN(), cfg.Journal.MaxEntries, logger.With("component", "journal"))
		if err != nil {
			return err
		}
		defer journalStore.Close()
		gw = gateway.NewJournaled(gw, journalStore, logger.With("component", "journal"))
	}

	var images service.ImageChecker
	if cfg.ImageCheck.Enabled {
		images = linkcheck.New(linkcheck.Config{Timeout: cfg.ImageCheck.Timeout}, logger.With("component", "linkcheck"))
	}

	app := service.NewApp(gw, images, logger, cfg.StrictInvariants)

	c := &cli{
		app:     app,
		journal: journalStore,
		refresh: cfg.Refresh,
		logger:  logger,
		out:     os.Stdout,
	}
	return c.run(ctx, args)
}

func newGateway(cfg *config.Config, logger *slog.Logger) (gateway.Gateway, func(), error) {
	gwLogger := logger.With("component", "gateway", "transport", cfg.Gateway.Transport)

	switch cfg.Gateway.Transport {
	case config.TransportRabbitMQ:
		r, err := gateway.NewRabbitMQ(gateway.RabbitMQConfig{
			URL:        cfg.Gateway.RabbitMQ.URL,
			Exchange:   cfg.Gateway.RabbitMQ.Exchange,
			RoutingKey: cfg.Gateway.RabbitMQ.RoutingKey,
			QueueName:  cfg.Gateway.RabbitMQ.QueueName,
		}, gwLogger)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		h := gateway.NewHTTP(gateway.HTTPConfig{
			BaseURL: cfg.Gateway.HTTP.BaseURL,
			Timeout: cfg.Gateway.HTTP.Timeout,
		}, gwLogger)
		return h, func() {}, nil
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: driftwood [-config path] <command> [args]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-22s %s\n", c.usage, c.desc)
	}
	fmt.Fprintln(out)
	flag.PrintDefaults()
}
