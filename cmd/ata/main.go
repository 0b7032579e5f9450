package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/associated-token-account/pkg/metrics"
	"github.com/code-payments/associated-token-account/pkg/solana/rpc"
	"github.com/code-payments/associated-token-account/pkg/solana/runtime"
)

const shutdownTimeout = 5 * time.Second

var configPath = flag.String("config", "config.yaml", "configuration file path")

func main() {
	flag.Usage = usage
	flag.Parse()

	logger := logrus.StandardLogger().WithField("type", "cmd/ata")

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.WithError(err).Error("failed to load config")
		os.Exit(1)
	}

	metricsProvider, err := newMetricsProvider(cfg)
	if err != nil {
		logger.WithError(err).Error("error connecting to new relic")
		os.Exit(1)
	}
	if metricsProvider != nil {
		defer metricsProvider.Shutdown(shutdownTimeout)
	}

	configureLogger(cfg, metricsProvider)

	env := &environment{
		out:        os.Stdout,
		commitment: rpc.Commitment(cfg.Commitment),
		rent:       runtime.NewRent(runtime.WithEnvConfigs()),
	}
	if len(cfg.RPCEndpoint) > 0 {
		env.client = rpc.New(cfg.RPCEndpoint)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		logger.WithField("command", name).Error("unknown command")
		usage()
		os.Exit(2)
	}

	ctx, end := metrics.StartTransaction(ctx, metricsProvider, "ata/"+name)
	err = cmd.run(ctx, env, flag.Args()[1:])
	end()

	if err != nil {
		logger.WithError(err).WithField("command", name).Error("command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] <command> [flags]\n\ncommands:\n", os.Args[0])
	for _, name := range commandNames() {
		fmt.Fprintf(flag.CommandLine.Output(), "  %-14s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(flag.CommandLine.Output())
	flag.PrintDefaults()
}
