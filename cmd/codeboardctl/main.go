package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/codeboard/internal/bootstrap"
	"github.com/okian/codeboard/internal/cli"
	"github.com/okian/codeboard/internal/config"
	"github.com/okian/codeboard/pkg/logger"
)

const stopTimeout = 30 * time.Second

func main() {
	cfg, help, err := parseArgs(os.Args[1:])
	if err != nil || help {
		cli.ShowHelp(os.Stdout)
		if err != nil {
			os.Exit(2)
		}
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		os.Stderr.WriteString("codeboardctl: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// parseArgs accepts flags both before and after the command.
func parseArgs(argv []string) (cli.Config, bool, error) {
	var (
		cfg  cli.Config
		help bool
	)
	fs := flag.NewFlagSet("codeboardctl", flag.ContinueOnError)
	fs.StringVar(&cfg.Department, "department", "", "Only rank students of this department")
	fs.StringVar(&cfg.Batch, "batch", "", "Only rank students of this batch")
	fs.StringVar(&cfg.Platform, "platform", "", "Only rank students accepted on this platform")
	fs.IntVar(&cfg.Limit, "limit", 0, "Maximum rows to print")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&help, "help", false, "Show help")

	if err := fs.Parse(argv); err != nil {
		return cfg, false, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return cfg, true, nil
	}
	cfg.Command = rest[0]
	if err := fs.Parse(rest[1:]); err != nil {
		return cfg, false, err
	}
	cfg.Args = fs.Args()
	return cfg, help, nil
}

func run(ctx context.Context, cmd cli.Config) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(os.Stderr)); err != nil {
		return err
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("warn")
	}

	rt, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	if err := rt.Service.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = rt.Service.Stop(stopCtx)
	}()

	return cli.Run(ctx, cmd, rt.Service, os.Stdout)
}
