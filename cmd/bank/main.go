package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/alovak/simple-banking/internal/menu"
	"github.com/alovak/simple-banking/issuer"
	"github.com/joho/godotenv"
	"golang.org/x/exp/slog"
)

var (
	flagFileName = flag.String("fileName", "", "sqlite database file (overrides DB_DSN)")
	flagServe    = flag.Bool("serve", false, "run the HTTP API instead of the text menu")
)

func main() {
	flag.Parse()

	if err := loadDotEnv(".env"); err != nil {
		fail("%v", err)
	}

	cfg, err := issuer.ConfigFromEnv()
	if err != nil {
		fail("config: %v", err)
	}
	if *flagFileName != "" {
		cfg.DBDriver = issuer.DriverSQLite
		cfg.DBDSN = *flagFileName
	}

	logger := newLogger(*flagServe)

	if *flagServe {
		serve(logger, cfg)
		return
	}

	if err := runMenu(logger, cfg); err != nil {
		logger.Error("menu stopped", "err", err)
		fail("%v", err)
	}
}

func runMenu(logger *slog.Logger, cfg *issuer.Config) error {
	pins, err := issuer.NewPINScheme(cfg.PINScheme)
	if err != nil {
		return err
	}
	ctx := context.Background()
	repo, err := issuer.OpenStore(ctx, cfg, pins)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc := issuer.NewService(logger, repo, pins, cfg)
	accounts := issuer.NewAccounts(logger, repo)
	return menu.New(os.Stdin, os.Stdout, svc, accounts).Run(ctx)
}

func serve(logger *slog.Logger, cfg *issuer.Config) {
	app := issuer.NewApp(logger, cfg)
	if err := app.Start(); err != nil {
		logger.Error("starting app", "err", err)
		os.Exit(1)
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	app.Shutdown()
}

// loadDotEnv applies path to the environment. A missing file is fine, a
// broken one is not.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// newLogger keeps the text menu quiet unless LOG_LEVEL asks otherwise.
func newLogger(serving bool) *slog.Logger {
	level := slog.LevelWarn
	if serving {
		level = slog.LevelInfo
	}
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
