package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/iudanet/gophdocs/internal/config"
	"github.com/iudanet/gophdocs/internal/server"
	"github.com/iudanet/gophdocs/internal/server/handlers"
	"github.com/iudanet/gophdocs/internal/validation"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if cfg.ShowVersion {
		printVersion()
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.IssueToken != "" {
		return issueToken(cfg)
	}

	logger := cfg.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("GophDocs server starting",
		"version", Version,
		"addr", cfg.Addr,
		"storage", cfg.StorageDriver,
		"auth", cfg.JWTSecret != "",
		"redis", cfg.RedisAddr != "")

	srv, err := server.New(ctx, cfg, Version, logger)
	if err != nil {
		return err
	}

	if err := srv.Run(ctx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

// issueToken печатает access token для cfg.IssueToken (для клиентов при разработке)
func issueToken(cfg *config.Config) error {
	if err := validation.ValidateUserID(cfg.IssueToken); err != nil {
		return err
	}

	token, expiresIn, err := handlers.GenerateAccessToken(handlers.JWTConfig{
		Secret:         []byte(cfg.JWTSecret),
		AccessTokenTTL: cfg.JWTTTL,
	}, cfg.IssueToken, cfg.IssueToken)
	if err != nil {
		return err
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires in %ds\n", expiresIn)
	return nil
}

func printVersion() {
	fmt.Printf("GophDocs Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
