package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/iudanet/gophdocs/internal/client/api"
	"github.com/iudanet/gophdocs/internal/client/cli"
	"github.com/iudanet/gophdocs/internal/client/iocli"
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
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, cli.ErrUsage) || errors.Is(err, cli.ErrUnknownCommand) {
			cli.PrintUsage(os.Stderr)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("gophdocs", pflag.ContinueOnError)
	fs.Usage = func() { cli.PrintUsage(os.Stderr) }

	showVersion := fs.Bool("version", false, "Show version information")
	serverURL := fs.String("server", "http://localhost:8080", "Server URL")
	userID := fs.String("user", defaultUser(), "User id announced when editing")
	token := fs.String("token", "", "API token")
	tokenFile := fs.String("token-file", "", "Path to file containing the API token")
	askToken := fs.Bool("ask-token", false, "Prompt for the API token")

	// у команд свои позиционные аргументы
	fs.SetInterspersed(false)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if *showVersion {
		printVersion()
		return nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("%w: missing command", cli.ErrUsage)
	}

	if err := validation.ValidateUserID(*userID); err != nil {
		return fmt.Errorf("invalid --user: %w", err)
	}

	console := iocli.NewStdio()
	apiToken, err := cli.ResolveToken(console, cli.TokenSources{
		FromFile: *tokenFile,
		FromArgs: *token,
		Prompt:   *askToken,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cli.New(api.NewClient(*serverURL, apiToken), console, *userID)
	return c.Run(ctx, rest[0], rest[1:])
}

func defaultUser() string {
	if user := os.Getenv("USER"); validation.ValidateUserID(user) == nil {
		return user
	}
	return "anonymous"
}

func printVersion() {
	fmt.Printf("GophDocs Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
