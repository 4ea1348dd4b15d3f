package cli

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownCommand is returned by Run for an unrecognised command
var ErrUnknownCommand = errors.New("unknown command")

// ErrUsage wraps argument errors so the caller can print usage
var ErrUsage = errors.New("usage")

func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "status":
		return c.RunStatus(ctx)
	case "list":
		return c.RunList(ctx)
	case "create":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("%w: gophdocs create <title> [text]", ErrUsage)
		}
		content := ""
		if len(args) == 2 {
			content = args[1]
		}
		return c.RunCreate(ctx, args[0], content)
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("%w: gophdocs get <id>", ErrUsage)
		}
		return c.RunGet(ctx, args[0])
	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("%w: gophdocs delete <id>", ErrUsage)
		}
		return c.RunDelete(ctx, args[0])
	case "append":
		if len(args) != 2 {
			return fmt.Errorf("%w: gophdocs append <id> <text>", ErrUsage)
		}
		return c.RunAppend(ctx, args[0], args[1])
	case "watch":
		if len(args) != 1 {
			return fmt.Errorf("%w: gophdocs watch <id>", ErrUsage)
		}
		return c.RunWatch(ctx, args[0])
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}
