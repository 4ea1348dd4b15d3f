package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/iudanet/gophdocs/internal/client/api"
	apitypes "github.com/iudanet/gophdocs/pkg/api"
	"github.com/iudanet/gophdocs/pkg/ot"
)

// ackTimeout ограничивает ожидание эха от сервера.
// На отклоненные операции сервер не отвечает.
const ackTimeout = 10 * time.Second

// RunAppend inserts text at the end of the document through a live session
// and waits until the server echoes the insert back as this user's edit.
func (c *Cli) RunAppend(ctx context.Context, docID, text string) error {
	editor, err := c.apiClient.Dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = editor.Close() }()

	init, err := editor.Join(ctx, docID, c.userID)
	if err != nil {
		return err
	}

	// сервер может привязать аутентифицированный ID, в INIT наше соединение последнее
	self := c.userID
	if n := len(init.Users); n > 0 {
		self = init.Users[n-1]
	}

	op := ot.Insert(ot.Len(init.Content), text, c.userID)
	if err := editor.Submit(docID, op, init.Version); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, ackTimeout)
	defer cancel()

	for {
		ev, err := editor.Next(waitCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("edit was not acknowledged within %s", ackTimeout)
			}
			return err
		}
		if ev.Error != "" {
			return fmt.Errorf("server error: %s", ev.Error)
		}
		if ev.Type != apitypes.MessageOperation {
			continue
		}

		var msg apitypes.OperationMessage
		if err := ev.Decode(&msg); err != nil {
			return fmt.Errorf("failed to decode operation: %w", err)
		}
		// эхо нашей вставки, позиция могла быть трансформирована
		if !isOwnInsert(msg, self, text, init.Version) {
			continue
		}

		c.io.Printf("Appended to %s, now at version %d\n", docID, msg.Version)
		return nil
	}
}

// RunWatch prints the document and every live change until ctx is done.
// Terminals get a readable summary, anything else gets one JSON message per line.
func (c *Cli) RunWatch(ctx context.Context, docID string) error {
	editor, err := c.apiClient.Dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = editor.Close() }()

	init, err := editor.Join(ctx, docID, c.userID)
	if err != nil {
		return err
	}

	pretty := c.io.IsTerminal()
	if pretty {
		c.io.Printf("=== %s (version %d) ===\n%s\n---\n", docID, init.Version, init.Content)
		c.io.Printf("Users: %v\n", init.Users)
	} else {
		raw, err := json.Marshal(init)
		if err != nil {
			return fmt.Errorf("failed to encode init message: %w", err)
		}
		c.writeLine(raw)
	}

	for {
		ev, err := editor.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if !pretty {
			c.writeLine(ev.Raw)
			continue
		}
		if line := describe(ev); line != "" {
			c.io.Println(line)
		}
	}
}

func isOwnInsert(msg apitypes.OperationMessage, userID, text string, since int) bool {
	return msg.UserID == userID &&
		msg.Operation.Type == ot.TypeInsert &&
		msg.Operation.Chars == text &&
		msg.Version > since
}

func (c *Cli) writeLine(raw []byte) {
	_, _ = c.io.Write(append(raw, '\n'))
}

func describe(ev api.Event) string {
	if ev.Error != "" {
		return "error: " + ev.Error
	}

	switch ev.Type {
	case apitypes.MessageOperation:
		var msg apitypes.OperationMessage
		if err := ev.Decode(&msg); err != nil {
			return ""
		}
		op := msg.Operation
		if op.Type == ot.TypeInsert {
			return fmt.Sprintf("[v%d] %s inserted %s at %d", msg.Version, msg.UserID, strconv.Quote(op.Chars), op.Position)
		}
		return fmt.Sprintf("[v%d] %s deleted %d at %d", msg.Version, msg.UserID, op.Length, op.Position)
	case apitypes.MessageUserJoined, apitypes.MessageUserLeft:
		var msg apitypes.PresenceMessage
		if err := ev.Decode(&msg); err != nil {
			return ""
		}
		if ev.Type == apitypes.MessageUserJoined {
			return msg.UserID + " joined"
		}
		return msg.UserID + " left"
	case apitypes.MessageCursor:
		return ""
	default:
		return string(ev.Raw)
	}
}
