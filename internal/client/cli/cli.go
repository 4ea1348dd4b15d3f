package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iudanet/gophdocs/internal/client/api"
	"github.com/iudanet/gophdocs/internal/client/iocli"
)

// TokenEnv names the environment variable holding the API token
const TokenEnv = "GOPHDOCS_TOKEN"

// TokenSources lists where an API token may come from
type TokenSources struct {
	FromFile string
	FromArgs string
	Prompt   bool
}

// Cli runs client commands against one server
type Cli struct {
	apiClient *api.Client
	io        iocli.IO
	userID    string
}

func New(apiClient *api.Client, io iocli.IO, userID string) *Cli {
	return &Cli{
		apiClient: apiClient,
		io:        io,
		userID:    userID,
	}
}

// ResolveToken выбирает API токен в порядке приоритета:
// 1. Переменная окружения GOPHDOCS_TOKEN
// 2. Файл sources.FromFile
// 3. Параметр командной строки
// 4. Интерактивный ввод, если задан sources.Prompt
//
// Пустой результат означает запросы без аутентификации.
func ResolveToken(console iocli.IO, sources TokenSources) (string, error) {
	return resolveToken(console, sources, os.Getenv)
}

func resolveToken(console iocli.IO, sources TokenSources, getenv func(string) string) (string, error) {
	if token := strings.TrimSpace(getenv(TokenEnv)); token != "" {
		return token, nil
	}

	if sources.FromFile != "" {
		content, err := os.ReadFile(sources.FromFile)
		if err != nil {
			return "", fmt.Errorf("failed to read token file: %w", err)
		}
		token := strings.TrimSpace(string(content))
		if token == "" {
			return "", fmt.Errorf("token file is empty")
		}
		return token, nil
	}

	if sources.FromArgs != "" {
		return sources.FromArgs, nil
	}

	if sources.Prompt {
		token, err := console.ReadPassword("Token: ")
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(token), nil
	}

	return "", nil
}

// PrintUsage writes the command summary to w
func PrintUsage(w io.Writer) {
	_, _ = fmt.Fprint(w, `GophDocs Client

Usage:
  gophdocs [OPTIONS] COMMAND [ARGS]

Options:
  --version            Show version information
  --server URL         Server URL (default: http://localhost:8080)
  --user ID            User id announced when editing (default: $USER)
  --token TOKEN        API token (not recommended, use env var or file)
  --token-file PATH    Path to file containing the API token
  --ask-token          Prompt for the API token

Token Priority (highest to lowest):
  1. GOPHDOCS_TOKEN environment variable
  2. --token-file (file path)
  3. --token (command line)
  4. Interactive prompt (--ask-token)

Commands:
  status                   Check that the server is up
  list                     List documents
  create <title> [text]    Create a document
  get <id>                 Show a document with its content
  delete <id>              Delete a document
  append <id> <text>       Append text to a document through a live session
  watch <id>               Follow live edits of a document until interrupted

Examples:
  gophdocs create "Meeting notes" "Agenda:"
  gophdocs append 0b6f... " item one"
  GOPHDOCS_TOKEN=... gophdocs --server https://docs.example.com watch 0b6f...
`)
}
