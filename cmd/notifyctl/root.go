package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/abytech-hub/notification-core/internal/client/session"
	"github.com/spf13/cobra"
)

const defaultAPIURL = "http://localhost:3000/v1"

type rootOptions struct {
	apiURL    string
	token     string
	tokenFile string
	verbose   bool
	reconcile time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "notifyctl",
		Short:         "Inspect and manage Abytech Hub notifications from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", envOr("NOTIFY_API_URL", defaultAPIURL), "API base URL including /v1 (env NOTIFY_API_URL)")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("NOTIFY_TOKEN"), "bearer token (env NOTIFY_TOKEN)")
	cmd.PersistentFlags().StringVar(&opts.tokenFile, "token-file", os.Getenv("NOTIFY_TOKEN_FILE"), "file holding the bearer token, re-read on every request (env NOTIFY_TOKEN_FILE)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "make output more verbose")

	cmd.AddCommand(
		newListCommand(opts),
		newUnreadCommand(opts),
		newReadCommand(opts),
		newReadAllCommand(opts),
		newCreateCommand(opts),
		newWatchCommand(opts),
		newSearchCommand(opts),
		newDevicesCommand(opts),
		newUnsubscribeAllCommand(opts),
	)
	return cmd
}

func (o *rootOptions) session() (*session.Session, error) {
	cfg := session.Config{BaseURL: o.apiURL, Token: strings.TrimSpace(o.token), ReconcileInterval: o.reconcile}
	if o.tokenFile != "" {
		tf := &tokenFile{path: o.tokenFile}
		if _, err := tf.read(); err != nil {
			return nil, err
		}
		cfg.TokenFunc = tf.Token
	}
	if cfg.Token == "" && cfg.TokenFunc == nil {
		return nil, fmt.Errorf("no token: set --token, --token-file, NOTIFY_TOKEN or NOTIFY_TOKEN_FILE")
	}
	return session.New(cfg), nil
}

// tokenFile re-reads a token that another process rotates. A failed read
// keeps the last token it saw.
type tokenFile struct {
	path string

	mu   sync.Mutex
	last string
}

func (f *tokenFile) read() (string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	tok := strings.TrimSpace(string(raw))
	if tok == "" {
		return "", fmt.Errorf("token file %s is empty", f.path)
	}
	f.mu.Lock()
	f.last = tok
	f.mu.Unlock()
	return tok, nil
}

func (f *tokenFile) Token() string {
	tok, err := f.read()
	if err == nil {
		return tok
	}
	slog.Warn("token file unreadable, reusing last token", "error", err)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
