package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clytar/clytar-backend/config"
	"github.com/clytar/clytar-backend/internal/auth/session"
	"github.com/clytar/clytar-backend/internal/bootstrap"
	"github.com/clytar/clytar-backend/internal/logging"
)

var (
	sessionPath string
	verbose     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "clytar",
	Short:         "Plan, draft and schedule content from the terminal",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sessionPath, "session", "", "session file (default ~/.clytar/session.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
}

// cliApp is the in-process backend plus the stored session.
type cliApp struct {
	*bootstrap.App
	client *session.Client
}

func defaultSessionPath() (string, error) {
	if p := os.Getenv("CLYTAR_SESSION"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, ".clytar", "session.toml"), nil
}

// newApp loads the config, wires the services and restores the stored
// session. The caller must defer close.
func newApp(ctx context.Context) (*cliApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	log := zap.NewNop()
	if verbose {
		if log, err = logging.New(cfg.App.Environment, "debug"); err != nil {
			return nil, err
		}
	}

	app, err := bootstrap.NewApp(ctx, cfg, log, bootstrap.AppOptions{})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	path := sessionPath
	if path == "" {
		if path, err = defaultSessionPath(); err != nil {
			_ = app.Close(ctx)
			return nil, err
		}
	}
	client, err := session.NewClient(ctx, app.Sessions, session.FileTokenStore{Path: path})
	if err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("restoring session: %w", err)
	}
	return &cliApp{App: app, client: client}, nil
}

func (a *cliApp) close(ctx context.Context) {
	_ = a.App.Close(ctx)
}

var errNotSignedIn = errors.New("not signed in, run `clytar signin` first")

func (a *cliApp) session() (*session.Session, error) {
	s := a.client.GetSession()
	if s == nil {
		return nil, errNotSignedIn
	}
	return s, nil
}

// withApp runs fn against a fresh app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *cliApp) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)
	return fn(ctx, a)
}
