// ABOUTME: Shared CLI plumbing: config, store, desk, saved session token and prompts
// ABOUTME: Every command opens the database through newApp and closes it when done

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/2389/lendtrack/internal/auth"
	"github.com/2389/lendtrack/internal/config"
	"github.com/2389/lendtrack/internal/identity"
	"github.com/2389/lendtrack/internal/lending"
	"github.com/2389/lendtrack/internal/store"
)

type app struct {
	cfg    *config.Config
	store  *store.SQLiteStore
	desk   *lending.Desk
	logger *slog.Logger
}

// newApp loads config, opens the database and provisions the first
// administrator if none exists yet.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadOrDefault(config.DefaultPath())
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	st, err := store.NewSQLiteStore(cfg.Database.Path,
		store.WithDriver(cfg.Database.Driver),
		store.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	opts := []lending.Option{
		lending.WithHasher(auth.NewBcryptHasher(cfg.Auth.BcryptCost)),
		lending.WithBootstrap(identity.BootstrapAccount{
			ID:          cfg.Bootstrap.AdminID,
			DisplayName: cfg.Bootstrap.AdminName,
			Secret:      cfg.Bootstrap.AdminSecret,
		}),
		lending.WithLogger(logger),
	}
	if cfg.Auth.SessionSecret != "" {
		opts = append(opts, lending.WithSessionTokens([]byte(cfg.Auth.SessionSecret), cfg.Auth.SessionTTL))
	}

	desk := lending.NewDesk(st, opts...)
	if _, err := desk.Bootstrap(ctx); err != nil {
		st.Close()
		return nil, err
	}

	return &app{cfg: cfg, store: st, desk: desk, logger: logger}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing database", "error", err)
	}
}

// session resumes the saved login.
func (a *app) session(ctx context.Context) (*lending.Session, error) {
	token := getToken()
	if token == "" {
		return nil, errors.New("not logged in (run: lendtrack login <id>)")
	}

	sess, err := a.desk.Resume(ctx, token)
	if errors.Is(err, lending.ErrNoSessionSecret) {
		return nil, errors.New("auth.session_secret is not set (run: lendtrack init, or set LENDTRACK_AUTH_SESSION_SECRET)")
	}
	if errors.Is(err, auth.ErrExpiredToken) {
		return nil, errors.New("session expired (run: lendtrack login <id>)")
	}
	if err != nil {
		return nil, err
	}

	if sess.MustRotate() {
		warnDefaultSecret()
	}
	return sess, nil
}

func warnDefaultSecret() {
	color.New(color.FgYellow).Fprintln(os.Stderr, "Warning: the default administrator secret is still in use (run: lendtrack passwd)")
}

// withSession opens the app, resumes the session and runs fn.
func withSession(ctx context.Context, fn func(a *app, sess *lending.Session) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	return fn(a, sess)
}

// tokenPath returns ~/.config/lendtrack/token, honoring XDG_CONFIG_HOME.
func tokenPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".lendtrack-token"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "lendtrack", "token")
}

// getToken returns the session token from LENDTRACK_TOKEN or the token file.
func getToken() string {
	if token := os.Getenv("LENDTRACK_TOKEN"); token != "" {
		return token
	}

	data, err := os.ReadFile(tokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveToken(token string) error {
	path := tokenPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	return os.WriteFile(path, []byte(token+"\n"), 0600)
}

func removeToken() error {
	err := os.Remove(tokenPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// stdin is shared so consecutive prompts don't lose buffered lines.
var stdin = bufio.NewReader(os.Stdin)

// readSecret prompts without echo when stdin is a terminal.
func readSecret(question string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", question)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return string(b), nil
	}

	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
