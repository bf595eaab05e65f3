package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"rsi-lens/internal/client"
	"rsi-lens/internal/config"
	"rsi-lens/internal/tui"
	"rsi-lens/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	gossh "golang.org/x/crypto/ssh"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	initTracerFunc    = tracing.InitTracer
	readFileFunc      = os.ReadFile
	newWishServerFunc = wish.NewServer
	setupSignalNotify = ossignal.Notify
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, _, err := initTracerFunc(ctx, "rsi-lens-ssh")
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Without an authorized_keys file every public key is accepted.
	var allowed map[string]string
	if cfg.SSHAuthorizedKeys != "" {
		data, err := readFileFunc(cfg.SSHAuthorizedKeys)
		if err != nil {
			log.Fatalf("failed to read authorized keys: %v", err)
		}
		allowed, err = parseAuthorizedKeys(data)
		if err != nil {
			log.Fatalf("failed to parse authorized keys: %v", err)
		}
		log.Printf("Loaded %d authorized SSH keys", len(allowed))
	} else {
		log.Println("SSH_AUTHORIZED_KEYS not set, accepting any public key")
	}

	gateway := client.New(cfg.GatewayURL, cfg.APIKey)
	opts := tui.Options{
		DisplayCount: cfg.DisplayCount,
		ExportDir:    cfg.ExportDir,
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.SSHPort)

	srv, err := newWishServerFunc(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(cfg.SSHHostKeyPath),
		wish.WithPublicKeyAuth(func(ctx ssh.Context, key ssh.PublicKey) bool {
			fingerprint := gossh.FingerprintSHA256(key)
			if allowed == nil {
				return true
			}
			comment, ok := allowed[fingerprint]
			if !ok {
				log.Printf("SSH auth denied: user=%s fingerprint=%s", ctx.User(), fingerprint)
				return false
			}
			log.Printf("SSH auth accepted: user=%s key=%s fingerprint=%s", ctx.User(), comment, fingerprint)
			return true
		}),
		wish.WithMiddleware(
			bubbletea.Middleware(func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
				sessionOpts := opts
				sessionOpts.Username = s.User()

				model := tui.New(gateway, sessionOpts)
				pty, _, _ := s.Pty()
				model.SetSize(pty.Window.Width, pty.Window.Height)

				return model, []tea.ProgramOption{tea.WithAltScreen()}
			}),
			logging.Middleware(),
		),
	)
	if err != nil {
		log.Fatalf("failed to create SSH server: %v", err)
	}

	if srv != nil {
		go func() {
			log.Printf("SSH server listening on %s (gateway %s)", addr, cfg.GatewayURL)
			if err := srv.ListenAndServe(); err != nil {
				log.Printf("SSH server stopped: %v", err)
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down SSH server...")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("SSH server shutdown error: %v", err)
		}
	}

	log.Println("SSH server exited")
}

// parseAuthorizedKeys maps SHA256 fingerprints to key comments for every
// key in an authorized_keys file. Blank lines and # comments are skipped.
func parseAuthorizedKeys(data []byte) (map[string]string, error) {
	keys := make(map[string]string)
	for i, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		key, comment, _, _, err := gossh.ParseAuthorizedKey(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		keys[gossh.FingerprintSHA256(key)] = comment
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no keys found")
	}
	return keys, nil
}
