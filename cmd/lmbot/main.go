// Command lmbot serves a WhatsApp chat bot backed by a local LM Studio server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/lojasmm/lmbot/internal/backend"
	"github.com/lojasmm/lmbot/internal/bot"
	"github.com/lojasmm/lmbot/internal/cache"
	"github.com/lojasmm/lmbot/internal/config"
	"github.com/lojasmm/lmbot/internal/logger"
	"github.com/lojasmm/lmbot/internal/search"
	"github.com/lojasmm/lmbot/internal/session"
	"github.com/lojasmm/lmbot/internal/sysinfo"
	"github.com/lojasmm/lmbot/internal/whatsapp"
)

const (
	cleanupInterval = 30 * time.Minute
	idleMaxAge      = time.Hour
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "lmbot",
	Short: "WhatsApp bot for a local LM Studio server",
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	RunE:  runServe,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the model server and list loaded models",
	RunE:  runCheck,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("lmbot: exiting", "err", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error (overrides LOG_LEVEL)")
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.AddCommand(serveCmd, checkCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger.Configure(cfg.LogLevel, os.Stderr)
	return cfg, nil
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lm := backend.NewClient(cfg.LMBaseURL, cfg.LMModel, cfg.LMTimeout)
	if !lm.Probe(cmd.Context()) {
		return fmt.Errorf("%w at %s", backend.ErrBackendUnavailable, lm.BaseURL())
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "model server at %s is up\n", lm.BaseURL())
	models := lm.ListModels(cmd.Context())
	if len(models) == 0 {
		fmt.Fprintln(out, "no models loaded")
	}
	for _, m := range models {
		fmt.Fprintf(out, "  %s\n", m)
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lm := backend.NewClient(cfg.LMBaseURL, cfg.LMModel, cfg.LMTimeout)
	if lm.Probe(ctx) {
		logger.Info("lmbot: model server is up", "url", lm.BaseURL())
	} else {
		logger.Warn("lmbot: model server not reachable, replies will ask the user to start it", "url", lm.BaseURL())
	}

	sessions := session.NewStore(cfg.SystemPrompt, cfg.HistoryLimit)
	dispatcher := bot.NewDispatcher(lm, sessions,
		bot.WithSearch(search.NewClient(cache.DefaultTTL)),
		bot.WithStats(sysinfo.Read),
		bot.WithMessageLimit(cfg.MessageLimit),
	)

	// in-flight replies outlive the signal context so they can finish during
	// shutdown; workCtx is cancelled once the drain grace period is over
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	waClient := whatsapp.NewClient(cfg.WAPhoneNumberID, cfg.WAAccessToken)
	botHandler := bot.NewHandler(workCtx, waClient, dispatcher)
	webhookHandler := whatsapp.NewWebhookHandler(cfg.WAVerifyToken, botHandler.HandleMessage)

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessions.Cleanup(idleMaxAge)
				botHandler.Cleanup(idleMaxAge)
			}
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/webhook", webhookHandler.HandleVerify)
	r.Post("/webhook", webhookHandler.HandleIncoming)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("lmbot: listening", "port", cfg.Port)
		logger.Info("lmbot: webhook verify token", "token", cfg.WAVerifyToken)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("lmbot: shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if !drain(botHandler.Wait, cfg.LMTimeout, cancelWork) {
		logger.Warn("lmbot: replies still running after grace period, cancelled them")
	}
	logger.Info("lmbot: stopped")
	return nil
}

// drain waits for wait to return. If that takes longer than grace it calls
// cancel, waits again and reports false.
func drain(wait func(), grace time.Duration, cancel context.CancelFunc) bool {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		cancel()
		<-done
		return false
	}
}
