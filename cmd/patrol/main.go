package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joyax/pool-patrol/pkg/api"
	"github.com/joyax/pool-patrol/pkg/approval"
	"github.com/joyax/pool-patrol/pkg/audit"
	"github.com/joyax/pool-patrol/pkg/casemanager"
	"github.com/joyax/pool-patrol/pkg/classify"
	"github.com/joyax/pool-patrol/pkg/config"
	"github.com/joyax/pool-patrol/pkg/contracts"
	"github.com/joyax/pool-patrol/pkg/llm"
	"github.com/joyax/pool-patrol/pkg/locks"
	"github.com/joyax/pool-patrol/pkg/mail"
	"github.com/joyax/pool-patrol/pkg/observability"
	"github.com/joyax/pool-patrol/pkg/outreach"
	"github.com/joyax/pool-patrol/pkg/roster"
	"github.com/joyax/pool-patrol/pkg/store"
	"github.com/joyax/pool-patrol/pkg/templates"
	"github.com/joyax/pool-patrol/pkg/verify"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServe(stdout, stderr)
	}

	switch args[1] {
	case "serve", "server":
		return runServe(stdout, stderr)
	case "investigate":
		return runInvestigate(args[2:], stdout, stderr)
	case "resume":
		return runResume(args[2:], stdout, stderr)
	case "seed":
		return runSeed(stdout, stderr)
	case "health":
		return runHealth(stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Pool Patrol — vanpool eligibility investigation engine")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  patrol <command> [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  serve                      Run the HTTP server (default)")
	fmt.Fprintln(w, "  investigate <vanpool-id>   Run one investigation cycle")
	fmt.Fprintln(w, "  resume <checkpoint-id> <approve|edit|reject> [reason]")
	fmt.Fprintln(w, "                             Apply a human decision to a checkpoint")
	fmt.Fprintln(w, "  seed                       Load the demo fleet into the store")
	fmt.Fprintln(w, "  health                     Check server health over HTTP")
	fmt.Fprintln(w, "  help                       Show this help")
}

// engine bundles everything a command needs after wiring.
type engine struct {
	cfg     *config.Config
	store   store.Store
	manager *casemanager.Manager
	obs     *observability.Provider
	logger  *slog.Logger
}

func (e *engine) close(ctx context.Context) {
	if e.obs != nil {
		_ = e.obs.Shutdown(ctx)
	}
}

// buildEngine wires the orchestrator from environment configuration.
func buildEngine(ctx context.Context) (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if strings.EqualFold(cfg.LogLevel, "debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var st store.Store
	switch cfg.StoreDriver {
	case "sqlite":
		st, err = store.OpenSQLite(cfg.SQLitePath)
	case "postgres":
		st, err = store.OpenPostgres(cfg.DatabaseURL)
	case "memory":
		st = store.NewMemory()
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var locker locks.Locker
	if cfg.RedisAddr != "" {
		locker = locks.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LockTTL)
	} else {
		locker = locks.NewInProcess()
	}

	var classifier classify.Classifier
	if cfg.OpenAIAPIKey != "" {
		client := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel).WithBaseURL(cfg.OpenAIBaseURL)
		classifier = classify.NewLLM(client, logger)
	} else {
		logger.Warn("no OPENAI_API_KEY; using keyword reply classification")
		classifier = classify.NewKeyword()
	}

	var sender mail.Sender
	if cfg.ResendAPIKey != "" {
		sender = mail.NewResend(cfg.ResendAPIKey)
	} else {
		logger.Warn("no RESEND_API_KEY; outbound mail is captured in memory only")
		sender = mail.NewMemory()
	}

	registry := templates.NewRegistry()
	if cfg.TemplateOverridesPath != "" {
		if err := registry.LoadOverrides(cfg.TemplateOverridesPath); err != nil {
			return nil, err
		}
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	obsCfg.Enabled = cfg.OTLPEndpoint != ""
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}

	gate := approval.NewGate(st, logger)
	out := outreach.NewOrchestrator(st, classifier, sender, registry, gate, logger)
	manager := casemanager.NewManager(
		st,
		roster.NewService(st),
		verify.NewShiftSpecialist(st),
		verify.NewLocationSpecialist(defaultServiceAreas()),
		out,
		gate,
		audit.NewRecorder(st, logger),
		locker,
		obs,
		logger,
	).WithTimeout(cfg.ReplyTimeout)

	return &engine{cfg: cfg, store: st, manager: manager, obs: obs, logger: logger}, nil
}

// defaultServiceAreas maps work sites to the home-zip prefixes their vanpool
// program serves.
func defaultServiceAreas() map[string][]string {
	return map[string][]string{
		"Redmond Campus":  {"980", "981"},
		"Seattle Office":  {"980", "981", "982"},
		"Tacoma Plant":    {"983", "984"},
		"Everett Factory": {"982", "985"},
	}
}

func runServe(stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "startup: %v\n", err)
		return 1
	}
	defer eng.close(context.Background())

	srv := api.NewServer(eng.manager, eng.store, api.NewTokenManager(eng.cfg.JWTSecret), eng.logger)
	httpServer := &http.Server{
		Addr:              ":" + eng.cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	eng.logger.Info("server listening", "port", eng.cfg.Port, "store", eng.cfg.StoreDriver)

	select {
	case err := <-errCh:
		fmt.Fprintf(stderr, "server: %v\n", err)
		return 1
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(stderr, "shutdown: %v\n", err)
		return 1
	}
	eng.logger.Info("server stopped")
	return 0
}

func runInvestigate(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: patrol investigate <vanpool-id>")
		return 2
	}

	ctx := context.Background()
	eng, err := buildEngine(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "startup: %v\n", err)
		return 1
	}
	defer eng.close(ctx)

	result, err := eng.manager.Investigate(ctx, args[0])
	if err != nil {
		fmt.Fprintf(stderr, "investigate: %v\n", err)
		return 1
	}
	return printJSON(stdout, stderr, result)
}

func runResume(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprintln(stderr, "Usage: patrol resume <checkpoint-id> <approve|edit|reject> [reason]")
		return 2
	}

	decision := contracts.Decision{
		Kind:      contracts.DecisionKind(args[1]),
		DecidedBy: "cli",
	}
	if len(args) > 2 {
		decision.Reason = strings.Join(args[2:], " ")
	}

	ctx := context.Background()
	eng, err := buildEngine(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "startup: %v\n", err)
		return 1
	}
	defer eng.close(ctx)

	result, err := eng.manager.Resume(ctx, args[0], decision)
	if err != nil {
		fmt.Fprintf(stderr, "resume: %v\n", err)
		return 1
	}
	return printJSON(stdout, stderr, result)
}

func runHealth(stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://localhost:" + cfg.Port + "/healthz")
	if err != nil {
		fmt.Fprintf(stderr, "health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "unhealthy: HTTP %d\n", resp.StatusCode)
		return 1
	}
	fmt.Fprintln(stdout, "ok")
	return 0
}

func printJSON(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "encode: %v\n", err)
		return 1
	}
	return 0
}
