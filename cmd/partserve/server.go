package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/partserve/internal/api"
	"github.com/kalambet/partserve/internal/composer"
	"github.com/kalambet/partserve/internal/config"
	"github.com/kalambet/partserve/internal/ingest"
	"github.com/kalambet/partserve/internal/knowledge"
	"github.com/kalambet/partserve/internal/pipeline"
	"github.com/kalambet/partserve/internal/provider"
	"github.com/kalambet/partserve/internal/retrieval"
	"github.com/kalambet/partserve/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the partserve server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running partserve server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show partserve system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Embed the knowledge base and persist the snapshot",
	Long: `Embed every question in the per-appliance catalog files and persist
the resulting vectors. The server refuses to start without a snapshot that
matches the catalog, so run this after any catalog change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "partserve.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "partserve version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)

	// Refuse to double-start: probe the health endpoint first.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("partserve is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("partserve is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	db, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Load the knowledge store. Any catalog or snapshot inconsistency is
	// fatal here; the server must not accept traffic against bad data.
	sources, err := ingest.Sources(cfg.Knowledge.Dir)
	if err != nil {
		return err
	}
	store, ix, err := ingest.LoadStore(sources, db)
	if err != nil {
		return fmt.Errorf("loading knowledge store: %w", err)
	}
	log.Info("knowledge store loaded",
		"parts", store.PartCount(), "entries", store.EntryCount(),
		"dimension", store.Dimension(), "model", store.Model())

	// Build the request pipeline.
	embedClient := provider.NewEmbeddingClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.EmbedModel)
	if store.Model() != embedClient.Model() {
		return fmt.Errorf("snapshot was built with model %q but provider.embed_model is %q; re-run ingest", store.Model(), embedClient.Model())
	}
	chatClient := provider.NewChatClient(cfg.Provider.BaseURL, cfg.Provider.APIKey)
	retriever := retrieval.NewRetriever(retrieval.NewEmbedder(embedClient), ix, store)
	comp := composer.New(cfg.Chat.MaxContextChars)
	pipe := pipeline.New(retriever, comp, chatClient, store, pipeline.Config{
		TopK:            cfg.Retrieval.TopK,
		MinScore:        float32(cfg.Retrieval.MinScore),
		MaxHistoryTurns: cfg.Chat.MaxHistoryTurns,
		ChatModel:       cfg.Provider.ChatModel,
		Temperature:     cfg.Chat.Temperature,
		MaxTokens:       cfg.Chat.MaxTokens,
	}, log)

	// Build HTTP server.
	handler := api.NewAppHandler(api.AppDeps{Service: pipe, Log: log})
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{Service: pipe})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("MCP stdio server error", "error", err)
		}
	}()
	log.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "partserve listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runIngest(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	sources, err := ingest.Sources(cfg.Knowledge.Dir)
	if err != nil {
		return err
	}
	printStep("Parsing catalog files...")
	cat, err := knowledge.ParseCatalog(sources)
	if err != nil {
		return err
	}
	printStatus("Parts", "%d", cat.PartCount())
	printStatus("QA entries", "%d", len(cat.Entries()))

	db, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer db.Close()

	embedClient := provider.NewEmbeddingClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.EmbedModel)
	printStep("Embedding %d questions with %s...", len(cat.Entries()), cfg.Provider.EmbedModel)

	n, err := ingest.BuildSnapshot(ctx, cat, retrieval.NewEmbedder(embedClient), embedClient.Model(), db, log)
	if err != nil {
		return err
	}

	printSuccess("Snapshot built: %d vectors", n)
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("partserve is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop partserve (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to partserve (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Provider", "%s", cfg.Provider.BaseURL)
	printStatus("Embed model", "%s", cfg.Provider.EmbedModel)
	printStatus("Chat model", "%s", cfg.Provider.ChatModel)
	printStatus("Knowledge dir", "%s", cfg.Knowledge.Dir)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
