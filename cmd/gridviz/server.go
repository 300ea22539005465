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
	"golang.org/x/sync/errgroup"

	"github.com/gridviz/gridviz/internal/analytics"
	"github.com/gridviz/gridviz/internal/api"
	"github.com/gridviz/gridviz/internal/catalog"
	"github.com/gridviz/gridviz/internal/config"
	"github.com/gridviz/gridviz/internal/grafana"
	"github.com/gridviz/gridviz/internal/inference"
	"github.com/gridviz/gridviz/internal/pipeline"
	"github.com/gridviz/gridviz/internal/query"
	"github.com/gridviz/gridviz/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gridviz server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running gridviz server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gridviz system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "gridviz.pid")
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
	fmt.Fprintf(os.Stderr, "gridviz version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Refuse to start a second instance on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("gridviz is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("gridviz is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the local result store.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	// Connect to the analytics Postgres store.
	analyticsDB, err := analytics.Open(ctx, analytics.Config{
		URL:             cfg.Analytics.URL,
		PingTimeout:     cfg.Analytics.PingTimeoutDuration(),
		MaxOpenConns:    cfg.Analytics.MaxOpenConns,
		MaxIdleConns:    cfg.Analytics.MaxIdleConns,
		ConnMaxLifetime: cfg.Analytics.ConnMaxLifetimeDuration(),
	})
	if err != nil {
		return fmt.Errorf("connecting to analytics store: %w", err)
	}
	defer analyticsDB.Close()

	// Probe the inference engine; the rule-based generator covers for
	// it when it is down, so this is informational.
	infClient := inference.New(cfg.Inference.BaseURL, cfg.Inference.APIKey)
	if infClient.IsRunning(ctx) {
		slog.Info("inference engine ready", "base_url", cfg.Inference.BaseURL, "model", cfg.Inference.Model)
	} else {
		slog.Warn("inference engine unreachable, using rule-based generation only", "base_url", cfg.Inference.BaseURL)
	}

	// Probe Grafana. Provisioning cannot work without it, but startup
	// continues so read endpoints stay available.
	grafanaClient := grafana.NewClient(cfg.Grafana.BaseURL, cfg.Grafana.Username, cfg.Grafana.Password)
	if err := grafanaClient.Ping(ctx); err != nil {
		slog.Warn("grafana unreachable", "base_url", cfg.Grafana.BaseURL, "error", err)
	}

	// Assemble the pipeline.
	cat := catalog.Default()
	orchestrator := pipeline.New(pipeline.Deps{
		Resolver:  catalog.NewResolver(cat, infClient, cfg.Inference.Model),
		Generator: query.NewLLMGenerator(infClient, cfg.Inference.Model),
		Fallback:  query.NewRuleGenerator(),
		Previewer: analytics.NewPreviewer(analyticsDB).
			WithLimit(cfg.Pipeline.PreviewLimit).
			WithWindow(cfg.Pipeline.PreviewWindow),
		Panels:      grafana.NewPanelBuilder(cfg.Grafana.DatasourceUID),
		Provisioner: grafanaClient,
		Store:       store,
	})

	handler := api.NewAppHandler(api.AppDeps{
		Runner:  orchestrator,
		Store:   store,
		Catalog: cat,
		Token:   cfg.API.Token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Runner:  orchestrator,
		Recents: store,
		Catalog: cat,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "gridviz listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	slog.Info("MCP server started (stdio transport)")

	return g.Wait()
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
		printError("gridviz is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop gridviz (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to gridviz (PID %d)", pid)
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

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	infClient := inference.New(cfg.Inference.BaseURL, cfg.Inference.APIKey)
	if infClient.IsRunning(ctx) {
		printStatus("Inference", "running at %s", cfg.Inference.BaseURL)
	} else {
		printStatus("Inference", "not running (rule-based fallback active)")
	}

	grafanaClient := grafana.NewClient(cfg.Grafana.BaseURL, cfg.Grafana.Username, cfg.Grafana.Password)
	if err := grafanaClient.Ping(ctx); err != nil {
		printStatus("Grafana", "unreachable at %s", cfg.Grafana.BaseURL)
	} else {
		printStatus("Grafana", "running at %s", cfg.Grafana.BaseURL)
	}

	printStatus("Model", "%s", cfg.Inference.Model)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
