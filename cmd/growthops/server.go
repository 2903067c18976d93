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

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/tripwire24/tw-experiment-engine/internal/api"
	"github.com/tripwire24/tw-experiment-engine/internal/blob"
	"github.com/tripwire24/tw-experiment-engine/internal/config"
	"github.com/tripwire24/tw-experiment-engine/internal/gateway"
	"github.com/tripwire24/tw-experiment-engine/internal/session"
	"github.com/tripwire24/tw-experiment-engine/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the growthops server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running growthops server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show growthops system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "growthops.pid")
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
	fmt.Fprintf(os.Stderr, "growthops version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	apiToken, err := config.GetAPIToken(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("growthops is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("growthops is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wire the persistence strategy and session for the configured mode.
	var (
		persist store.Persistence
		sess    *session.Provider
		avatars blob.Store
	)
	if cfg.Demo() {
		slog.Info("running in demo mode", "reason", "storage.demo is set or no data dir configured")
		persist = store.Noop{}
		sess = session.NewGuest(logger)
	} else {
		gw, err := gateway.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening experiment gateway: %w", err)
		}
		defer func() {
			if err := gw.Close(); err != nil {
				slog.Warn("closing gateway", "error", err)
			}
		}()

		avatars, err = blob.New(ctx, blob.Config{
			Driver:   cfg.Blob.Driver,
			Dir:      cfg.Blob.Dir,
			BaseURL:  "/avatars",
			Bucket:   cfg.Blob.Bucket,
			Region:   cfg.Blob.Region,
			Endpoint: cfg.Blob.Endpoint,
		})
		if err != nil {
			return fmt.Errorf("initializing avatar storage: %w", err)
		}

		persist = store.NewRemote(gw)
		sess = session.NewConnected(gw, avatars, logger)
		slog.Info("running in connected mode", "data_dir", cfg.Storage.DataDir, "blob_driver", cfg.Blob.Driver)
	}

	st := store.New(persist, sess, logger)
	st.Load(ctx)
	defer st.Wait()

	appHandler := api.NewAppHandler(api.AppDeps{
		Store:   st,
		Session: sess,
		Token:   apiToken,
	})

	topRouter := chi.NewRouter()
	topRouter.Mount("/", appHandler)

	// Serve avatars over HTTP when the fs driver is active.
	if fs, ok := avatars.(*blob.FS); ok {
		topRouter.Handle("/avatars/*", http.StripPrefix("/avatars/", http.FileServer(http.Dir(fs.Dir()))))
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: topRouter,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{Store: st})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "growthops listening on %s\n", addr)
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

	// Graceful shutdown with timeout. Outstanding mirror writes drain via
	// the deferred store.Wait.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
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
		printError("growthops is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop growthops (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to growthops (PID %d)", pid)
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

	mode := "connected"
	if cfg.Demo() {
		mode = "demo"
	}
	printStatus("Mode", "%s", mode)

	// Show board/experiment counts if server is running.
	if apiToken, tokenErr := config.GetAPIToken(cfg.Storage.DataDir); tokenErr == nil && resp != nil && resp.StatusCode == 200 {
		ctx := context.Background()
		c := &apiClient{baseURL: serverURL, token: apiToken, httpClient: client}

		if boardsResp, err := c.get(ctx, "/boards"); err == nil {
			var boards []struct {
				ID string `json:"id"`
			}
			if decodeJSON(boardsResp, &boards) == nil {
				printStatus("Boards", "%d", len(boards))
			}
		}
		if expResp, err := c.get(ctx, "/experiments"); err == nil {
			var experiments []struct {
				ID string `json:"id"`
			}
			if decodeJSON(expResp, &experiments) == nil {
				printStatus("Experiments", "%d", len(experiments))
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
