package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance API server",
	Long: `Start the HTTP API used by attendance kiosks and dashboards.
Prometheus metrics are exposed at /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default WEB_HOST or 0.0.0.0)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := openApp(ctx, true, metrics.New())
	if err != nil {
		return err
	}
	defer a.Close()

	if port := mustGetInt(cmd, "port"); port > 0 {
		a.cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		a.cfg.Web.Host = host
	}

	a.warmIndex(ctx)

	server := web.NewServer(a.cfg, web.Services{
		Engine:   a.engine,
		Guard:    a.guard,
		Stats:    a.stats,
		Enroller: a.enroller,
		Backend:  a.backend,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance API on http://%s:%d\n", a.cfg.Web.Host, a.cfg.Web.Port)
	fmt.Printf("Model %s, threshold %.3f, calendar zone %s\n",
		a.cfg.Matching.Model, a.engine.Threshold(), a.policy.Name())
	if a.cfg.Web.APIToken == "" {
		fmt.Println("Warning: WEB_API_TOKEN not set, enrollment and manual commits are unauthenticated")
	}
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

