package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Face verification and attendance ledger",
	Long: `Face Attendance verifies a face sample against an enrolled identity and
records at most one attendance commit per identity per calendar day.

Face templates are computed by an external embedding server (EMBEDDING_URL);
enrollments and the attendance ledger live in PostgreSQL (DATABASE_URL).`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
