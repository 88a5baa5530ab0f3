package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <image>",
	Short: "Verify a face image and optionally record attendance",
	Long: `Verify a face image against a claimed identity, or identify it among all
enrolled identities when --id is omitted.

Examples:
  # Check whether the image is S1024 (nothing is recorded)
  face-attendance verify --id S1024 photo.jpg

  # Identify and record attendance
  face-attendance verify --commit --location "Room 101" photo.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("id", "", "Claimed identity (empty identifies among all enrolled)")
	verifyCmd.Flags().Bool("commit", false, "Record attendance on a match")
	verifyCmd.Flags().String("location", "", "Location recorded with the commit")
	verifyCmd.Flags().String("subject", "", "Subject recorded with the commit")
}

func runVerify(cmd *cobra.Command, args []string) error {
	sample, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	ctx := context.Background()
	a, err := openApp(ctx, false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	var result attendance.VerificationResult
	if id := mustGetString(cmd, "id"); id != "" {
		result, err = a.engine.Verify(ctx, id, sample)
	} else {
		a.warmIndex(ctx)
		result, err = a.engine.Identify(ctx, sample)
	}
	if err != nil {
		return fmt.Errorf("verification failed (%s): %w", attendance.KindOf(err), err)
	}

	if result.Matched {
		fmt.Printf("Match: %s (distance %.4f < %.4f)\n", result.IdentityID, result.Distance, result.Threshold)
	} else {
		fmt.Printf("No match (distance %.4f >= %.4f)\n", result.Distance, result.Threshold)
	}

	if !mustGetBool(cmd, "commit") {
		return nil
	}

	outcome, err := a.guard.TryCommit(ctx, result, mustGetString(cmd, "location"), mustGetString(cmd, "subject"))
	if err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	switch outcome.Status {
	case attendance.StatusCommitted:
		fmt.Printf("Attendance recorded for %s on %s\n", outcome.Commit.IdentityID, outcome.Commit.CalendarDate)
	case attendance.StatusDuplicate:
		fmt.Printf("Already recorded for %s on %s at %s\n", outcome.Commit.IdentityID,
			outcome.Commit.CalendarDate, outcome.Commit.Timestamp.In(a.policy.Location()).Format("15:04:05"))
	case attendance.StatusNoMatch:
		fmt.Println("Nothing recorded")
	}
	return nil
}
