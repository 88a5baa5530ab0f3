package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/calendar"
	"github.com/kozaktomas/face-attendance/internal/database"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show attendance statistics",
	Long: `Show per-identity attendance over a period, or who was present on one day.

Examples:
  # Everyone in February, 20 school days expected
  face-attendance stats --from 2024-02-01 --to 2024-02-29 --expected 20

  # One student this month
  face-attendance stats --id S1024

  # Who was present today
  face-attendance stats --day today`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().String("id", "", "Identity to summarize (default all)")
	statsCmd.Flags().String("role", "", "Limit the roster to student or teacher")
	statsCmd.Flags().String("from", "", "First day, YYYY-MM-DD (default first day of the month)")
	statsCmd.Flags().String("to", "", "Last day, YYYY-MM-DD (default today)")
	statsCmd.Flags().Int("expected", 0, "Expected occurrences per identity")
	statsCmd.Flags().String("day", "", "Show the daily summary for YYYY-MM-DD or 'today'")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if day := mustGetString(cmd, "day"); day != "" {
		return printDaily(ctx, a, day)
	}

	period, err := statsPeriod(a.policy, mustGetString(cmd, "from"), mustGetString(cmd, "to"))
	if err != nil {
		return err
	}
	expected := mustGetInt(cmd, "expected")

	var snaps []attendance.Snapshot
	if id := mustGetString(cmd, "id"); id != "" {
		snap, err := a.stats.Summarize(ctx, id, period, expected)
		if err != nil {
			return err
		}
		snaps = append(snaps, snap)
	} else {
		profiles, err := a.backend.Profiles.ListProfiles(ctx, database.Role(mustGetString(cmd, "role")))
		if err != nil {
			return fmt.Errorf("failed to list profiles: %w", err)
		}
		roster := make([]string, 0, len(profiles))
		for _, p := range profiles {
			roster = append(roster, p.IdentityID)
		}
		if snaps, err = a.stats.SummarizeAll(ctx, period, attendance.FixedExpectation(expected), roster); err != nil {
			return err
		}
	}

	fmt.Printf("Attendance %s to %s\n\n", period.Start, period.End)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tPRESENT\tFACE\tMANUAL\tEXPECTED\tRATIO")
	for _, s := range snaps {
		ratio := "-"
		if s.Ratio != nil {
			ratio = fmt.Sprintf("%.1f%%", *s.Ratio*100)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
			s.IdentityID, s.TotalCommitted, s.FaceMatch, s.Manual, s.TotalExpected, ratio)
	}
	return w.Flush()
}

func statsPeriod(policy calendar.Policy, from, to string) (calendar.Period, error) {
	end := policy.Today()
	if to != "" {
		d, err := calendar.ParseDate(to)
		if err != nil {
			return calendar.Period{}, err
		}
		end = d
	}
	start := calendar.NewDate(end.Year, end.Month, 1)
	if from != "" {
		d, err := calendar.ParseDate(from)
		if err != nil {
			return calendar.Period{}, err
		}
		start = d
	}
	return calendar.Period{Start: start, End: end}, nil
}

func printDaily(ctx context.Context, a *app, day string) error {
	date := a.policy.Today()
	if day != "today" {
		d, err := calendar.ParseDate(day)
		if err != nil {
			return err
		}
		date = d
	}

	summary, err := a.stats.Daily(ctx, date)
	if err != nil {
		return err
	}

	fmt.Printf("Present on %s: %d\n", summary.Date, summary.TotalPresent)
	for role, n := range summary.ByRole {
		fmt.Printf("  %s: %d\n", role, n)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tIDENTITY\tNAME\tSOURCE\tLOCATION\tSUBJECT")
	for _, c := range summary.Commits {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Timestamp.In(a.policy.Location()).Format("15:04:05"),
			c.IdentityID, c.IdentityName, c.Source, c.Location, c.Subject)
	}
	return w.Flush()
}
