package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [image]",
	Short: "Enroll identities from face images",
	Long: `Enroll a single identity from one image, or a whole class from a directory.

In directory mode every image file becomes one identity; the file name without
extension is the identity ID (e.g. S1024.jpg enrolls S1024).

Examples:
  # Enroll one student
  face-attendance enroll --id S1024 --name "Jana Nováková" --department 3.B jana.jpg

  # Enroll every photo in a directory as teachers (5 concurrent workers)
  face-attendance enroll --dir ./staff --role teacher --concurrency 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("id", "", "Identity ID (single image mode)")
	enrollCmd.Flags().String("name", "", "Display name (single image mode)")
	enrollCmd.Flags().String("department", "", "Department or class")
	enrollCmd.Flags().String("role", string(database.RoleStudent), "Role: student or teacher")
	enrollCmd.Flags().String("dir", "", "Directory of images to enroll")
	enrollCmd.Flags().Int("concurrency", 3, "Number of parallel workers in directory mode")
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

func runEnroll(cmd *cobra.Command, args []string) error {
	dir := mustGetString(cmd, "dir")
	role := database.Role(mustGetString(cmd, "role"))
	department := mustGetString(cmd, "department")

	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	if dir == "" && len(args) == 0 {
		return errors.New("either an image or --dir is required")
	}

	ctx := context.Background()
	a, err := openApp(ctx, false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	// enrollment extends the persisted index, so start from the directory's full set
	a.warmIndex(ctx)

	if dir != "" {
		return enrollDirectory(ctx, a, dir, role, department, mustGetInt(cmd, "concurrency"))
	}

	id := mustGetString(cmd, "id")
	if id == "" {
		id = identityFromFilename(args[0])
	}
	sample, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	profile, err := a.enroller.Enroll(ctx, attendance.EnrollRequest{
		IdentityID: id,
		Role:       role,
		Name:       mustGetString(cmd, "name"),
		Department: department,
		Sample:     sample,
	})
	if err != nil {
		return fmt.Errorf("failed to enroll %s: %w", id, err)
	}
	fmt.Printf("Enrolled %s (%s) as %s\n", profile.IdentityID, profile.Name, profile.Role)
	return nil
}

func enrollDirectory(ctx context.Context, a *app, dir string, role database.Role, department string, concurrency int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		fmt.Println("No images found")
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	fmt.Printf("Images to enroll: %d\n\n", len(files))

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("faces"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var (
		mu       sync.Mutex
		enrolled int
		failures = make(map[attendance.Kind][]string)
	)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, path := range files {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer bar.Add(1)

			id := identityFromFilename(path)
			sample, err := os.ReadFile(path)
			if err == nil {
				_, err = a.enroller.Enroll(ctx, attendance.EnrollRequest{
					IdentityID: id,
					Role:       role,
					Department: department,
					Sample:     sample,
				})
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				kind := attendance.KindOf(err)
				failures[kind] = append(failures[kind], id)
				return
			}
			enrolled++
		}(path)
	}

	wg.Wait()
	fmt.Println()

	fmt.Printf("\nCompleted: %d enrolled, %d failed\n", enrolled, len(files)-enrolled)
	for kind, ids := range failures {
		slices.Sort(ids)
		fmt.Printf("  %s: %s\n", kind, strings.Join(ids, ", "))
	}
	return nil
}

func identityFromFilename(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
