package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"time"

	"trail-go/internal/app"
	"trail-go/internal/config"
	"trail-go/internal/trail"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// command identifies the CLI command in the log (e.g. "record", "sync").
func newApp(ctx context.Context, command string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(ctx, cfg, command, app.Options{})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "trail",
	Short:        "Record routes and publish them",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		deviceID := uuid.New().String()
		cfg := config.NewConfig(deviceID, defaults.BaseDir)

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Device ID: %s\n", deviceID)
		fmt.Printf("Base Dir:  %s\n", defaults.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Device ID:    %s\n", cfg.DeviceID)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Database:     %s\n", cfg.Database.Type)
		fmt.Printf("Object Store: %s\n", cfg.ObjectStore.Type)
		fmt.Printf("Remote:       %s %s\n", cfg.Remote.Type, cfg.Remote.BaseURL)
		return nil
	},
}

// record command
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a route from a GPX track",
	RunE: func(cmd *cobra.Command, args []string) error {
		gpxPath, _ := cmd.Flags().GetString("gpx")
		name, _ := cmd.Flags().GetString("name")
		difficulty, _ := cmd.Flags().GetString("difficulty")
		image, _ := cmd.Flags().GetString("image")
		rawMarks, _ := cmd.Flags().GetStringArray("mark")
		doSync, _ := cmd.Flags().GetBool("sync")

		if image != "" {
			abs, err := filepath.Abs(image)
			if err != nil {
				return fmt.Errorf("resolving image path: %w", err)
			}
			image = abs
		}

		marks := make([]app.Mark, 0, len(rawMarks))
		for _, raw := range rawMarks {
			m, err := app.ParseMark(raw)
			if err != nil {
				return err
			}
			marks = append(marks, m)
		}

		a, err := newApp(cmd.Context(), "record")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Record(cmd.Context(), app.RecordRequest{
			GPXPath:    gpxPath,
			Name:       name,
			Difficulty: trail.Difficulty(difficulty),
			ImagePath:  image,
			Marks:      marks,
			Sync:       doSync,
		})
		if err != nil {
			return fmt.Errorf("record failed: %w", err)
		}

		snap := res.Snapshot
		fmt.Printf("Saved session %d: %.3f km, %s, %d point(s), %d interest point(s)\n",
			res.LocalID,
			snap.DistanceTraveledKm,
			(time.Duration(snap.ElapsedSeconds) * time.Second).String(),
			len(snap.Path),
			len(snap.InterestPoints),
		)
		if doSync {
			if res.SyncErr != nil {
				fmt.Printf("Upload failed: %v\n", res.SyncErr)
				fmt.Println("The session is kept locally; retry with 'trail sync --pending'.")
				return nil
			}
			fmt.Println("Uploaded.")
		}
		return nil
	},
}

// sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect recorded sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "sessions")
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := a.Service().ListSessions(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions recorded.")
			return nil
		}

		for _, s := range sessions {
			state := "pending"
			if s.Synced {
				state = "synced"
			}
			fmt.Printf("#%d  %s  %-7s  %8.3f km  %-8s  %s\n",
				s.ID,
				s.StartTime.Local().Format("2006-01-02 15:04"),
				state,
				s.DistanceKm,
				s.Difficulty,
				s.Name,
			)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "sessions")
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.Service().GetSession(cmd.Context(), id)
		if err != nil {
			return err
		}

		fmt.Printf("Session:    #%d\n", s.ID)
		fmt.Printf("Name:       %s\n", s.Name)
		fmt.Printf("Difficulty: %s\n", s.Difficulty)
		fmt.Printf("Started:    %s\n", s.StartTime.Local().Format(time.RFC3339))
		fmt.Printf("Ended:      %s\n", s.EndTime.Local().Format(time.RFC3339))
		fmt.Printf("Distance:   %.3f km\n", s.DistanceKm)
		fmt.Printf("Duration:   %s\n", (time.Duration(s.DurationSeconds) * time.Second).String())
		fmt.Printf("Points:     %d\n", len(s.Path))
		if s.LocalImageURI != "" {
			fmt.Printf("Image:      %s\n", s.LocalImageURI)
		}
		if s.Synced {
			fmt.Printf("Synced:     yes (remote id %s)\n", s.RemoteID)
		} else if s.RemoteID != "" {
			fmt.Printf("Synced:     partially (remote id %s)\n", s.RemoteID)
		} else {
			fmt.Println("Synced:     no")
		}
		for _, p := range s.InterestPoints {
			fmt.Printf("  %-9s  %.5f, %.5f  %s  %s\n",
				p.Kind, p.Latitude, p.Longitude, p.CreatedAt.Local().Format("15:04:05"), p.Note)
		}
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync [ID]",
	Short: "Upload a session, or every pending session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pending, _ := cmd.Flags().GetBool("pending")
		if pending == (len(args) == 1) {
			return fmt.Errorf("pass either a session ID or --pending")
		}

		a, err := newApp(cmd.Context(), "sync")
		if err != nil {
			return err
		}
		defer a.Close()

		if !pending {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.Service().Upload(cmd.Context(), id); err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}
			fmt.Printf("Uploaded session %d\n", id)
			return nil
		}

		report, err := a.Service().SyncPending(cmd.Context())
		if err != nil {
			return err
		}
		if report.Attempted == 0 {
			fmt.Println("Nothing to upload.")
			return nil
		}

		fmt.Printf("Uploaded %d of %d session(s)\n", report.Succeeded, report.Attempted)
		failed := make([]int64, 0, len(report.Failed))
		for id := range report.Failed {
			failed = append(failed, id)
		}
		sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
		for _, id := range failed {
			fmt.Printf("  #%d: %v\n", id, report.Failed[id])
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d upload(s) failed", len(failed))
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View upload attempt history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "history")
		if err != nil {
			return err
		}
		defer a.Close()

		attempts, err := a.Service().History(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(attempts) == 0 {
			fmt.Println("No uploads attempted.")
			return nil
		}

		for _, at := range attempts {
			duration := ""
			if !at.FinishedAt.IsZero() {
				duration = at.FinishedAt.Sub(at.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  session %-4d  %s  %-7s  %-10s  %-8s  %s\n",
				at.ID,
				at.SessionID,
				at.StartedAt.Local().Format("2006-01-02 15:04:05"),
				at.Status,
				at.Step,
				duration,
				at.Error,
			)
		}
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Back up and restore the local database",
}

var dbKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the backup key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "db-keys")
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readNewPassphrase(os.Stdin, os.Stderr)
		if err != nil {
			return err
		}
		if err := a.SetupKeys(pass); err != nil {
			return fmt.Errorf("setting up keys: %w", err)
		}
		fmt.Println("Backup keys created. Keep the passphrase safe: restores need it.")
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload an encrypted snapshot of the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "db-backup")
		if err != nil {
			return err
		}
		defer a.Close()

		key, err := a.Backup(cmd.Context())
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Database backed up to %s\n", key)
		return nil
	},
}

var dbRestoreCmd = &cobra.Command{
	Use:   "restore DEST",
	Short: "Restore the latest database backup to DEST",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "db-restore")
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("Passphrase: ", os.Stdin, os.Stderr)
		if err != nil {
			return err
		}
		if err := a.Restore(cmd.Context(), pass, args[0]); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Database restored to %s\n", args[0])
		return nil
	},
}

// storage command
var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Manage the object store",
}

var storageValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the object store is reachable and writable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "storage-validate")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ValidateStorage(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Object store OK.")
		return nil
	},
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid session id %q", raw)
	}
	return id, nil
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// record
	recordCmd.Flags().String("gpx", "", "GPX track to replay (required)")
	recordCmd.Flags().String("name", "", "Route name (required)")
	recordCmd.Flags().String("difficulty", "", "Easy, Medium or Hard (required)")
	recordCmd.Flags().String("image", "", "Route image (JPEG)")
	recordCmd.Flags().StringArray("mark", nil, "Interest point as INDEX:KIND[:NOTE], repeatable")
	recordCmd.Flags().Bool("sync", false, "Upload right after saving")
	recordCmd.MarkFlagRequired("gpx")
	recordCmd.MarkFlagRequired("name")
	recordCmd.MarkFlagRequired("difficulty")

	// sessions subcommands
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsListCmd.Flags().IntP("limit", "n", 50, "Maximum number of sessions to show")

	syncCmd.Flags().Bool("pending", false, "Upload every session not yet synced")
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of attempts to show")

	// db subcommands
	dbCmd.AddCommand(dbKeysCmd)
	dbCmd.AddCommand(dbBackupCmd)
	dbCmd.AddCommand(dbRestoreCmd)

	storageCmd.AddCommand(storageValidateCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(storageCmd)
}
