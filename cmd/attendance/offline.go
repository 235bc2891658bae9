package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/log"
	"github.com/warp/attendance-engine/store/memory"
)

var projectCmd = &cobra.Command{
	Use:   "project <present> <total>",
	Short: "Project how many classes can be missed or must be attended",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		present, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid present count %q: %w", args[0], err)
		}
		total, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid total count %q: %w", args[1], err)
		}
		requested, _ := cmd.Flags().GetFloat64("target")

		target := cfg.Projection.EffectiveTarget(requested)
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"present":    present,
			"total":      total,
			"target":     target,
			"projection": attendance.Project(present, total, target),
		})
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile an official report with tracked records",
	Long: `Reads the official report (nested attendance/courses/sessions JSON)
and a JSON array of tracked records, applies the records that the duty
leave limit admits, and prints the reconciled days and course summaries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := log.WithComponent("reconcile")

		officialPath, _ := cmd.Flags().GetString("official")
		recordsPath, _ := cmd.Flags().GetString("records")
		requested, _ := cmd.Flags().GetFloat64("target")

		scope := attendance.Scope{TargetPercentage: cfg.Projection.EffectiveTarget(requested)}
		scope.Semester, _ = cmd.Flags().GetString("semester")
		scope.AcademicYear, _ = cmd.Flags().GetString("year")

		var report attendance.Report
		if err := readJSON(officialPath, &report); err != nil {
			return err
		}

		var input []attendance.TrackedRecord
		if recordsPath != "" {
			if err := readJSON(recordsPath, &input); err != nil {
				return err
			}
		}

		// Replay through the tracker so the file gets the same slot and
		// duty-leave rules the server enforces.
		tracker := attendance.NewTracker(memory.NewMemory())
		var accepted []attendance.TrackedRecord
		for _, rec := range input {
			accepted, err = tracker.Add(cmd.Context(), accepted, rec)
			if err != nil {
				logger.Warn().Err(err).
					Str("username", rec.Username).
					Str("course", rec.Course).
					Str("date", rec.Date).
					Msg("Skipping tracked record")
			}
		}

		result := attendance.Reconcile(report.Flatten(), accepted, scope)
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"scope":   result.Scope,
			"days":    result.Days(),
			"courses": attendance.Summarize(result),
		})
	},
}

func init() {
	projectCmd.Flags().Float64("target", 0, "Target percentage (default from config)")

	reconcileCmd.Flags().String("official", "", "Official report JSON file")
	reconcileCmd.Flags().String("records", "", "Tracked records JSON file")
	reconcileCmd.Flags().String("semester", "", "Semester to reconcile")
	reconcileCmd.Flags().String("year", "", "Academic year to reconcile")
	reconcileCmd.Flags().Float64("target", 0, "Target percentage (default from config)")
	reconcileCmd.MarkFlagRequired("official")
	reconcileCmd.MarkFlagRequired("semester")
	reconcileCmd.MarkFlagRequired("year")
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
