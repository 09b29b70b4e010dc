package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goodtune/lounge/internal/report"
	"github.com/goodtune/lounge/internal/storage"
	"github.com/spf13/cobra"
)

var (
	dataOutput string
	dataYes    bool
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Export, back up, restore and clear the ledger",
}

var dataExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the JSON export of every session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(_ context.Context, a *app) error {
			export, err := a.calc.BuildExport(a.tracker.List(), a.tracker.Settings(), a.tracker.Now())
			if err != nil {
				return err
			}
			return writeOutput(dataOutput, export)
		})
	},
}

var dataBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a restorable snapshot of sessions and settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(_ context.Context, a *app) error {
			return writeOutput(dataOutput, a.tracker.Export())
		})
	},
}

var dataImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace the ledger with a snapshot",
	Long:  `Replace every session and the settings with the contents of a snapshot written by "data backup". Use - to read standard input.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshot, err := readSnapshot(args[0])
		if err != nil {
			return err
		}
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			if err := a.tracker.Import(ctx, snapshot); err != nil {
				return err
			}
			printOK("Imported %d sessions", len(snapshot.Sessions))
			return nil
		})
	},
}

var dataClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every session and restore default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !dataYes {
			return fmt.Errorf("refusing to clear all data without --yes")
		}
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			if err := a.tracker.Clear(ctx); err != nil {
				return err
			}
			printOK("All sessions deleted")
			return nil
		})
	},
}

func writeOutput(path string, v any) error {
	if path == "" || path == "-" {
		return report.WriteJSON(os.Stdout, v)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := report.WriteJSON(f, v); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	printOK("Wrote %s", path)
	return nil
}

func readSnapshot(path string) (storage.Snapshot, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return storage.Snapshot{}, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var snapshot storage.Snapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return storage.Snapshot{}, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return snapshot, nil
}

func init() {
	for _, c := range []*cobra.Command{dataExportCmd, dataBackupCmd} {
		c.Flags().StringVarP(&dataOutput, "output", "o", "", "Output file (default: standard output)")
	}
	dataClearCmd.Flags().BoolVar(&dataYes, "yes", false, "Confirm deleting all data")

	dataCmd.AddCommand(dataExportCmd, dataBackupCmd, dataImportCmd, dataClearCmd)
	rootCmd.AddCommand(dataCmd)
}
