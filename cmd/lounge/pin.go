package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/goodtune/lounge/internal/gate"
	"github.com/spf13/cobra"
)

var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Manage the access PIN",
}

var pinStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a PIN is set",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(_ context.Context, a *app) error {
			st := a.gate.Status()
			printHeader("Access gate")
			if st.PINSet {
				printField("PIN", okColor.Sprint("set"))
			} else {
				printField("PIN", warnColor.Sprint("not set (open)"))
			}
			fmt.Println()
			return nil
		})
	},
}

var pinSetCmd = &cobra.Command{
	Use:   "set NEW_PIN",
	Short: "Set or change the PIN",
	Long:  `Set the 4-digit access PIN. Changing an existing PIN needs the current one via --pin.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := gate.ValidatePIN(args[0]); err != nil {
			return err
		}
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			if err := a.gate.SetPIN(ctx, args[0]); err != nil {
				return err
			}
			printOK("PIN set")
			return nil
		})
	},
}

var pinClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the PIN and open the gate",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			if err := a.gate.ClearPIN(ctx); err != nil {
				return err
			}
			printOK("PIN cleared")
			return nil
		})
	},
}

var pinCheckCmd = &cobra.Command{
	Use:   "check PIN",
	Short: "Check a PIN without changing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			_, _, err := a.gate.Unlock(ctx, args[0])
			switch {
			case errors.Is(err, gate.ErrNoPIN):
				return fmt.Errorf("no PIN is set, the gate is open")
			case err != nil:
				return err
			}
			printOK("PIN accepted")
			return nil
		})
	},
}

func init() {
	pinCmd.AddCommand(pinStatusCmd, pinSetCmd, pinClearCmd, pinCheckCmd)
	rootCmd.AddCommand(pinCmd)
}
