package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/goodtune/lounge/internal/storage"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and change rates, products and devices",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(_ context.Context, a *app) error {
			a.printSettings(a.tracker.Settings())
			return nil
		})
	},
}

var settingsRatesCmd = &cobra.Command{
	Use:     "rates ONE_TWO THREE_FOUR",
	Short:   "Set the hourly rates of both player tiers",
	Example: `  lounge settings rates 7000 10000`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oneTwo, err := parseAmount(args[0])
		if err != nil {
			return err
		}
		threeFour, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			if err := a.tracker.UpdateRates(ctx, storage.RateSettings{
				RateOneTwoPlayers:    oneTwo,
				RateThreeFourPlayers: threeFour,
			}); err != nil {
				return err
			}
			printOK("Rates set to %s (1-2) and %s (3-4) per hour", a.formatter.Amount(oneTwo), a.formatter.Amount(threeFour))
			return nil
		})
	},
}

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Manage the product catalog",
}

var productAddCmd = &cobra.Command{
	Use:   "add NAME PRICE",
	Short: "Add a product",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			p, err := a.tracker.AddProduct(ctx, args[0], price)
			if err != nil {
				return err
			}
			printOK("Added product %s (%s) with id %s", p.Name, a.formatter.Amount(p.Price), p.ID)
			return nil
		})
	},
}

var productUpdateCmd = &cobra.Command{
	Use:   "update ID NAME PRICE",
	Short: "Rename or reprice a product",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := parseAmount(args[2])
		if err != nil {
			return err
		}
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			if err := a.tracker.UpdateProduct(ctx, storage.Product{ID: args[0], Name: args[1], Price: price}); err != nil {
				return err
			}
			printOK("Updated product %s", args[0])
			return nil
		})
	},
}

var productDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			if err := a.tracker.DeleteProduct(ctx, args[0]); err != nil {
				return err
			}
			printOK("Deleted product %s", args[0])
			return nil
		})
	},
}

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage the device list",
}

var deviceAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			if err := a.tracker.AddDevice(ctx, args[0]); err != nil {
				return err
			}
			printOK("Added device %s", args[0])
			return nil
		})
	},
}

var deviceRenameCmd = &cobra.Command{
	Use:   "rename OLD NEW",
	Short: "Rename a device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			if err := a.tracker.RenameDevice(ctx, args[0], args[1]); err != nil {
				return err
			}
			printOK("Renamed device %s to %s", args[0], args[1])
			return nil
		})
	},
}

var deviceRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			if err := a.tracker.RemoveDevice(ctx, args[0]); err != nil {
				return err
			}
			printOK("Removed device %s", args[0])
			return nil
		})
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore default rates, products and devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			if err := a.tracker.ResetSettings(ctx); err != nil {
				return err
			}
			printOK("Settings reset to defaults")
			a.printSettings(a.tracker.Settings())
			return nil
		})
	},
}

func (a *app) printSettings(s storage.Settings) {
	f := a.formatter

	printHeader("Rates")
	printField("1-2 players", f.Amount(s.Rates.RateOneTwoPlayers)+" / hour")
	printField("3-4 players", f.Amount(s.Rates.RateThreeFourPlayers)+" / hour")

	printHeader("Products")
	if len(s.Products) == 0 {
		_, _ = dimColor.Println("No products")
	} else {
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tPRICE")
		for _, p := range s.Products {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, f.Amount(p.Price))
		}
		_ = tw.Flush()
	}

	printHeader("Devices")
	if len(s.Devices) == 0 {
		_, _ = dimColor.Println("No devices")
	}
	for _, d := range s.Devices {
		fmt.Printf("  • %s\n", d)
	}
	fmt.Println()
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %s", s)
	}
	return v, nil
}

func init() {
	productCmd.AddCommand(productAddCmd, productUpdateCmd, productDeleteCmd)
	deviceCmd.AddCommand(deviceAddCmd, deviceRenameCmd, deviceRemoveCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsRatesCmd, productCmd, deviceCmd, settingsResetCmd)
	rootCmd.AddCommand(settingsCmd)
}
