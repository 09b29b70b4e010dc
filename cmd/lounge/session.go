package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goodtune/lounge/internal/report"
	"github.com/goodtune/lounge/internal/session"
	"github.com/goodtune/lounge/internal/storage"
	"github.com/spf13/cobra"
)

var (
	sessionPlayers  string
	sessionCustomer string
	sessionPIN      string
	orderProduct    string
	orderPrice      float64
	orderQuantity   int
	listActiveOnly  bool
	listFilter      *filterFlags
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"s"},
	Short:   "Manage play sessions",
}

var sessionStartCmd = &cobra.Command{
	Use:     "start DEVICE",
	Short:   "Start a session on a device",
	Example: `  lounge session start "PS5 #1" --players 3-4 --customer Sami`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			s, err := a.tracker.Start(ctx, session.StartRequest{
				DeviceName:   args[0],
				PlayerCount:  storage.PlayerCount(sessionPlayers),
				CustomerName: sessionCustomer,
			})
			if err != nil {
				return err
			}
			printOK("Started session %s on %s", s.ID, s.DeviceName)
			return nil
		})
	},
}

var sessionPauseCmd = lifecycleCommand("pause", "Pause billing for a session", "Paused", (*session.Tracker).Pause)
var sessionResumeCmd = lifecycleCommand("resume", "Resume billing for a paused session", "Resumed", (*session.Tracker).Resume)
var sessionToggleCmd = lifecycleCommand("toggle", "Pause or resume a session", "Toggled", (*session.Tracker).TogglePause)

var sessionEndCmd = &cobra.Command{
	Use:   "end ID",
	Short: "End a session and show its bill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			s, err := a.tracker.End(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printSession(s)
		})
	},
}

var sessionOrderCmd = &cobra.Command{
	Use:   "order ID [ITEM]",
	Short: "Add an order to a session",
	Example: `  lounge session order 1f0c... --product 7a2e... --quantity 2
  lounge session order 1f0c... Coffee --price 3000`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			var (
				order storage.Order
				err   error
			)
			switch {
			case orderProduct != "":
				order, err = a.tracker.AddProductOrder(ctx, args[0], orderProduct, orderQuantity)
			case len(args) == 2:
				order, err = a.tracker.AddOrder(ctx, args[0], session.OrderRequest{
					ItemName:  args[1],
					Quantity:  orderQuantity,
					UnitPrice: orderPrice,
				})
			default:
				return fmt.Errorf("either --product or an ITEM name is required")
			}
			if err != nil {
				return err
			}
			printOK("Added %d × %s (%s)", order.Quantity, order.ItemName, a.formatter.Amount(order.TotalPrice))
			return nil
		})
	},
}

var sessionPayCmd = &cobra.Command{
	Use:   "pay ID [paid|unpaid]",
	Short: "Set the payment status of a session",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := storage.PaymentPaid
		if len(args) == 2 {
			status = storage.PaymentStatus(args[1])
		}
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			s, err := a.tracker.UpdatePaymentStatus(ctx, args[0], status)
			if err != nil {
				return err
			}
			printOK("Session %s marked %s", s.ID, paymentLabel(s.PaymentStatus))
			return nil
		})
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a session and its running bill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(_ context.Context, a *app) error {
			s, err := a.tracker.Get(args[0])
			if err != nil {
				return err
			}
			return a.printSession(s)
		})
	},
}

var sessionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sessions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(_ context.Context, a *app) error {
			if listActiveOnly {
				sessions := a.tracker.ListActive()
				storage.SortByCreatedDesc(sessions)
				return a.printSessionTable(sessions)
			}
			filter, err := listFilter.filter(a)
			if err != nil {
				return err
			}
			return a.printSessionTable(report.Apply(a.tracker.List(), filter))
		})
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a session permanently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnlockedApp(func(ctx context.Context, a *app) error {
			if err := a.tracker.DeleteSession(ctx, args[0]); err != nil {
				return err
			}
			printOK("Deleted session %s", args[0])
			return nil
		})
	},
}

func lifecycleCommand(name, short, verb string, fn func(*session.Tracker, context.Context, string) (storage.Session, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUnlockedApp(func(ctx context.Context, a *app) error {
				s, err := fn(a.tracker, ctx, args[0])
				if err != nil {
					return err
				}
				printOK("%s session %s on %s (%s)", verb, s.ID, s.DeviceName, statusLabel(&s))
				return nil
			})
		},
	}
}

// withApp runs fn against an opened app and closes it afterwards.
func withApp(fn func(context.Context, *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// withUnlockedApp is withApp for commands that change the ledger.
func withUnlockedApp(fn func(context.Context, *app) error) error {
	return withApp(func(ctx context.Context, a *app) error {
		if err := a.requireUnlocked(ctx, sessionPIN); err != nil {
			return err
		}
		return fn(ctx, a)
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sessionPIN, "pin", "", "Access PIN for commands that change data (or LOUNGE_PIN)")

	sessionStartCmd.Flags().StringVarP(&sessionPlayers, "players", "p", string(storage.PlayersOneTwo), "Player tier: 1-2 or 3-4")
	sessionStartCmd.Flags().StringVar(&sessionCustomer, "customer", "", "Customer name")

	sessionOrderCmd.Flags().StringVar(&orderProduct, "product", "", "Catalog product id")
	sessionOrderCmd.Flags().Float64Var(&orderPrice, "price", 0, "Unit price for a free-form item")
	sessionOrderCmd.Flags().IntVarP(&orderQuantity, "quantity", "q", 1, "Quantity")

	sessionListCmd.Flags().BoolVar(&listActiveOnly, "active", false, "Only sessions that have not ended")
	listFilter = addFilterFlags(sessionListCmd, "all")

	sessionCmd.AddCommand(sessionStartCmd, sessionPauseCmd, sessionResumeCmd, sessionToggleCmd,
		sessionOrderCmd, sessionPayCmd, sessionEndCmd, sessionShowCmd, sessionListCmd, sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}
