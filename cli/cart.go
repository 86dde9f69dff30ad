package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/mbshop/storefront/bus"
	"github.com/mbshop/storefront/checkout"
	"github.com/mbshop/storefront/session"
)

// NewCartCmd creates the "cart" command group.
func NewCartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and edit the shopping cart",
	}
	cmd.AddCommand(
		newCartListCmd(),
		newCartAddCmd(),
		newCartSetCmd(),
		newCartStepCmd("inc", "Add one unit of an item", (*checkout.Flow).Increment),
		newCartStepCmd("dec", "Remove one unit of an item (never below one)", (*checkout.Flow).Decrement),
		newCartRemoveCmd(),
		newCartRefreshCmd(),
		newCartWatchCmd(),
	)
	return cmd
}

func newCartListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List cart items with the subtotal",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, "cart list", func(a *app) error {
				return printCart(a.out, a.store.State().Cart)
			})
		},
	}
}

func newCartAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <slug>",
		Short: "Add one unit of a product, checking current stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, "cart add", func(a *app) error {
				if err := a.flow.AddToCart(a.ctx, args[0]); err != nil {
					return err
				}
				return printCart(a.out, a.store.State().Cart)
			})
		},
	}
}

func newCartSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <quantity>",
		Short: "Set an item's quantity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(strings.TrimSpace(args[1]))
			if err != nil {
				return exitError(exitValidation, "cart set: quantity %q is not a number", args[1])
			}
			return withApp(cmd, "cart set", func(a *app) error {
				if err := a.flow.UpdateQuantity(args[0], qty); err != nil {
					return err
				}
				return printCart(a.out, a.store.State().Cart)
			})
		},
	}
}

func newCartStepCmd(use, short string, step func(*checkout.Flow, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, "cart "+use, func(a *app) error {
				if err := step(a.flow, args[0]); err != nil {
					return err
				}
				return printCart(a.out, a.store.State().Cart)
			})
		},
	}
}

func newCartRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove an item from the cart",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, "cart remove", func(a *app) error {
				a.flow.RemoveItem(args[0])
				return printCart(a.out, a.store.State().Cart)
			})
		},
	}
}

func newCartRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-check every cart item's price and stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, "cart refresh", func(a *app) error {
				result, err := a.flow.RefreshCart(a.ctx)
				printRefresh(a, result)
				return err
			})
		},
	}
}

func printRefresh(a *app, result checkout.RefreshResult) {
	a.printf("Checked %d item(s): %d updated, %d clamped, %d removed, %d failed\n",
		result.Checked, len(result.Updated), len(result.Clamped), len(result.Removed), len(result.Failed))
}

func newCartWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh the cart on a cron schedule and print changes",
		Long: "Refresh the cart on cart.refresh_schedule (or --schedule) until interrupted. " +
			"Bursts of cart changes from one refresh are printed as a single line.",
		Args: cobra.NoArgs,
		RunE: runCartWatch,
	}
	cmd.Flags().String("schedule", "", "Cron expression overriding cart.refresh_schedule")
	cmd.Flags().Bool("now", false, "Refresh once immediately before the first scheduled run")
	cmd.Flags().Int("max-runs", 0, "Stop after this many refreshes (0 = run until interrupted)")
	return cmd
}

func runCartWatch(cmd *cobra.Command, _ []string) error {
	schedule, _ := cmd.Flags().GetString("schedule")
	now, _ := cmd.Flags().GetBool("now")
	maxRuns, _ := cmd.Flags().GetInt("max-runs")

	return withApp(cmd, "cart watch", func(a *app) error {
		cfg := a.cfg
		if strings.TrimSpace(schedule) != "" {
			cfg.Cart.RefreshSchedule = schedule
		}
		sched, err := cfg.RefreshSchedule()
		if err != nil {
			return exitError(exitConfig, "%v", err)
		}

		ctx, stop := signal.NotifyContext(a.ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		printer := bus.NewThrottledHandler(func(e session.Event) {
			if e.Changed() {
				a.printf("%s\n", describeCartChange(e))
			}
		}, bus.ThrottleConfig{})
		sub := a.events.Subscribe(a.store.SessionID(),
			session.ActionCartAddItem, session.ActionCartRemoveItem, session.ActionCartClearItems)
		printed := make(chan struct{})
		go func() {
			defer close(printed)
			for e := range sub.Events() {
				printer.Handle(e)
			}
		}()
		defer func() {
			_ = sub.Close()
			<-printed
			printer.Close()
			if n := sub.Dropped(); n > 0 {
				a.logger.Warn("cart watch missed events", "dropped", n)
			}
		}()

		runs := make(chan struct{}, 1)
		refresh := func() {
			result, err := a.flow.RefreshCart(ctx)
			if err != nil && ctx.Err() == nil {
				a.logger.Warn("cart refresh finished with errors", "error", err)
			}
			printRefresh(a, result)
			select {
			case runs <- struct{}{}:
			default:
			}
		}

		c := cron.New(cron.WithLogger(cronLogger{a.logger}))
		c.Schedule(sched, cron.NewChain(cron.SkipIfStillRunning(cronLogger{a.logger})).Then(cron.FuncJob(refresh)))

		count := 0
		if now {
			refresh()
			<-runs
			count++
		}
		if maxRuns > 0 && count >= maxRuns {
			return nil
		}

		c.Start()
		defer func() {
			<-c.Stop().Done()
		}()
		a.logger.Info("watching cart", "schedule", cfg.Cart.RefreshSchedule, "next", sched.Next(time.Now()))

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-runs:
				count++
				if maxRuns > 0 && count >= maxRuns {
					return nil
				}
			}
		}
	})
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

var _ cron.Logger = cronLogger{}
