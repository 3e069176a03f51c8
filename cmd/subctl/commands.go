package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/flexprice/recurring/internal/api/dto"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/spf13/cobra"
)

type appFunc func() *app

func createCommand(current appFunc) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a subscription from a JSON request",
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return ierr.WithError(err).
						WithHintf("Unable to open %s", file).
						Mark(ierr.ErrValidation)
				}
				defer f.Close()
				r = f
			}

			var req dto.CreateSubscriptionRequest
			if err := json.NewDecoder(r).Decode(&req); err != nil {
				return ierr.WithError(err).
					WithHint("The subscription request is not valid JSON").
					Mark(ierr.ErrValidation)
			}

			resp, err := current().subscriptions.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			return current().print(resp)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Request file, - reads stdin")
	return cmd
}

func getCommand(current appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "get <subscription-id>",
		Short: "Show a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := current().subscriptions.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return current().print(resp)
		},
	}
}

func skipCommand(current appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "skip <subscription-id>",
		Short: "Push the next installment out by one interval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := current().subscriptions.Skip(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return current().print(resp)
		},
	}
}

type transitionResult struct {
	SubscriptionID string `json:"subscription_id"`
	Applied        bool   `json:"applied"`
}

func transitionCommand(
	current appFunc,
	name, short string,
	pick func(a *app) func(context.Context, string) (bool, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <subscription-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applied, err := pick(current())(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return current().print(transitionResult{SubscriptionID: args[0], Applied: applied})
		},
	}
}

func updateIntervalCommand(current appFunc) *cobra.Command {
	var (
		length int
		units  string
	)
	cmd := &cobra.Command{
		Use:   "update-interval <subscription-id>",
		Short: "Override the interval of every line item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := current().subscriptions.UpdateInterval(cmd.Context(), args[0], dto.UpdateIntervalRequest{
				IntervalLength: length,
				IntervalUnits:  types.IntervalUnit(units),
			})
			if err != nil {
				return err
			}
			return current().print(resp)
		},
	}
	cmd.Flags().IntVar(&length, "length", 0, "Interval length")
	cmd.Flags().StringVar(&units, "units", "", "Interval units: day, week, month or year")
	_ = cmd.MarkFlagRequired("length")
	_ = cmd.MarkFlagRequired("units")
	return cmd
}

func updateLineItemCommand(current appFunc) *cobra.Command {
	var (
		quantity        int
		length          int
		units           string
		maxInstallments int
	)
	cmd := &cobra.Command{
		Use:   "update-line-item <line-item-id>",
		Short: "Change a line item, only the given flags are applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req dto.UpdateLineItemRequest
			flags := cmd.Flags()
			if flags.Changed("quantity") {
				req.Quantity = &quantity
			}
			if flags.Changed("length") {
				req.IntervalLength = &length
			}
			if flags.Changed("units") {
				u := types.IntervalUnit(units)
				req.IntervalUnits = &u
			}
			if flags.Changed("max-installments") {
				req.MaxInstallments = &maxInstallments
			}

			resp, err := current().subscriptions.UpdateLineItem(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			return current().print(resp)
		},
	}
	cmd.Flags().IntVar(&quantity, "quantity", 0, "Quantity per installment")
	cmd.Flags().IntVar(&length, "length", 0, "Interval length")
	cmd.Flags().StringVar(&units, "units", "", "Interval units")
	cmd.Flags().IntVar(&maxInstallments, "max-installments", 0, "Installment cap")
	return cmd
}

func endDateCommand(current appFunc) *cobra.Command {
	var (
		date      string
		clearDate bool
	)
	cmd := &cobra.Command{
		Use:   "set-end-date <subscription-id>",
		Short: "Set or clear the end date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var endDate *time.Time
			switch {
			case clearDate:
			case date == "":
				return ierr.NewError("either --date or --clear is required").
					WithHint("Provide an end date or clear it").
					Mark(ierr.ErrValidation)
			default:
				t, err := time.Parse(time.RFC3339, date)
				if err != nil {
					return ierr.WithError(err).
						WithHint("End date must be RFC3339").
						Mark(ierr.ErrValidation)
				}
				t = t.UTC()
				endDate = &t
			}

			resp, err := current().subscriptions.UpdateEndDate(cmd.Context(), args[0], endDate)
			if err != nil {
				return err
			}
			return current().print(resp)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "End date in RFC3339")
	cmd.Flags().BoolVar(&clearDate, "clear", false, "Remove the end date")
	return cmd
}

type stateResult struct {
	SubscriptionID  string                `json:"subscription_id"`
	ProcessingState types.ProcessingState `json:"processing_state"`
}

func stateCommand(current appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "state <subscription-id>",
		Short: "Show the processing state of the latest installment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := current().subscriptions.ProcessingState(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return current().print(stateResult{SubscriptionID: args[0], ProcessingState: state})
		},
	}
}

func addPageFlags(cmd *cobra.Command) func() *types.QueryFilter {
	var limit, offset int
	cmd.Flags().IntVar(&limit, "limit", types.FILTER_DEFAULT_LIMIT, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")
	return func() *types.QueryFilter {
		return types.NewQueryFilter(limit, offset)
	}
}

func actionableCommand(current appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actionable",
		Short: "List subscriptions due for processing now",
		Args:  cobra.NoArgs,
	}
	filter := addPageFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		subs, err := current().subscriptions.ListActionable(cmd.Context(), filter())
		if err != nil {
			return err
		}
		return current().print(subs)
	}
	return cmd
}

func byStateCommand(current appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "by-state <pending|success|failed>",
		Short: "List subscriptions by the state of their latest installment",
		Args:  cobra.ExactArgs(1),
	}
	filter := addPageFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		subs, err := current().subscriptions.ListByProcessingState(cmd.Context(), types.ProcessingState(args[0]), filter())
		if err != nil {
			return err
		}
		return current().print(subs)
	}
	return cmd
}

func eventsCommand(current appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <subscription-id>",
		Short: "Show the event log of a subscription",
		Args:  cobra.ExactArgs(1),
	}
	filter := addPageFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		evts, err := current().subscriptions.ListEvents(cmd.Context(), args[0], filter())
		if err != nil {
			return err
		}
		return current().print(evts)
	}
	return cmd
}

func processCommand(current appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "process <subscription-id>",
		Short: "Create and check out the next installment if due",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := current().installments.ProcessSubscription(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return current().print(resp)
		},
	}
}

func processActionableCommand(current appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "process-actionable",
		Short: "Process every subscription due now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := current().installments.ProcessActionable(cmd.Context())
			if err != nil {
				return err
			}
			return current().print(resp)
		},
	}
}

func installmentsCommand(current appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "installments <subscription-id>",
		Short: "Show the installment history of a subscription",
		Args:  cobra.ExactArgs(1),
	}
	filter := addPageFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		insts, err := current().installments.ListInstallments(cmd.Context(), args[0], filter())
		if err != nil {
			return err
		}
		return current().print(insts)
	}
	return cmd
}
