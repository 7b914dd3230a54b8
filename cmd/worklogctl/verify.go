package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/garyjia/fleet-worklog/internal/application/batch"
	"github.com/garyjia/fleet-worklog/internal/application/service"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/internal/domain/workflow"
)

func newVerifyCommand(a *app) *cobra.Command {
	var (
		accept      bool
		reject      string
		notReceived []int64
		comments    string
	)

	cmd := &cobra.Command{
		Use:   "verify <batch-number>",
		Short: "Classify a batch number and optionally decide its pending transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if accept && reject != "" {
				return errors.New("--accept and --reject are mutually exclusive")
			}

			svc := a.services().Verifications
			sid := svc.Open()
			defer svc.Close(sid)

			if _, err := svc.Enter(sid, args[0]); err != nil {
				return err
			}
			res, err := svc.Lookup(cmd.Context(), sid)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)

			if !accept && reject == "" {
				if res.Err != nil {
					return res.Err
				}
				return nil
			}
			if res.State != workflow.StatePendingValidation {
				return fmt.Errorf("batch %s is %s; only a pending transaction can be decided", args[0], res.State)
			}

			update := service.FormUpdate{}
			if reject != "" {
				action := entity.ActionReject
				update.Action = &action
				update.RejectionReason = &reject
			}
			if comments != "" {
				update.Comments = &comments
			}
			for _, id := range notReceived {
				yes := true
				update.Items = append(update.Items, service.ItemUpdate{ItemID: id, NotReceived: &yes})
			}
			if _, err := svc.UpdateForm(sid, update); err != nil {
				return err
			}

			submitted, err := svc.Submit(cmd.Context(), sid)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Decision submitted; transaction %d is now %s\n",
				submitted.Transaction.ID, submitted.Transaction.Status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&accept, "accept", false, "accept the pending transaction with the requested quantities")
	cmd.Flags().StringVar(&reject, "reject", "", "reject the pending transaction with this reason")
	cmd.Flags().Int64SliceVar(&notReceived, "not-received", nil, "item IDs that were not received (with --accept)")
	cmd.Flags().StringVar(&comments, "comments", "", "comments stored with the decision")
	return cmd
}

func printResult(w io.Writer, res *batch.Result) {
	fmt.Fprintf(w, "Batch %d: %s\n", res.BatchNumber, res.State)
	if res.Message != "" {
		fmt.Fprintln(w, res.Message)
	}
	if res.Transaction == nil {
		return
	}
	for _, it := range res.Transaction.Items {
		fmt.Fprintf(w, "  item %d  type %d  requested %d %s\n",
			it.ID, it.ItemTypeID, it.RequestedQuantity, it.MeasuringUnit)
	}
}
