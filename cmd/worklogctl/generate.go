package main

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/garyjia/fleet-worklog/internal/application/worklog"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
)

func newGenerateCommand(a *app) *cobra.Command {
	var (
		from, to string
		workType int64
		hours    string
		driver   int64
		save     bool
	)

	cmd := &cobra.Command{
		Use:   "generate <equipment-id>",
		Short: "Generate draft work entries for every free day of a date range",
		Long: `Generate creates one draft per day in [from, to] that has no entry yet.
The range must lie in one month. Drafts are only persisted with --save.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			equipmentID, err := parseEquipmentID(args[0])
			if err != nil {
				return err
			}
			start, err := entity.ParseDate(from)
			if err != nil {
				return err
			}
			end, err := entity.ParseDate(to)
			if err != nil {
				return err
			}
			worked, err := decimal.NewFromString(hours)
			if err != nil {
				return entity.NewValidationError("hours", hours, "not a decimal number")
			}

			svc := a.services().WorkLogs
			if _, err := svc.Load(cmd.Context(), equipmentID, start.Month(), start.Year()); err != nil {
				return err
			}

			result, err := svc.Generate(equipmentID, worklog.BulkRequest{
				Start: start,
				End:   end,
				Defaults: worklog.BulkDefaults{
					WorkTypeID:  workType,
					WorkedHours: worked,
					DriverID:    driver,
				},
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generated %d drafts, skipped %d days\n", len(result.Created), len(result.Skipped))
			if !save {
				return nil
			}

			saved, err := svc.SaveAll(cmd.Context(), equipmentID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %d, failed %d\n", saved.Succeeded, saved.Failed)
			for _, f := range saved.Failures {
				fmt.Fprintf(out, "  %s: %v\n", f.Ref, f.Err)
			}
			if saved.Failed > 0 {
				return fmt.Errorf("%d entries failed to save", saved.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	cmd.Flags().Int64Var(&workType, "work-type", 0, "work type ID")
	cmd.Flags().StringVar(&hours, "hours", "8", "worked hours per day")
	cmd.Flags().Int64Var(&driver, "driver", 0, "driver ID")
	cmd.Flags().BoolVar(&save, "save", false, "persist the drafts")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func parseEquipmentID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, entity.NewValidationError("equipment_id", raw, "must be a positive integer")
	}
	return id, nil
}
