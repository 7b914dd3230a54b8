package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newExportCommand(a *app) *cobra.Command {
	var (
		month, year int
		out         string
	)

	cmd := &cobra.Command{
		Use:   "export <equipment-id>",
		Short: "Export a month's work-type matrix as an .xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			equipmentID, err := parseEquipmentID(args[0])
			if err != nil {
				return err
			}
			if month == 0 || year == 0 {
				now := time.Now()
				if month == 0 {
					month = int(now.Month())
				}
				if year == 0 {
					year = now.Year()
				}
			}

			svc := a.services().WorkLogs
			if _, err := svc.Load(cmd.Context(), equipmentID, time.Month(month), year); err != nil {
				return err
			}
			stored, content, err := svc.Export(cmd.Context(), equipmentID)
			if err != nil {
				return err
			}

			if out != "" {
				if err := os.WriteFile(out, content, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", out, len(content))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (%d bytes)\n", a.container.FileStorage().GetFullPath(stored), len(content))
			return nil
		},
	}

	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default current)")
	cmd.Flags().IntVar(&year, "year", 0, "year (default current)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "also write the workbook to this file")
	return cmd
}
