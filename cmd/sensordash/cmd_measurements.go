package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sensordash/internal/types"
)

var measurementsCmd = &cobra.Command{
	Use:     "measurements",
	Aliases: []string{"m"},
	Short:   "Query and manage measurements",
}

var measurementsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List measurements for selected series and date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		seriesFlag, _ := cmd.Flags().GetString("series")
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")

		a, err := newApp()
		if err != nil {
			return err
		}

		// An explicit --series list beats the fetch-time select-all default.
		if seriesFlag != "" {
			for _, part := range strings.Split(seriesFlag, ",") {
				id, err := strconv.Atoi(strings.TrimSpace(part))
				if err != nil {
					return fmt.Errorf("invalid series id %q", part)
				}
				a.store.ToggleSeriesSelection(id)
			}
		} else if err := a.store.FetchSeries(cmd.Context()); err != nil {
			return err
		}
		a.store.SetDateRange(start, end)

		if err := a.store.FetchMeasurements(cmd.Context()); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSERIES\tVALUE\tTIMESTAMP")
		for _, m := range a.store.Measurements() {
			fmt.Fprintf(w, "%d\t%d\t%g\t%s\n", m.ID, m.SeriesID, m.Value, m.Timestamp.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var measurementsAddCmd = &cobra.Command{
	Use:   "add <series-id> <value>",
	Short: "Record a measurement",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		seriesID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid series id %q", args[0])
		}
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid value %q", args[1])
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		created, err := a.store.CreateMeasurement(cmd.Context(), types.NewMeasurement{
			SeriesID: seriesID,
			Value:    value,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Recorded measurement %d: %g at %s\n", created.ID, created.Value, created.Timestamp.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var measurementsSetCmd = &cobra.Command{
	Use:   "set <id> <value>",
	Short: "Correct a measurement's value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid measurement id %q", args[0])
		}
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid value %q", args[1])
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		updated, err := a.store.UpdateMeasurement(cmd.Context(), id, types.MeasurementUpdate{Value: &value})
		if err != nil {
			return err
		}
		fmt.Printf("Updated measurement %d to %g\n", updated.ID, updated.Value)
		return nil
	},
}

var measurementsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a measurement",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid measurement id %q", args[0])
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.store.DeleteMeasurement(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted measurement %d\n", id)
		return nil
	},
}

func init() {
	measurementsListCmd.Flags().String("series", "", "comma-separated series ids (default: all)")
	measurementsListCmd.Flags().String("start", "", "start date (YYYY-MM-DD)")
	measurementsListCmd.Flags().String("end", "", "end date (YYYY-MM-DD)")

	measurementsCmd.AddCommand(measurementsListCmd, measurementsAddCmd, measurementsSetCmd, measurementsDeleteCmd)
	rootCmd.AddCommand(measurementsCmd)
}
