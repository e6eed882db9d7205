package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sensordash/internal/types"
)

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Manage measurement series",
}

var seriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all series",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.store.FetchSeries(cmd.Context()); err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tRANGE\tUNIT\tCOLOR")
		for _, s := range a.store.Series() {
			fmt.Fprintf(w, "%d\t%s\t%g..%g\t%s\t%s\n", s.ID, s.Name, s.MinValue, s.MaxValue, s.Unit, s.Color)
		}
		return w.Flush()
	},
}

var seriesCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minValue, _ := cmd.Flags().GetFloat64("min")
		maxValue, _ := cmd.Flags().GetFloat64("max")
		unit, _ := cmd.Flags().GetString("unit")
		color, _ := cmd.Flags().GetString("color")
		description, _ := cmd.Flags().GetString("description")

		a, err := newApp()
		if err != nil {
			return err
		}
		created, err := a.store.CreateSeries(cmd.Context(), types.NewSeries{
			Name:        args[0],
			Description: description,
			MinValue:    minValue,
			MaxValue:    maxValue,
			Color:       color,
			Unit:        unit,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created series %d (%s)\n", created.ID, created.Name)
		return nil
	},
}

var seriesUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid series id %q", args[0])
		}

		var up types.SeriesUpdate
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			up.Name = &v
		}
		if cmd.Flags().Changed("description") {
			v, _ := cmd.Flags().GetString("description")
			up.Description = &v
		}
		if cmd.Flags().Changed("min") {
			v, _ := cmd.Flags().GetFloat64("min")
			up.MinValue = &v
		}
		if cmd.Flags().Changed("max") {
			v, _ := cmd.Flags().GetFloat64("max")
			up.MaxValue = &v
		}
		if cmd.Flags().Changed("unit") {
			v, _ := cmd.Flags().GetString("unit")
			up.Unit = &v
		}
		if cmd.Flags().Changed("color") {
			v, _ := cmd.Flags().GetString("color")
			up.Color = &v
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		updated, err := a.store.UpdateSeries(cmd.Context(), id, up)
		if err != nil {
			return err
		}
		fmt.Printf("Updated series %d (%s)\n", updated.ID, updated.Name)
		return nil
	},
}

var seriesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid series id %q", args[0])
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.store.DeleteSeries(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted series %d\n", id)
		return nil
	},
}

func init() {
	seriesCreateCmd.Flags().Float64("min", 0, "minimum expected value")
	seriesCreateCmd.Flags().Float64("max", 100, "maximum expected value")
	seriesCreateCmd.Flags().String("unit", "", "unit label")
	seriesCreateCmd.Flags().String("color", "", "hex color, e.g. #3B82F6")
	seriesCreateCmd.Flags().String("description", "", "series description")

	seriesUpdateCmd.Flags().String("name", "", "new name")
	seriesUpdateCmd.Flags().String("description", "", "new description")
	seriesUpdateCmd.Flags().Float64("min", 0, "new minimum")
	seriesUpdateCmd.Flags().Float64("max", 0, "new maximum")
	seriesUpdateCmd.Flags().String("unit", "", "new unit label")
	seriesUpdateCmd.Flags().String("color", "", "new hex color")

	seriesCmd.AddCommand(seriesListCmd, seriesCreateCmd, seriesUpdateCmd, seriesDeleteCmd)
	rootCmd.AddCommand(seriesCmd)
}
