package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sensordash/internal/types"
)

var sensorsCmd = &cobra.Command{
	Use:   "sensors",
	Short: "Manage registered sensor devices (admin)",
}

var sensorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sensors",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.store.FetchSensors(cmd.Context()); err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSERIES\tACTIVE\tLAST SEEN")
		for _, s := range a.store.Sensors() {
			lastSeen := "never"
			if s.LastSeen != nil {
				lastSeen = s.LastSeen.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%t\t%s\n", s.ID, s.Name, s.SeriesID, s.IsActive, lastSeen)
		}
		return w.Flush()
	},
}

var sensorsAddCmd = &cobra.Command{
	Use:   "add <name> <series-id>",
	Short: "Register a sensor and print its API key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		seriesID, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid series id %q", args[1])
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		created, err := a.store.CreateSensor(cmd.Context(), types.NewSensor{Name: args[0], SeriesID: seriesID})
		if err != nil {
			return err
		}
		fmt.Printf("Registered sensor %d (%s)\n", created.ID, created.Name)
		fmt.Printf("API key: %s\n", created.APIKey)
		return nil
	},
}

var sensorsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a sensor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid sensor id %q", args[0])
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.store.DeleteSensor(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted sensor %d\n", id)
		return nil
	},
}

// sensorsPushCmd impersonates a device: it submits one reading authenticated
// by the sensor's API key, not by the user's session.
var sensorsPushCmd = &cobra.Command{
	Use:   "push <api-key> <value>",
	Short: "Submit a reading using a sensor API key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid value %q", args[1])
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		m, err := a.client.SubmitReading(cmd.Context(), args[0], value, nil)
		if err != nil {
			return err
		}
		fmt.Printf("Reading accepted: measurement %d, series %d\n", m.ID, m.SeriesID)
		return nil
	},
}

func init() {
	sensorsCmd.AddCommand(sensorsListCmd, sensorsAddCmd, sensorsDeleteCmd, sensorsPushCmd)
	rootCmd.AddCommand(sensorsCmd)
}
