package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sensordash/internal/api"
	"sensordash/internal/dashboard"
	"sensordash/internal/data"
	"sensordash/internal/devapi"
	"sensordash/internal/session"
	"sensordash/internal/storage"
	"sensordash/internal/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local dashboard with an in-memory backend",
	Long: `serve starts two HTTP listeners: an in-memory implementation of the
backend API and the server-rendered dashboard on top of it. State lives only
in memory and disappears on exit. Intended for development and for the visual
regression checks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backendAddr, _ := cmd.Flags().GetString("backend-addr")
		dashboardAddr, _ := cmd.Flags().GetString("dashboard-addr")
		seed, _ := cmd.Flags().GetBool("seed")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		backend := devapi.New(logger)
		if seed {
			seedDemoData(backend)
			logger.Info("seeded demo data", zap.String("admin", "admin / admin123"))
		}

		client := api.New("http://127.0.0.1"+backendAddr, logger)
		sessions := session.New(client, storage.NewMemorySlot(), logger)
		store := data.New(client, logger)

		dash, err := dashboard.New(sessions, store, logger)
		if err != nil {
			return err
		}

		backendSrv := &http.Server{Addr: backendAddr, Handler: backend.Router()}
		dashboardSrv := &http.Server{Addr: dashboardAddr, Handler: dash.Router()}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("backend API listening", zap.String("addr", backendAddr))
			if err := backendSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			logger.Info("dashboard listening", zap.String("addr", dashboardAddr))
			if err := dashboardSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = dashboardSrv.Shutdown(shutdownCtx)
			_ = backendSrv.Shutdown(shutdownCtx)
			return nil
		})

		fmt.Printf("Dashboard: http://127.0.0.1%s  Backend API: http://127.0.0.1%s\n", dashboardAddr, backendAddr)
		return g.Wait()
	},
}

// seedDemoData loads the backend with an admin account, a reader account,
// two series, and a day of readings so the dashboard has something to show.
func seedDemoData(backend *devapi.Server) {
	backend.SeedUser("admin", "admin@example.com", "admin123", true)
	backend.SeedUser("reader", "reader@example.com", "reader123", false)

	temp := backend.SeedSeries(types.NewSeries{
		Name: "Temperature", MinValue: -10, MaxValue: 40, Unit: "°C", Color: "#EF4444",
	})
	humidity := backend.SeedSeries(types.NewSeries{
		Name: "Humidity", MinValue: 0, MaxValue: 100, Unit: "%", Color: "#3B82F6",
	})

	now := time.Now().UTC().Truncate(time.Hour)
	for i := 0; i < 24; i++ {
		at := now.Add(time.Duration(i-23) * time.Hour)
		phase := float64(i) / 24 * 2 * math.Pi
		backend.SeedMeasurement(temp.ID, 18+6*math.Sin(phase), at)
		backend.SeedMeasurement(humidity.ID, 55+20*math.Cos(phase), at)
	}
}

func init() {
	serveCmd.Flags().String("backend-addr", ":8000", "backend API listen address")
	serveCmd.Flags().String("dashboard-addr", ":8080", "dashboard listen address")
	serveCmd.Flags().Bool("seed", true, "seed demo accounts and data")
	rootCmd.AddCommand(serveCmd)
}
