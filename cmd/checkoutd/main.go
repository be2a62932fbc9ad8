package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/my3rdstory/satoshop-sub001/internal/app"
	"github.com/my3rdstory/satoshop-sub001/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run serves the checkout gateway and, in demo mode, drives one full
// payment workflow against it from the console.
func run() error {
	_ = godotenv.Load() // optional .env

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := config.Load(logger)

	a := app.New(cfg, logger)

	srv := &http.Server{
		Addr:              cfg.GatewayAddr,
		Handler:           a.Handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		a.Gateway.RunSweeper(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.DemoMode {
		g.Go(func() error {
			defer stop() // demo completion ends the process
			return runDemo(ctx, a, cfg, logger)
		})
	}

	return g.Wait()
}

// runDemo starts a checkout, settles the payment on the gateway after
// a short wait, and lets the workflow confirm the order.
func runDemo(ctx context.Context, a *app.App, cfg config.Config, logger *zap.Logger) error {
	token := cfg.CSRFToken
	if token == "" {
		token = uuid.NewString()
	}

	ui := newConsoleUI()
	o := a.NewOrchestrator(cfg.BaseURL, token, ui)
	defer o.Close()

	if err := o.Start(ctx); err != nil {
		return err
	}

	// simulate the wallet paying the invoice
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
	}
	if err := a.Gateway.SettlePayment(o.State().ActiveID()); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ui.navigated:
		logger.Info("demo checkout completed")
		return nil
	case <-time.After(30 * time.Second):
		return errors.New("demo checkout did not complete in time")
	}
}
