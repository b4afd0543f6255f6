package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/court-booking/internal/config"
	"github.com/iliyamo/court-booking/internal/handler"
	"github.com/iliyamo/court-booking/internal/metrics"
	"github.com/iliyamo/court-booking/internal/middleware"
	"github.com/iliyamo/court-booking/internal/queue"
	"github.com/iliyamo/court-booking/internal/router"
	"github.com/iliyamo/court-booking/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	var sink bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled passes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(ctx, sink)
		},
	}
	cmd.Flags().BoolVar(&sink, "notification-sink", true, "consume notifications into NOTIFICATIONS_FILE")
	return cmd
}

func (a *app) serve(ctx context.Context, sink bool) error {
	cfg, log := a.cfg, a.log
	a.registry.Watch()

	sched := scheduler.New(log.WithField("component", "scheduler"))
	var jobs []*scheduler.Job
	if a.pay != nil {
		jobs = append(jobs,
			sched.Add("capture", cfg.CaptureEvery, func(ctx context.Context) error {
				res, err := a.pay.CapturePass(ctx)
				log.WithFields(logrus.Fields{"pass": "capture", "result": res}).Info("capture pass done")
				return err
			}),
			sched.Add("reminder", cfg.ReminderEvery, func(ctx context.Context) error {
				res, err := a.pay.ReminderPass(ctx)
				log.WithFields(logrus.Fields{"pass": "reminder", "result": res}).Info("reminder pass done")
				return err
			}),
		)
	}
	jobs = append(jobs, sched.Add("reconcile", cfg.ReconcileEvery, func(ctx context.Context) error {
		snap := a.registry.Current()
		from := startOfDay(time.Now(), snap.Location)
		rep, err := a.orch.Reconcile(ctx, snap.Courts, from, from.AddDate(0, 0, cfg.ReconcileDays))
		log.WithFields(logrus.Fields{"pass": "reconcile", "report": rep}).Info("reconcile pass done")
		return err
	}))
	sched.Start(ctx)

	if sink && cfg.RabbitURL != "" {
		ls := &queue.LogSink{
			URL:      cfg.RabbitURL,
			Exchange: cfg.NotifyExchange,
			Queue:    cfg.NotifyQueue,
			Path:     cfg.NotificationsFile,
			Log:      log.WithField("component", "notification-sink"),
		}
		go func() {
			if err := ls.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("notification sink stopped")
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(metrics.Middleware())
	e.Use(middleware.Logger(log))

	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), a.rdb, log)
	cacheCfg := config.LoadCacheConfig()
	dayCache := middleware.NewRedisCache(cacheCfg, a.rdb)

	var payments handler.Payments
	if a.pay != nil {
		payments = a.pay
	}
	var links handler.LinkResolver
	if a.short != nil {
		links = a.short
	}

	slotH := handler.NewSlotHandler(a.registry, a.alloc, a.proj)
	resH := handler.NewReservationHandler(a.registry, a.alloc, a.orch, payments, a.proj, log)
	resH.Purge = func(ctx context.Context, day string) error {
		return middleware.PurgeDay(ctx, a.rdb, cacheCfg, day)
	}
	router.RegisterRoutes(e)
	router.RegisterPublic(e, slotH, dayCache)
	router.RegisterBooking(e, resH, handler.NewActionHandler(resH, links), cfg.LinkSecret, limit)
	if a.pay != nil {
		router.RegisterPayments(e, handler.NewPaymentHandler(a.pay, log), limit)
	}
	router.RegisterAdmin(e, handler.NewAdminHandler(a.registry, a.orch, jobs, log), cfg.AdminKeyHash)

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "env": cfg.Env, "payments": a.pay != nil}).Info("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := e.Shutdown(shutdownCtx)
	sched.Wait()
	log.Info("stopped")
	return err
}
