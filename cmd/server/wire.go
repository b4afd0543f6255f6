package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/court-booking/internal/booking"
	"github.com/iliyamo/court-booking/internal/calendar"
	"github.com/iliyamo/court-booking/internal/config"
	"github.com/iliyamo/court-booking/internal/database"
	"github.com/iliyamo/court-booking/internal/payment"
	"github.com/iliyamo/court-booking/internal/repository"
	"github.com/iliyamo/court-booking/internal/service"
	"github.com/iliyamo/court-booking/internal/slots"
	"github.com/iliyamo/court-booking/internal/utils"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      config.Config
	log      *logrus.Logger
	registry *config.Registry
	cal      calendar.Store
	alloc    *slots.Allocator

	db     *sql.DB
	rdb    *redis.Client
	proj   *repository.ProjectionRepo
	shares *repository.ShareRepo
	short  *repository.ShortLinks
	orch   *booking.Orchestrator
	pay    *payment.Manager // nil when payments are disabled

	closers []func() error
}

// newCalendarApp wires configuration, the court registry and the
// calendar store. It is all the slots command needs.
func newCalendarApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logrus.StandardLogger()
	a := &app{cfg: cfg, log: log}

	a.registry, err = config.LoadRegistry(cfg.CourtsFile, cfg.TimeZone, log)
	if err != nil {
		return nil, err
	}

	var store calendar.Store
	switch cfg.CalendarBackend {
	case "memory":
		log.Warn("using the in-memory calendar, reservations are lost on restart")
		store = calendar.NewMemory()
	default:
		g, err := calendar.NewGoogle(ctx, cfg.CalendarCredentials, a.registry.Current().Location)
		if err != nil {
			return nil, fmt.Errorf("google calendar: %w", err)
		}
		store = g
	}
	a.cal = calendar.Instrument(store)
	a.alloc = slots.New(a.cal, log.WithField("component", "slots"))
	return a, nil
}

// newApp wires everything: MySQL, Redis, notifications, the orchestrator
// and, when a price is configured, the payment manager.
func newApp(ctx context.Context) (*app, error) {
	a, err := newCalendarApp(ctx)
	if err != nil {
		return nil, err
	}
	cfg, log := a.cfg, a.log

	a.db, err = database.Open(database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	a.closers = append(a.closers, a.db.Close)
	if err := database.Migrate(ctx, a.db); err != nil {
		a.close()
		return nil, err
	}
	a.proj = repository.NewProjectionRepo(a.db)
	a.shares = repository.NewShareRepo(a.db)

	var locker booking.Locker
	var shortener utils.Shortener
	if a.rdb = config.NewRedisClient(log); a.rdb != nil {
		a.closers = append(a.closers, a.rdb.Close)
		locker = repository.NewRedisLocker(a.rdb, "court:lock", cfg.LockTTL, cfg.LockWait)
		if cfg.ShortLinks {
			a.short = repository.NewShortLinks(a.rdb, "court:link")
			shortener = a.short
		}
	}

	var notifier booking.Notifier = service.LogNotifier{Log: log.WithField("component", "notify")}
	if cfg.RabbitURL != "" {
		pub, err := service.NewPublisher(cfg.RabbitURL, cfg.NotifyExchange, log.WithField("component", "notify"))
		if err != nil {
			log.WithError(err).Warn("rabbitmq unavailable, notifications are only logged")
		} else {
			a.closers = append(a.closers, pub.Close)
			notifier = pub
		}
	}

	a.orch = booking.New(booking.Deps{
		Calendar:   a.cal,
		Projection: a.proj,
		Links:      utils.NewLinkMaker(cfg.LinkSecret, cfg.BaseURL, shortener),
		Notifier:   notifier,
		Locker:     locker,
		Log:        log.WithField("component", "booking"),
	})

	if cfg.PaymentsEnabled() {
		prov, err := payment.NewOmise(cfg.OmisePublicKey, cfg.OmiseSecretKey)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("omise: %w", err)
		}
		a.pay = payment.NewManager(a.shares, prov, a.orch, notifier,
			payment.DefaultPolicy(cfg.Price, cfg.Currency), log.WithField("component", "payment"))
	}
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("close failed")
		}
	}
	a.closers = nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
