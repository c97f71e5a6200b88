// Package app wires the components of the backend together from a Config,
// it is shared by the server and the cli.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"edziennik-backend/internal/changes"
	"edziennik-backend/internal/components/chrono"
	"edziennik-backend/internal/components/telemetry"
	"edziennik-backend/internal/db"
	"edziennik-backend/internal/push"
	"edziennik-backend/internal/scrapers/edziennik"
	"edziennik-backend/internal/service"
	"edziennik-backend/pkg/migrations"
)

type App struct {
	DB         *sql.DB
	Queries    *db.Queries
	MakeTx     db.MakeTx
	Portal     *edziennik.Portal
	Dispatcher push.Dispatcher
	Detector   changes.Detector
	Service    service.Service

	closers []func() error
}

func New(ctx context.Context, cfg Config, timeAPI chrono.TimeAPI, tel telemetry.API) (*App, error) {
	a := &App{}

	sqlDB, err := migrations.OpenAndMigrateDB(db.Schema, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a.DB = sqlDB
	a.closers = append(a.closers, sqlDB.Close)
	a.Queries = db.New(sqlDB)
	a.MakeTx = db.NewMakeTx(sqlDB)

	var sessions edziennik.SessionStore = edziennik.NewMemorySessionStore()
	if cfg.Sessions.Dir != "" {
		store, err := edziennik.OpenBadgerSessionStore(cfg.Sessions.Dir, cfg.Sessions.ttl(), tel)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		sessions = store
	}

	portalOpts, err := cfg.Portal.PortalOptions()
	if err != nil {
		a.Close()
		return nil, err
	}
	portalOpts.Sessions = sessions
	portalOpts.Observer = service.NewSessionRecorder(a.Queries, tel)
	a.Portal, err = edziennik.NewPortal(portalOpts, timeAPI, tel)
	if err != nil {
		a.Close()
		return nil, err
	}

	transport, err := newTransport(ctx, cfg.Push, tel)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Dispatcher = push.NewDispatcher(a.Queries, transport, push.Options{Icon: cfg.Push.Icon}, tel)

	a.Detector = changes.NewDetector(
		a.Queries,
		a.MakeTx,
		a.Portal,
		a.Dispatcher,
		cfg.Cron.detectorOptions(),
		timeAPI,
		tel,
	)
	a.Service = service.NewService(
		a.Queries,
		a.MakeTx,
		a.Portal,
		a.Detector,
		cfg.Http.Secret,
		service.WithCustomTelemetryAPI(tel),
	)

	return a, nil
}

func newTransport(ctx context.Context, cfg PushConfig, tel telemetry.API) (push.Transport, error) {
	transport, err := webpushTransport(ctx, cfg, tel)
	if err != nil || cfg.Email.Server == "" {
		return transport, err
	}
	email := push.NewEmailTransport(push.EmailOptions{
		Server:   cfg.Email.Server,
		Port:     cfg.Email.Port,
		Address:  cfg.Email.Address,
		Password: cfg.Email.Password,
	}, tel)
	return push.Router{Email: email, Fallback: transport}, nil
}

func webpushTransport(ctx context.Context, cfg PushConfig, tel telemetry.API) (push.Transport, error) {
	switch cfg.Transport {
	case TransportFCM:
		transport, err := push.NewFCMTransport(ctx, cfg.CredentialsFile, tel)
		if err != nil {
			return nil, fmt.Errorf("init fcm: %w", err)
		}
		return transport, nil
	case TransportLog, "":
		return push.NewLogTransport(tel), nil
	}
	return nil, fmt.Errorf("unknown push transport %q", cfg.Transport)
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
