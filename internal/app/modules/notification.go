package modules

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"safeguard.io/safeguard/internal/api/handlers"
	"safeguard.io/safeguard/internal/config"
	"safeguard.io/safeguard/internal/jobs"
	"safeguard.io/safeguard/internal/notification"
	"safeguard.io/safeguard/internal/pkg/logger"
)

// NotificationModule wires notice senders and the dispatch mode onto the
// committed-transition path.
type NotificationModule struct {
	inbox *notification.InboxSender
	nc    *nats.Conn
}

// NewNotificationModule builds the sender chain and hooks it up according
// to notification.mode. In river mode the River client is initialized here,
// so it must run before the application starts.
func NewNotificationModule(infra *Infrastructure) (*NotificationModule, error) {
	if infra == nil || infra.Config == nil {
		return nil, fmt.Errorf("notification module requires config")
	}
	cfg := infra.Config.Notification
	m := &NotificationModule{}

	senders := notification.MultiSender{notification.LogSender{}}
	if cfg.Inbox && infra.DB != nil {
		m.inbox = notification.NewInboxSender(infra.DB.Pool)
		senders = append(senders, m.inbox)
	}
	if cfg.NATSURL != "" {
		nc, err := notification.ConnectNATS(cfg.NATSURL, "safeguard")
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		m.nc = nc
		senders = append(senders, notification.NewNATSSender(nc, cfg.SubjectPrefix))
	}

	if err := m.initRiver(infra, senders); err != nil {
		m.close()
		return nil, err
	}

	switch cfg.Mode {
	case config.NotifyModePool:
		dispatcher := notification.NewPoolDispatcher(infra.Pools, senders, cfg.SendTimeout)
		infra.Transitions.RegisterAll(notification.NewTriggers(dispatcher).Handle)
	case config.NotifyModeRiver:
		if infra.PGStore == nil || infra.DB == nil || infra.DB.RiverClient == nil {
			m.close()
			return nil, fmt.Errorf("notification mode %q requires the postgres store", cfg.Mode)
		}
		infra.PGStore.AddTxHook(jobs.NewRiverDispatcher(infra.DB.RiverClient).EnqueueTx)
	default:
		logger.Info("Notifications disabled", zap.String("mode", cfg.Mode))
	}

	logger.Info("Notification module initialized",
		zap.String("mode", cfg.Mode),
		zap.Int("senders", len(senders)),
		zap.Bool("inbox", m.inbox != nil),
		zap.Bool("nats", m.nc != nil),
	)
	return m, nil
}

// initRiver starts a River client whenever a database is present. Delivery
// workers are only fed in river mode; inbox cleanup runs in every mode.
func (m *NotificationModule) initRiver(infra *Infrastructure, sender notification.Sender) error {
	if infra.DB == nil {
		return nil
	}
	deps := jobs.Deps{
		Sender:          sender,
		Retention:       infra.Config.Notification.Retention,
		DeliveryTimeout: infra.Config.Notification.SendTimeout,
	}
	if m.inbox != nil {
		deps.Purger = m.inbox
	}
	workers, periodic, err := jobs.Register(deps)
	if err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}
	if err := infra.DB.InitRiverClient(workers, periodic, infra.Config.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	return nil
}

func (m *NotificationModule) Name() string { return "notification" }

func (m *NotificationModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	if m.inbox != nil {
		deps.Inbox = m.inbox
	}
	if m.nc != nil {
		nc := m.nc
		deps.Readiness = append(deps.Readiness, handlers.ReadinessCheck{
			Name: "nats",
			Check: func(context.Context) error {
				if !nc.IsConnected() {
					return fmt.Errorf("nats status %s", nc.Status())
				}
				return nil
			},
		})
	}
}

func (m *NotificationModule) Shutdown(context.Context) error {
	m.close()
	return nil
}

func (m *NotificationModule) close() {
	if m.nc == nil {
		return
	}
	if err := m.nc.Drain(); err != nil {
		logger.Warn("nats drain failed", zap.Error(err))
	}
	m.nc = nil
}
