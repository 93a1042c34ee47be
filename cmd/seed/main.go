// Package main seeds demo events for local development and prints a token
// per demo persona.
//
// Seeding is skipped for a tenant that already has events, so the command
// can run on every `make dev`.
//
// Import Path: safeguard.io/safeguard/cmd/seed
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"safeguard.io/safeguard/internal/api/middleware"
	"safeguard.io/safeguard/internal/app/modules"
	"safeguard.io/safeguard/internal/config"
	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/governance/approval"
	"safeguard.io/safeguard/internal/governance/permission"
	"safeguard.io/safeguard/internal/notification"
	"safeguard.io/safeguard/internal/pkg/logger"
	"safeguard.io/safeguard/internal/usecase"
	"safeguard.io/safeguard/internal/workflow"
)

const defaultTenant = "tenant-demo"

// persona is a demo user with the roles it holds.
type persona struct {
	ID    string
	Roles []domain.Role
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Storage.Driver != config.StoragePostgres {
		return fmt.Errorf("seeding requires storage.driver %q, got %q", config.StoragePostgres, cfg.Storage.Driver)
	}

	ctx := context.Background()
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init infrastructure: %w", err)
	}
	defer infra.Close()

	table, err := permission.Load(cfg.Workflow.PermissionsFile)
	if err != nil {
		return fmt.Errorf("load permission table: %w", err)
	}
	authority, err := workflow.NewAuthority(table)
	if err != nil {
		return err
	}
	gateway := approval.NewGateway(infra.Store, authority, cfg.Workflow.MaxConflictRetries)

	// Deliver inline so inbox rows exist before the tokens are printed.
	senders := notification.MultiSender{notification.LogSender{}}
	if cfg.Notification.Inbox {
		senders = append(senders, notification.NewInboxSender(infra.DB.Pool))
	}
	dispatcher := notification.SyncDispatcher{Sender: senders, Timeout: cfg.Notification.SendTimeout}
	infra.Transitions.RegisterAll(notification.NewTriggers(dispatcher).Handle)
	gateway.SetDispatcher(infra.Transitions)

	tenant := envOrDefault("SEED_TENANT", defaultTenant)
	people := personas()

	existing, err := infra.Store.ListByStatus(ctx, tenant, nil)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("Tenant already has events, skipping", zap.String("tenant", tenant), zap.Int("events", len(existing)))
	} else if err := seedEvents(ctx, gateway, tenant, people); err != nil {
		return err
	}

	jwtCfg := modules.NewJWTConfig(cfg)
	for _, p := range people {
		roles := make([]string, len(p.Roles))
		for i, r := range p.Roles {
			roles[i] = string(r)
		}
		token, _, err := middleware.GenerateToken(jwtCfg, p.ID, tenant, roles)
		if err != nil {
			return fmt.Errorf("issue token for %s: %w", p.ID, err)
		}
		fmt.Printf("%s\t%s\n", p.ID, token)
	}
	return nil
}

func personas() []persona {
	return []persona{
		{ID: envOrDefault("SEED_REPORTER_ID", "demo-reporter")},
		{ID: "demo-dept-rep", Roles: []domain.Role{domain.RoleDepartmentRepresentative}},
		{ID: "demo-hsse-expert", Roles: []domain.Role{domain.RoleHSSEExpert}},
		{ID: "demo-manager", Roles: []domain.Role{domain.RoleManager}},
		{ID: "demo-hsse-manager", Roles: []domain.Role{domain.RoleHSSEManager}},
	}
}

// demoEvents returns the fixtures; each is submitted after creation so it
// lands in a reviewer queue.
func demoEvents() []usecase.CreateEventInput {
	return []usecase.CreateEventInput{
		{
			Type:                 domain.EventTypeIncident,
			Title:                "Slip on wet floor near loading dock",
			Description:          "Operator slipped on spilled hydraulic fluid and bruised an elbow.",
			Department:           "logistics",
			Location:             "Dock 3",
			InjuryClassification: domain.InjuryFirstAid,
		},
		{
			Type:        domain.EventTypeObservation,
			Title:       "Missing guard rail on mezzanine",
			Description: "Section of guard rail removed for maintenance and not refitted.",
			Department:  "maintenance",
			Location:    "Mezzanine B",
			Severity:    3,
		},
	}
}

func seedEvents(ctx context.Context, gateway *approval.Gateway, tenant string, people []persona) error {
	reporter := domain.Actor{ID: people[0].ID, TenantID: tenant}
	create := usecase.NewCreateEventUseCase(gateway)
	submit := usecase.NewSubmitActionUseCase(gateway)

	for _, input := range demoEvents() {
		e, err := create.Execute(ctx, reporter, input)
		if err != nil {
			return fmt.Errorf("create %q: %w", input.Title, err)
		}
		res, err := submit.Execute(ctx, reporter, e.ID, domain.ActionSubmit, nil)
		if err != nil {
			return fmt.Errorf("submit %s: %w", e.Reference, err)
		}
		logger.Info("Seeded event",
			zap.String("reference", e.Reference),
			zap.String("status", string(res.NewState.Status)),
		)
	}
	return nil
}

// envOrDefault returns the trimmed value of key, or fallback when unset.
func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
