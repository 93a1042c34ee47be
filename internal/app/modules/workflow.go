package modules

import (
	"context"
	"fmt"
	"time"

	"safeguard.io/safeguard/internal/api/handlers"
	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/governance/approval"
	"safeguard.io/safeguard/internal/governance/permission"
	"safeguard.io/safeguard/internal/usecase"
	"safeguard.io/safeguard/internal/workflow"
)

// WorkflowModule wires the permission table, the transition authority, the
// gateway and the use cases built on them.
type WorkflowModule struct {
	table        *permission.Table
	gateway      *approval.Gateway
	createEvent  *usecase.CreateEventUseCase
	submitAction *usecase.SubmitActionUseCase
	queries      *usecase.EventQueries
}

// NewWorkflowModule loads the permission table and validates it against the
// transition function; an inconsistent table stops startup.
func NewWorkflowModule(infra *Infrastructure) (*WorkflowModule, error) {
	if infra == nil || infra.Config == nil || infra.Store == nil {
		return nil, fmt.Errorf("workflow module requires config and event store")
	}
	cfg := infra.Config.Workflow

	table, err := permission.Load(cfg.PermissionsFile)
	if err != nil {
		return nil, fmt.Errorf("load permission table: %w", err)
	}
	authority, err := workflow.NewAuthority(table)
	if err != nil {
		return nil, err
	}
	sla, err := parseSLA(cfg.SLA)
	if err != nil {
		return nil, err
	}

	gateway := approval.NewGateway(infra.Store, authority, cfg.MaxConflictRetries)
	gateway.SetDispatcher(infra.Transitions)

	return &WorkflowModule{
		table:        table,
		gateway:      gateway,
		createEvent:  usecase.NewCreateEventUseCase(gateway),
		submitAction: usecase.NewSubmitActionUseCase(gateway),
		queries:      usecase.NewEventQueries(infra.Store, authority, sla),
	}, nil
}

func parseSLA(raw map[string]time.Duration) (map[domain.Status]time.Duration, error) {
	out := make(map[domain.Status]time.Duration, len(raw))
	for name, d := range raw {
		status, err := domain.ParseStatus(name)
		if err != nil {
			return nil, fmt.Errorf("workflow.sla: %w", err)
		}
		out[status] = d
	}
	return out, nil
}

func (m *WorkflowModule) Name() string { return "workflow" }

func (m *WorkflowModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.CreateEvent = m.createEvent
	deps.SubmitAction = m.submitAction
	deps.Queries = m.queries
	deps.Permissions = m.table
}

func (m *WorkflowModule) Shutdown(context.Context) error { return nil }
