package domain

import "slices"

// Actor is an authenticated user acting within one tenant.
type Actor struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Roles    []Role `json:"roles"`
}

// HasRole reports whether the actor holds r through identity configuration.
func (a Actor) HasRole(r Role) bool {
	return slices.Contains(a.Roles, r)
}

// EffectiveRoles returns the held roles plus the relationship roles the actor
// has on e. Relationship roles supplied by the token are ignored: they only
// come from the event itself.
func (a Actor) EffectiveRoles(e *Event) []Role {
	roles := make([]Role, 0, len(a.Roles)+2)
	for _, r := range a.Roles {
		if r.Relationship() || slices.Contains(roles, r) {
			continue
		}
		roles = append(roles, r)
	}
	if e == nil || a.ID == "" {
		return roles
	}
	if e.ReporterID == a.ID {
		roles = append(roles, RoleReporter)
	}
	if e.InvestigatorID() == a.ID {
		roles = append(roles, RoleInvestigator)
	}
	return roles
}
