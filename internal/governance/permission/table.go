// Package permission loads the static role-permission table that maps
// (status, action) pairs to the roles allowed to invoke them.
//
// The table is configuration, not state: it is loaded once at startup and
// never mutated afterwards.
package permission

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"safeguard.io/safeguard/internal/domain"
)

//go:embed default_table.yaml
var defaultTable []byte

// Key identifies one (status, action) cell of the table.
type Key struct {
	Status domain.Status `json:"status"`
	Action domain.Action `json:"action"`
}

func (k Key) String() string {
	return string(k.Status) + "/" + string(k.Action)
}

// Entry is one row of the table as exposed to clients.
type Entry struct {
	Status domain.Status `json:"status"`
	Action domain.Action `json:"action"`
	Roles  []domain.Role `json:"roles"`
}

// Table is an immutable role-permission table.
type Table struct {
	cells map[Key][]domain.Role
}

// Default returns the embedded table.
func Default() (*Table, error) {
	return Parse(defaultTable)
}

// Load returns the table at path, or the embedded table when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read permission table %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("permission table %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a YAML document of the form status -> action -> [roles].
// Unknown statuses, actions and roles are rejected, as are statuses that
// list no actions.
func Parse(data []byte) (*Table, error) {
	var raw map[string]map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode permission table: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("permission table is empty")
	}

	t := &Table{cells: make(map[Key][]domain.Role)}
	for rawStatus, actions := range raw {
		status, err := domain.ParseStatus(rawStatus)
		if err != nil {
			return nil, err
		}
		if len(actions) == 0 {
			return nil, fmt.Errorf("status %s lists no actions", status)
		}
		for rawAction, rawRoles := range actions {
			action, err := domain.ParseAction(rawAction)
			if err != nil {
				return nil, fmt.Errorf("status %s: %w", status, err)
			}
			if len(rawRoles) == 0 {
				return nil, fmt.Errorf("%s/%s grants no roles", status, action)
			}
			roles := make([]domain.Role, 0, len(rawRoles))
			for _, r := range rawRoles {
				role := domain.Role(r)
				if !role.Valid() {
					return nil, fmt.Errorf("%s/%s: unknown role %q", status, action, r)
				}
				if !slices.Contains(roles, role) {
					roles = append(roles, role)
				}
			}
			t.cells[Key{Status: status, Action: action}] = roles
		}
	}
	return t, nil
}

// Validate checks the table against the set of defined transitions. Every
// cell must name a defined (status, action) pair and every defined pair must
// be granted to at least one role.
func (t *Table) Validate(defined []Key) error {
	known := make(map[Key]struct{}, len(defined))
	for _, k := range defined {
		known[k] = struct{}{}
		if _, ok := t.cells[k]; !ok {
			return fmt.Errorf("transition %s has no permission entry", k)
		}
	}
	for k := range t.cells {
		if _, ok := known[k]; !ok {
			return fmt.Errorf("permission entry %s names an undefined transition", k)
		}
	}
	return nil
}

// Roles returns the roles allowed to invoke action in status.
func (t *Table) Roles(status domain.Status, action domain.Action) ([]domain.Role, bool) {
	roles, ok := t.cells[Key{Status: status, Action: action}]
	if !ok {
		return nil, false
	}
	return slices.Clone(roles), true
}

// Allows reports whether any of roles may invoke action in status.
func (t *Table) Allows(status domain.Status, action domain.Action, roles []domain.Role) bool {
	granted, ok := t.cells[Key{Status: status, Action: action}]
	if !ok {
		return false
	}
	for _, r := range roles {
		if slices.Contains(granted, r) {
			return true
		}
	}
	return false
}

// Actions returns the actions listed for status, sorted by name.
func (t *Table) Actions(status domain.Status) []domain.Action {
	var out []domain.Action
	for k := range t.cells {
		if k.Status == status {
			out = append(out, k.Action)
		}
	}
	slices.Sort(out)
	return out
}

// Entries returns every cell ordered by status then action.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.cells))
	for k, roles := range t.cells {
		out = append(out, Entry{Status: k.Status, Action: k.Action, Roles: slices.Clone(roles)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		return out[i].Action < out[j].Action
	})
	return out
}
