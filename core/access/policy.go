// Package access is the feature access policy engine.
//
// A Policy answers whether a role may perform an action on a feature. The permission
// table is plain data: feature -> role -> action -> allowed. Lookups are deny-by-default:
// an unknown feature, role or action is never allowed. Roles without an entry of their
// own are retried once under their base role (see ResolveRole).
package access

import "sort"

type (
	// Permissions maps an action to whether it is allowed.
	Permissions map[Action]bool

	// Table is the permission matrix: feature -> role -> permissions.
	Table map[Feature]map[Role]Permissions

	// Entry is a single (feature, role, action) triple of a Table.
	Entry struct {
		Feature Feature `json:"feature" yaml:"feature"`
		Role    Role    `json:"role" yaml:"role"`
		Action  Action  `json:"action" yaml:"action"`
		Allowed bool    `json:"allowed" yaml:"allowed"`
	}
)

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	c := make(Table, len(t))
	for feature, roles := range t {
		cr := make(map[Role]Permissions, len(roles))
		for role, perms := range roles {
			cr[role] = perms.Clone()
		}
		c[feature] = cr
	}
	return c
}

// Entries lists every triple of the table, sorted by feature, role then action.
func (t Table) Entries() []Entry {
	entries := make([]Entry, 0)
	for feature, roles := range t {
		for role, perms := range roles {
			for action, allowed := range perms {
				entries = append(entries, Entry{Feature: feature, Role: role, Action: action, Allowed: allowed})
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Feature != b.Feature {
			return a.Feature < b.Feature
		}
		if a.Role != b.Role {
			return a.Role < b.Role
		}
		return a.Action < b.Action
	})
	return entries
}

func (p Permissions) Clone() Permissions {
	c := make(Permissions, len(p))
	for action, allowed := range p {
		c[action] = allowed
	}
	return c
}

// Allowed lists the allowed actions, sorted.
func (p Permissions) Allowed() []Action {
	actions := make([]Action, 0, len(p))
	for action, allowed := range p {
		if allowed {
			actions = append(actions, action)
		}
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

func grant(actions ...Action) Permissions {
	p := make(Permissions, len(actions))
	for _, a := range actions {
		p[a] = true
	}
	return p
}

// DefaultTable returns a fresh copy of the built-in permission table.
func DefaultTable() Table {
	return Table{
		FeatureRegulationYears: {
			RoleAdministrator: grant(ActionView, ActionCreate, ActionEdit, ActionDelete),
			RoleFaculty:       grant(ActionView),
			RoleStudent:       grant(ActionView),
		},
		FeatureRevisionWorkflow: {
			RoleAdministrator: grant(ActionView, ActionCreate, ActionEdit, ActionDelete, ActionApprove),
			RoleFaculty:       grant(ActionView, ActionCreate, ActionEdit),
		},
		FeatureAcademicStructure: {
			RoleAdministrator: grant(ActionView, ActionCreate, ActionEdit, ActionDelete),
			RoleFaculty:       grant(ActionView),
			RoleStudent:       grant(ActionView),
		},
		FeatureCreditConfig: {
			RoleAdministrator: grant(ActionView, ActionCreate, ActionEdit, ActionDelete, ActionOverride),
			RoleFaculty:       grant(ActionView),
			RoleStudent:       grant(ActionView),
		},
		FeatureElectiveSelection: {
			RoleAdministrator: grant(ActionView, ActionCreate, ActionEdit, ActionDelete, ActionManage),
			RoleFaculty:       grant(ActionView, ActionRecommend),
			RoleStudent:       grant(ActionView, ActionSelect),
			RoleParent:        grant(ActionView),
		},
		FeatureOBEConfig: {
			RoleAdministrator: grant(ActionView, ActionCreate, ActionEdit, ActionDelete, ActionAnalytics),
			RoleFaculty:       grant(ActionView, ActionEdit, ActionAnalytics),
			RoleStudent:       grant(ActionView),
		},
		FeatureSyllabusTracking: {
			RoleAdministrator: grant(ActionView, ActionCreate, ActionEdit, ActionDelete, ActionTrack, ActionAnalytics),
			RoleFaculty:       grant(ActionView, ActionEdit, ActionTrack, ActionUpload),
			RoleStudent:       grant(ActionView, ActionTrack),
			RoleParent:        grant(ActionView),
		},
		FeatureIntegration: {
			RoleAdministrator: grant(ActionView, ActionCreate, ActionEdit, ActionDelete, ActionManage),
		},
	}
}

// Policy evaluates a read-only Table. It is safe for concurrent use.
type Policy struct {
	table Table
}

// NewPolicy copies table; later changes to table do not affect the Policy.
func NewPolicy(table Table) *Policy {
	return &Policy{table: table.Clone()}
}

// NewDefaultPolicy returns a Policy over DefaultTable.
func NewDefaultPolicy() *Policy {
	return &Policy{table: DefaultTable()}
}

func (p *Policy) lookup(feature Feature, role Role) (Permissions, bool) {
	roles, ok := p.table[feature]
	if !ok {
		return nil, false
	}
	perms, ok := roles[role]
	return perms, ok
}

// entry finds the permissions for (feature, role): the role's own entry first, then its base role's.
func (p *Policy) entry(feature Feature, role Role) (Permissions, bool) {
	if perms, ok := p.lookup(feature, role); ok {
		return perms, true
	}
	base := ResolveRole(role)
	if base == role {
		return nil, false
	}
	return p.lookup(feature, base)
}

// IsAllowed reports whether role may perform action on feature. It never fails:
// anything the table does not grant is denied. Keys match exactly; callers normalise
// untrusted input (see ParseRole) before asking.
func (p *Policy) IsAllowed(feature Feature, action Action, role Role) bool {
	if p == nil {
		return false
	}
	perms, ok := p.entry(feature, role)
	if !ok {
		return false
	}
	return perms[action]
}

// Permissions returns a copy of the resolved permissions of role on feature (empty when none).
func (p *Policy) Permissions(feature Feature, role Role) Permissions {
	if p == nil {
		return Permissions{}
	}
	perms, ok := p.entry(feature, role)
	if !ok {
		return Permissions{}
	}
	return perms.Clone()
}

// EntryRole returns the role whose entry answers for role on feature:
// role itself when it owns an entry, else its base role. ok is false when neither does.
func (p *Policy) EntryRole(feature Feature, role Role) (Role, bool) {
	if p == nil {
		return "", false
	}
	if _, ok := p.lookup(feature, role); ok {
		return role, true
	}
	base := ResolveRole(role)
	if _, ok := p.lookup(feature, base); ok && base != role {
		return base, true
	}
	return "", false
}

// HasFeature reports whether the table defines feature.
func (p *Policy) HasFeature(feature Feature) bool {
	if p == nil {
		return false
	}
	_, ok := p.table[feature]
	return ok
}

// Features lists the table's features, sorted.
func (p *Policy) Features() []Feature {
	if p == nil {
		return []Feature{}
	}
	features := make([]Feature, 0, len(p.table))
	for f := range p.table {
		features = append(features, f)
	}
	sort.Slice(features, func(i, j int) bool { return features[i] < features[j] })
	return features
}

// Roles lists the roles owning an entry for feature, sorted. Entries granting nothing are included.
func (p *Policy) Roles(feature Feature) []Role {
	if p == nil {
		return []Role{}
	}
	roles := make([]Role, 0, len(p.table[feature]))
	for r := range p.table[feature] {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Entries lists the table's triples. See Table.Entries.
func (p *Policy) Entries() []Entry {
	if p == nil {
		return []Entry{}
	}
	return p.table.Entries()
}
