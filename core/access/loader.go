package access

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/masomo-curriculum/core"
)

// policyFile is the YAML layout: feature -> role -> granted actions.
// A role listed with no actions still owns an entry, so it is not retried under its base role.
type policyFile map[string]map[string][]string

// LoadTable reads a YAML permission table.
//
//	revision-workflow:
//	  administrator: [view, create, edit, delete, approve]
//	  faculty: [view, create, edit]
func LoadTable(r io.Reader) (Table, error) {
	var pf policyFile
	if err := yaml.NewDecoder(r).Decode(&pf); err != nil {
		if err == io.EOF {
			return Table{}, nil
		}
		return nil, errors.Wrap(err, "decoding policy")
	}

	table := make(Table, len(pf))
	for f, roles := range pf {
		feature := Feature(core.CleanString(f, true /* lower */))
		if feature == "" {
			return nil, errors.New("policy: empty feature key")
		}
		table[feature] = make(map[Role]Permissions, len(roles))
		for r, actions := range roles {
			role := ParseRole(r)
			if role == "" {
				return nil, errors.Errorf("policy: empty role key in feature %q", f)
			}
			perms := make(Permissions, len(actions))
			for _, a := range actions {
				perms[Action(core.CleanString(a, true /* lower */))] = true
			}
			table[feature][role] = perms
		}
	}
	return table, nil
}

// LoadPolicy returns the Policy described by the YAML file at path,
// or the built-in policy when path is empty.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return NewDefaultPolicy(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening policy file")
	}
	defer func() { _ = f.Close() }()

	table, err := LoadTable(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return &Policy{table: table}, nil
}

// MarshalYAML encodes the table in the LoadTable layout (granted actions only).
func (t Table) MarshalYAML() (interface{}, error) {
	pf := make(map[string]map[string][]string, len(t))
	for feature, roles := range t {
		pf[string(feature)] = make(map[string][]string, len(roles))
		for role, perms := range roles {
			actions := make([]string, 0, len(perms))
			for _, a := range perms.Allowed() {
				actions = append(actions, string(a))
			}
			pf[string(feature)][string(role)] = actions
		}
	}
	return pf, nil
}
