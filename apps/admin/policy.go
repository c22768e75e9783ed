package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/access"
)

var (
	allowedColor = color.New(color.FgGreen)
	deniedColor  = color.New(color.FgRed)
	headerColor  = color.New(color.Bold)
)

// printPolicy prints the allowed actions of every (feature, role) entry, optionally filtered.
// Filtering by role shows the entry that answers for it: its own when it has one, else its base role's.
func (cli *commandLine) printPolicy(feature access.Feature, role access.Role) error {
	feature = access.Feature(core.CleanString(string(feature), true /* lower */))
	role = access.ParseRole(string(role))

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = headerColor.Fprintln(w, "FEATURE\tROLE\tACTIONS")

	for _, f := range cli.policy.Features() {
		if feature != "" && f != feature {
			continue
		}
		roles := cli.policy.Roles(f)
		if role != "" {
			r, ok := cli.policy.EntryRole(f, role)
			if !ok {
				continue
			}
			roles = []access.Role{r}
		}
		for _, r := range roles {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", f, r, formatActions(cli.policy.Permissions(f, r).Allowed()))
		}
	}
	return w.Flush()
}

func formatActions(actions []access.Action) string {
	if len(actions) == 0 {
		return deniedColor.Sprint("none")
	}
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return allowedColor.Sprint(strings.Join(names, ", "))
}

// check prints a single access decision.
func (cli *commandLine) check(feature access.Feature, action access.Action, role access.Role) error {
	feature = access.Feature(core.CleanString(string(feature), true /* lower */))
	action = access.Action(core.CleanString(string(action), true /* lower */))
	parsed := access.ParseRole(string(role))
	resolved := access.ResolveRole(parsed)

	var decision string
	if cli.policy.IsAllowed(feature, action, parsed) {
		decision = allowedColor.Sprint("allowed")
	} else {
		decision = deniedColor.Sprint("denied")
	}
	if resolved != parsed {
		_, _ = fmt.Fprintf(cli.out, "%s (as %s) %s %s: %s\n", parsed, resolved, action, feature, decision)
	} else {
		_, _ = fmt.Fprintf(cli.out, "%s %s %s: %s\n", parsed, action, feature, decision)
	}
	return nil
}
