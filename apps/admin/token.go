package main

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-curriculum/apps/api/echo"
	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/access"
)

// token prints a signed API token for the given caller.
func (cli *commandLine) token(id core.Identity, role access.Role) error {
	role = access.ParseRole(string(role))
	if !access.IsKnown(role) {
		return errors.Errorf("unknown role %q", role)
	}
	token, err := echoapi.GenerateToken(echoapi.NewClaims(id, role, cli.conf), cli.conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	_, _ = fmt.Fprintln(cli.out, token)
	return nil
}
