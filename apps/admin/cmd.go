package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/access"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf   *core.Config
	policy *access.Policy
	out    io.Writer
	openDB func() (*sqlx.DB, error)
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, version, redo, reset...)")
	_, _ = fmt.Fprintln(cli.out, "  token -role ROLE -subject SUBJECT [-name NAME] [-email EMAIL] - issue an API token")
	_, _ = fmt.Fprintln(cli.out, "  policy [-feature FEATURE] [-role ROLE] - print the access policy table")
	_, _ = fmt.Fprintln(cli.out, "  check -feature FEATURE -action ACTION -role ROLE - evaluate one access decision")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenCmd.SetOutput(cli.out)
	tokenRole := tokenCmd.String("role", "", "The caller's role, aliases included.")
	tokenSubject := tokenCmd.String("subject", "", "The caller's unique identifier.")
	tokenName := tokenCmd.String("name", "", "The caller's display name.")
	tokenEmail := tokenCmd.String("email", "", "The caller's email.")

	policyCmd := flag.NewFlagSet("policy", flag.ContinueOnError)
	policyCmd.SetOutput(cli.out)
	policyFeature := policyCmd.String("feature", "", "Only print this feature.")
	policyRole := policyCmd.String("role", "", "Only print this role (aliases are resolved).")

	checkCmd := flag.NewFlagSet("check", flag.ContinueOnError)
	checkCmd.SetOutput(cli.out)
	checkFeature := checkCmd.String("feature", "", "The feature, e.g. revision-workflow.")
	checkAction := checkCmd.String("action", "", "The action, e.g. approve.")
	checkRole := checkCmd.String("role", "", "The role, aliases included.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *tokenRole == "" || *tokenSubject == "" {
			tokenCmd.Usage()
			return errHelp
		}
		id := core.Identity{Subject: *tokenSubject, Name: *tokenName, Email: *tokenEmail}
		return cli.token(id, access.Role(*tokenRole))
	case "policy":
		if err := policyCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.printPolicy(access.Feature(*policyFeature), access.Role(*policyRole))
	case "check":
		if err := checkCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *checkFeature == "" || *checkAction == "" || *checkRole == "" {
			checkCmd.Usage()
			return errHelp
		}
		return cli.check(access.Feature(*checkFeature), access.Action(*checkAction), access.Role(*checkRole))
	default:
		cli.printUsage()
		return errHelp
	}
}
