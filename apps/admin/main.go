package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/access"
	"github.com/trezcool/masomo-curriculum/storage/database"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.LoadConfig()
	errAndDie(err)

	policy, err := access.LoadPolicy(conf.PolicyFile)
	errAndDie(err)

	// start CLI
	cli := commandLine{
		conf:   conf,
		policy: policy,
		out:    os.Stdout,
		openDB: func() (*sqlx.DB, error) { return database.Open(conf) },
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
