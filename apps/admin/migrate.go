package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-curriculum/storage/database"
)

var migrateFunc = database.RunMigrations // mockable

var errNoDatabase = errors.New("no SQL database configured (engine is memory)")

func (cli *commandLine) migrate(args []string) error {
	if cli.conf.Database.Engine == database.EngineMemory {
		return errNoDatabase
	}
	if err := database.CreateIfNotExist(cli.conf); err != nil {
		return errors.Wrap(err, "creating database")
	}
	db, err := cli.openDB()
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	return migrateFunc(args[0], db, args[1:]...)
}
