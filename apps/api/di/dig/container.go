package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo-curriculum/apps/api/echo"
	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/access"
	"github.com/trezcool/masomo-curriculum/core/revision"
	emailsvc "github.com/trezcool/masomo-curriculum/services/email"
	logsvc "github.com/trezcool/masomo-curriculum/services/logger"
	"github.com/trezcool/masomo-curriculum/storage/database"
	inmemdb "github.com/trezcool/masomo-curriculum/storage/database/inmem"
	sqlxrepos "github.com/trezcool/masomo-curriculum/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Closer releases the storage when the app stops.
type Closer func() error

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

// newRevisionRepository sets up the configured storage engine.
func newRevisionRepository(conf *core.Config, loggerParam DBLoggerParam) (revision.Repository, Closer) {
	dbLogger := loggerParam.Logger

	if conf.Database.Engine == database.EngineMemory {
		db, err := inmemdb.Open()
		if err != nil {
			dbLogger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		dbLogger.Info("using in-memory storage")
		return inmemdb.NewRevisionRepository(db), func() error { return nil }
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		dbLogger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		dbLogger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	if err = database.Migrate(db); err != nil {
		dbLogger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}
	dbLogger.Info(fmt.Sprintf("using %s storage", conf.Database.Engine))
	return sqlxrepos.NewRevisionRepository(db), db.Close
}

func newPolicy(conf *core.Config, logger core.Logger) *access.Policy {
	policy, err := access.LoadPolicy(conf.PolicyFile)
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading access policy: %v", err), err)
	}
	return policy
}

func newAuthorizer(policy *access.Policy) revision.Authorizer {
	return policy
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRevisionRepository))
	must(c.Provide(emailsvc.NewEmailService))
	must(c.Provide(newPolicy))
	must(c.Provide(newAuthorizer))
	must(c.Provide(revision.NewService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
