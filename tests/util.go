package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/access"
	"github.com/trezcool/masomo-curriculum/core/revision"
	"github.com/trezcool/masomo-curriculum/storage/database"
)

// PrepareDB opens a migrated in-memory sqlite database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	conf := core.NewTestConfig()
	conf.Database.Engine = database.EngineSQLite
	conf.Database.Path = ":memory:"

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// CreateRevision stores a revision straight into repo, bypassing the workflow.
func CreateRevision(
	t *testing.T,
	repo revision.Repository,
	title, program string,
	priority revision.Priority,
	dueDate time.Time,
	createdAt ...time.Time,
) revision.Revision {
	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC().Truncate(time.Microsecond)
	}
	rev := revision.Revision{
		ID:            uuid.New().String(),
		Title:         title,
		Program:       program,
		Stage:         revision.StageGapAnalysis,
		Status:        revision.StatusInProgress,
		Priority:      priority,
		DueDate:       dueDate.UTC(),
		RequestedBy:   "tester",
		RequesterRole: access.RoleAdministrator,
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
		History: []revision.Transition{{
			Action:   revision.OpInitiate,
			ToStage:  revision.StageGapAnalysis,
			ToStatus: revision.StatusInProgress,
			Role:     access.RoleAdministrator,
			Actor:    "tester",
			At:       tstamp,
		}},
	}
	rev, err := repo.CreateRevision(context.Background(), rev)
	if err != nil {
		t.Fatalf("CreateRevision() failed: %v", err)
	}
	return rev
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
