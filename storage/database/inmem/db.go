package inmemdb

import (
	"sync"

	"github.com/trezcool/masomo-curriculum/core/revision"
)

type (
	// DB is a process-local store. Revisions live in an arena in creation order,
	// indexed by ID.
	DB struct {
		revision *revisionTable
	}

	revisionTable struct {
		sync.RWMutex
		arena []revision.Revision
		index map[string]int
	}
)

func Open() (*DB, error) {
	db := &DB{
		revision: &revisionTable{index: make(map[string]int)},
	}
	return db, nil
}

// Reset drops every record.
func (db *DB) Reset() {
	db.revision.Lock()
	defer db.revision.Unlock()
	db.revision.arena = nil
	db.revision.index = make(map[string]int)
}
