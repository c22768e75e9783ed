package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/revision"
)

type revisionRepository struct {
	db *revisionTable
}

var _ revision.Repository = (*revisionRepository)(nil) // interface compliance check

func NewRevisionRepository(db *DB) revision.Repository {
	return &revisionRepository{db: db.revision}
}

func (repo *revisionRepository) CreateRevision(_ context.Context, rev revision.Revision) (revision.Revision, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if rev.ID == "" {
		return revision.Revision{}, errors.New("revision ID is required")
	}
	if _, ok := repo.db.index[rev.ID]; ok {
		return revision.Revision{}, errors.Errorf("revision %s already exists", rev.ID)
	}
	repo.db.index[rev.ID] = len(repo.db.arena)
	repo.db.arena = append(repo.db.arena, rev.Clone())
	return rev.Clone(), nil
}

func (repo *revisionRepository) GetRevision(_ context.Context, id string) (revision.Revision, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if i, ok := repo.db.index[id]; ok {
		return repo.db.arena[i].Clone(), nil
	}
	return revision.Revision{}, revision.ErrNotFound
}

func (repo *revisionRepository) UpdateRevision(_ context.Context, rev revision.Revision, tr revision.Transition) (revision.Revision, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	i, ok := repo.db.index[rev.ID]
	if !ok {
		return revision.Revision{}, revision.ErrNotFound
	}
	// only save workflow fields
	orig := &repo.db.arena[i]
	orig.Stage = rev.Stage
	orig.Status = rev.Status
	orig.UpdatedAt = rev.UpdatedAt
	orig.History = append(orig.History, tr)
	return orig.Clone(), nil
}

func (repo *revisionRepository) QueryRevisions(_ context.Context, filter *revision.QueryFilter, ordering []core.DBOrdering) ([]revision.Revision, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	revs := make([]revision.Revision, 0, len(repo.db.arena))
	for _, rev := range repo.db.arena {
		if filter.Match(rev) {
			revs = append(revs, rev.Clone())
		}
	}
	revision.SortRevisions(revs, ordering)
	return revs, nil
}
