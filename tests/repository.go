package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/access"
	"github.com/trezcool/masomo-curriculum/core/revision"
)

// RepositoryContract checks the behaviour every revision.Repository must share.
// newRepo must return an empty repository.
func RepositoryContract(t *testing.T, newRepo func(t *testing.T) revision.Repository) {
	ctx := context.Background()

	t.Run("get unknown", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetRevision(ctx, "nope")
		assert.ErrorIs(t, err, revision.ErrNotFound)
	})

	t.Run("create & get", func(t *testing.T) {
		repo := newRepo(t)
		created := CreateRevision(t, repo, "Add AI elective", "B.Tech CSE", revision.PriorityHigh, Date(2025, 6, 30))

		got, err := repo.GetRevision(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, got)
		assert.Equal(t, revision.StageGapAnalysis, got.Stage)
		assert.Len(t, got.History, 1)
		assert.Equal(t, Date(2025, 6, 30), got.DueDate)
	})

	t.Run("update appends history", func(t *testing.T) {
		repo := newRepo(t)
		created := CreateRevision(t, repo, "Update labs", "B.Sc Physics", revision.PriorityLow, Date(2025, 1, 1))

		at := created.UpdatedAt.Add(time.Minute)
		rev := created
		rev.Stage = revision.StageFacultyReview
		rev.UpdatedAt = at
		rev.Title = "ignored"
		tr := revision.Transition{
			Action:     revision.OpAdvance,
			FromStage:  revision.StageGapAnalysis,
			ToStage:    revision.StageFacultyReview,
			FromStatus: revision.StatusInProgress,
			ToStatus:   revision.StatusInProgress,
			Role:       access.RoleFaculty,
			Actor:      "prof",
			At:         at,
		}
		updated, err := repo.UpdateRevision(ctx, rev, tr)
		require.NoError(t, err)
		assert.Equal(t, revision.StageFacultyReview, updated.Stage)
		assert.Equal(t, "Update labs", updated.Title)
		assert.Equal(t, at, updated.UpdatedAt)
		require.Len(t, updated.History, 2)
		assert.Equal(t, tr, updated.History[1])

		got, err := repo.GetRevision(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, updated, got)
	})

	t.Run("update unknown", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.UpdateRevision(ctx, revision.Revision{ID: "nope"}, revision.Transition{Action: revision.OpAdvance})
		assert.ErrorIs(t, err, revision.ErrNotFound)
	})

	t.Run("returned values are copies", func(t *testing.T) {
		repo := newRepo(t)
		created := CreateRevision(t, repo, "Copy", "MBA", revision.PriorityMedium, Date(2025, 3, 1))
		created.History[0].Actor = "mutated"

		got, err := repo.GetRevision(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "tester", got.History[0].Actor)
	})

	t.Run("query", func(t *testing.T) {
		repo := newRepo(t)
		base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
		ai := CreateRevision(t, repo, "Add AI elective", "B.Tech CSE", revision.PriorityHigh, Date(2025, 6, 30), base)
		labs := CreateRevision(t, repo, "Update labs", "B.Sc Physics", revision.PriorityLow, Date(2025, 1, 15), base.Add(time.Hour))
		ethics := CreateRevision(t, repo, "Ethics module", "b.tech cse", revision.PriorityMedium, Date(2025, 3, 1), base.Add(2*time.Hour))

		adv := ethics
		adv.Stage = revision.StageFacultyReview
		adv.UpdatedAt = ethics.UpdatedAt.Add(time.Minute)
		ethics, err := repo.UpdateRevision(ctx, adv, revision.Transition{
			Action: revision.OpAdvance, FromStage: revision.StageGapAnalysis, ToStage: revision.StageFacultyReview,
			FromStatus: revision.StatusInProgress, ToStatus: revision.StatusInProgress, Role: access.RoleFaculty, At: adv.UpdatedAt,
		})
		require.NoError(t, err)

		ids := func(revs []revision.Revision) []string {
			res := make([]string, 0, len(revs))
			for _, r := range revs {
				res = append(res, r.ID)
			}
			return res
		}

		tests := []struct {
			name     string
			filter   *revision.QueryFilter
			ordering []core.DBOrdering
			want     []revision.Revision
		}{
			{name: "all", want: []revision.Revision{ai, labs, ethics}},
			{name: "empty filter", filter: &revision.QueryFilter{}, want: []revision.Revision{ai, labs, ethics}},
			{name: "search (unknown)", filter: &revision.QueryFilter{Search: "lol"}, want: []revision.Revision{}},
			{name: "search title", filter: &revision.QueryFilter{Search: "LAB"}, want: []revision.Revision{labs}},
			{name: "search program", filter: &revision.QueryFilter{Search: "tech"}, want: []revision.Revision{ai, ethics}},
			{name: "program", filter: &revision.QueryFilter{Program: "B.TECH CSE"}, want: []revision.Revision{ai, ethics}},
			{
				name:   "stage",
				filter: &revision.QueryFilter{Stages: []revision.Stage{revision.StageFacultyReview}},
				want:   []revision.Revision{ethics},
			},
			{
				name:   "status",
				filter: &revision.QueryFilter{Statuses: []revision.Status{revision.StatusInProgress}},
				want:   []revision.Revision{ai, labs, ethics},
			},
			{
				name:   "priorities",
				filter: &revision.QueryFilter{Priorities: []revision.Priority{revision.PriorityHigh, revision.PriorityLow}},
				want:   []revision.Revision{ai, labs},
			},
			{
				name:   "due range",
				filter: &revision.QueryFilter{DueFrom: Date(2025, 2, 1), DueTo: Date(2025, 6, 30)},
				want:   []revision.Revision{ai, ethics},
			},
			{
				name:   "combo",
				filter: &revision.QueryFilter{Search: "e", Program: "b.tech cse", DueTo: Date(2025, 4, 1)},
				want:   []revision.Revision{ethics},
			},
			{
				name:     "order by -created_at",
				ordering: []core.DBOrdering{{Field: "created_at"}},
				want:     []revision.Revision{ethics, labs, ai},
			},
			{
				name:     "order by priority",
				ordering: []core.DBOrdering{{Field: "priority"}},
				want:     []revision.Revision{ai, ethics, labs},
			},
			{
				name:     "order by due_date",
				ordering: []core.DBOrdering{{Field: "due_date", Ascending: true}},
				want:     []revision.Revision{labs, ethics, ai},
			},
			{
				name:     "order by -stage,title",
				ordering: []core.DBOrdering{{Field: "stage"}, {Field: "title", Ascending: true}},
				want:     []revision.Revision{ethics, ai, labs},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.QueryRevisions(ctx, tt.filter, tt.ordering)
				require.NoError(t, err)
				assert.Equal(t, ids(tt.want), ids(got))
				if len(got) == len(tt.want) {
					assert.Equal(t, tt.want, got)
				}
			})
		}
	})
}
