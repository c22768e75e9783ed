package revision_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/access"
	"github.com/trezcool/masomo-curriculum/core/revision"
	"github.com/trezcool/masomo-curriculum/storage/database/inmem"
)

var (
	admin     = revision.Actor{Role: access.RoleAdministrator, Subject: "admin"}
	principal = revision.Actor{Role: access.RolePrincipal, Subject: "principal"}
	faculty   = revision.Actor{Role: access.RoleFaculty, Subject: "prof"}
	hod       = revision.Actor{Role: access.RoleHeadOfDepartment, Subject: "hod"}
	student   = revision.Actor{Role: access.RoleStudent, Subject: "kid"}
	parent    = revision.Actor{Role: access.RoleParent, Subject: "mum"}
)

type mailRecorder struct {
	mu   sync.Mutex
	msgs []*core.EmailMessage
}

func (r *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, messages...)
}

func (r *mailRecorder) sent() []*core.EmailMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs
}

func setup(t *testing.T) (revision.Service, revision.Repository, *mailRecorder) {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewRevisionRepository(db)
	mailer := new(mailRecorder)
	svc := revision.NewService(repo, access.NewDefaultPolicy(), mailer, core.NopLogger{}, core.NewTestConfig())
	return svc, repo, mailer
}

func newRevision() revision.NewRevision {
	return revision.NewRevision{
		Title:    "AI Curriculum Update",
		Program:  "B.Tech CSE",
		Priority: revision.PriorityHigh,
		DueDate:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func initiate(t *testing.T, svc revision.Service) revision.Revision {
	rev, err := svc.Initiate(context.Background(), newRevision(), admin)
	require.NoError(t, err)
	return rev
}

// advanceTo walks rev up to stage with the administrator.
func advanceTo(t *testing.T, svc revision.Service, rev revision.Revision, stage revision.Stage) revision.Revision {
	var err error
	for rev.Stage != stage {
		rev, err = svc.AdvanceStage(context.Background(), rev.ID, admin)
		require.NoError(t, err)
	}
	return rev
}

func TestService_Initiate(t *testing.T) {
	ctx := context.Background()

	t.Run("student is denied", func(t *testing.T) {
		svc, repo, _ := setup(t)
		_, err := svc.Initiate(ctx, newRevision(), student)
		assert.ErrorIs(t, err, revision.ErrDenied)

		revs, err := repo.QueryRevisions(ctx, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, revs)
	})

	t.Run("administrator initiates", func(t *testing.T) {
		restore := revision.SetNowFunc(func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) })
		defer restore()

		svc, _, _ := setup(t)
		rev, err := svc.Initiate(ctx, newRevision(), admin)
		require.NoError(t, err)
		assert.NotEmpty(t, rev.ID)
		assert.Equal(t, revision.StageGapAnalysis, rev.Stage)
		assert.Equal(t, revision.StatusInProgress, rev.Status)
		assert.Equal(t, revision.PriorityHigh, rev.Priority)
		assert.Equal(t, "admin", rev.RequestedBy)
		assert.Equal(t, access.RoleAdministrator, rev.RequesterRole)
		assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), rev.CreatedAt)
		require.Len(t, rev.History, 1)
		assert.Equal(t, revision.OpInitiate, rev.History[0].Action)
	})

	t.Run("faculty initiates", func(t *testing.T) {
		svc, _, _ := setup(t)
		_, err := svc.Initiate(ctx, newRevision(), faculty)
		assert.NoError(t, err)
	})

	t.Run("input is cleaned", func(t *testing.T) {
		svc, _, _ := setup(t)
		nr := newRevision()
		nr.Title = "  Ethics   module "
		nr.Program = "\tB.Tech  CSE\n"
		nr.Priority = "low"
		rev, err := svc.Initiate(ctx, nr, admin)
		require.NoError(t, err)
		assert.Equal(t, "Ethics module", rev.Title)
		assert.Equal(t, "B.Tech CSE", rev.Program)
		assert.Equal(t, revision.PriorityLow, rev.Priority)
	})

	t.Run("validation", func(t *testing.T) {
		svc, _, _ := setup(t)
		tests := []struct {
			name   string
			mutate func(nr *revision.NewRevision)
			field  string
		}{
			{name: "blank title", mutate: func(nr *revision.NewRevision) { nr.Title = "   " }, field: "title"},
			{name: "no program", mutate: func(nr *revision.NewRevision) { nr.Program = "" }, field: "program"},
			{name: "bad priority", mutate: func(nr *revision.NewRevision) { nr.Priority = "Urgent" }, field: "priority"},
			{name: "no due date", mutate: func(nr *revision.NewRevision) { nr.DueDate = time.Time{} }, field: "due_date"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				nr := newRevision()
				tt.mutate(&nr)
				_, err := svc.Initiate(ctx, nr, admin)
				var vErrs validator.ValidationErrors
				require.ErrorAs(t, err, &vErrs)
				assert.Contains(t, core.TranslateErrors(vErrs), tt.field)
			})
		}
	})
}

func TestService_workflow(t *testing.T) {
	ctx := context.Background()
	svc, _, mailer := setup(t)

	rev := initiate(t, svc)
	assert.Equal(t, revision.StageGapAnalysis, rev.Stage)
	assert.Equal(t, revision.StatusInProgress, rev.Status)

	// four advances: the last one hits Final Approval, which needs an approval
	wantStages := []revision.Stage{revision.StageFacultyReview, revision.StageCommitteeReview, revision.StageFinalApproval}
	for i := 0; i < 4; i++ {
		got, err := svc.AdvanceStage(ctx, rev.ID, admin)
		if i < 3 {
			require.NoError(t, err)
			assert.Equal(t, wantStages[i], got.Stage)
			assert.Equal(t, revision.StatusInProgress, got.Status)
			continue
		}
		assert.ErrorIs(t, err, revision.ErrInvalidState)
	}
	rev, err := svc.Get(ctx, rev.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, revision.StageFinalApproval, rev.Stage)

	_, err = svc.Approve(ctx, rev.ID, faculty)
	assert.ErrorIs(t, err, revision.ErrDenied)
	assert.Empty(t, mailer.sent())

	rev, err = svc.Approve(ctx, rev.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, revision.StatusApproved, rev.Status)
	assert.Equal(t, revision.StageImplementation, rev.Stage)
	require.Len(t, mailer.sent(), 1)
	assert.Equal(t, "committee@test.cd", mailer.sent()[0].To[0].Address)

	// Implementation is terminal
	_, err = svc.AdvanceStage(ctx, rev.ID, admin)
	assert.ErrorIs(t, err, revision.ErrInvalidTransition)
	_, err = svc.Approve(ctx, rev.ID, admin)
	assert.ErrorIs(t, err, revision.ErrInvalidState)
	_, err = svc.Reject(ctx, rev.ID, admin)
	assert.ErrorIs(t, err, revision.ErrInvalidState)

	rev, err = svc.Complete(ctx, rev.ID, faculty)
	require.NoError(t, err)
	assert.Equal(t, revision.StatusCompleted, rev.Status)
	assert.Len(t, mailer.sent(), 2)

	_, err = svc.Complete(ctx, rev.ID, admin)
	assert.ErrorIs(t, err, revision.ErrInvalidState)

	actions := make([]string, 0, len(rev.History))
	for _, tr := range rev.History {
		actions = append(actions, tr.Action)
	}
	assert.Equal(t, []string{
		revision.OpInitiate, revision.OpAdvance, revision.OpAdvance, revision.OpAdvance, revision.OpApprove, revision.OpComplete,
	}, actions)
}

func TestService_AdvanceStage_implementationLeavesRequestUnchanged(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)
	rev := advanceTo(t, svc, initiate(t, svc), revision.StageFinalApproval)
	rev, err := svc.Approve(ctx, rev.ID, principal)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.AdvanceStage(ctx, rev.ID, admin)
		assert.ErrorIs(t, err, revision.ErrInvalidTransition)
	}
	got, err := svc.Get(ctx, rev.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, rev, got)
}

func TestService_Approve_onlyAtFinalApproval(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)

	for _, stage := range []revision.Stage{revision.StageGapAnalysis, revision.StageFacultyReview, revision.StageCommitteeReview} {
		t.Run(string(stage), func(t *testing.T) {
			rev := advanceTo(t, svc, initiate(t, svc), stage)
			_, err := svc.Approve(ctx, rev.ID, admin)
			assert.ErrorIs(t, err, revision.ErrInvalidState)

			got, err := svc.Get(ctx, rev.ID, admin)
			require.NoError(t, err)
			assert.Equal(t, rev, got)
		})
	}
}

func TestService_Reject(t *testing.T) {
	ctx := context.Background()

	for _, stage := range []revision.Stage{
		revision.StageGapAnalysis, revision.StageFacultyReview, revision.StageCommitteeReview, revision.StageFinalApproval,
	} {
		t.Run(string(stage), func(t *testing.T) {
			svc, _, mailer := setup(t)
			rev := advanceTo(t, svc, initiate(t, svc), stage)

			rev, err := svc.Reject(ctx, rev.ID, hod)
			require.NoError(t, err)
			assert.Equal(t, revision.StatusRejected, rev.Status)
			assert.Equal(t, stage, rev.Stage)
			assert.Len(t, mailer.sent(), 1)

			// rejection is absorbing
			_, err = svc.AdvanceStage(ctx, rev.ID, admin)
			assert.ErrorIs(t, err, revision.ErrInvalidState)
			_, err = svc.Approve(ctx, rev.ID, admin)
			assert.ErrorIs(t, err, revision.ErrInvalidState)
			_, err = svc.Reject(ctx, rev.ID, admin)
			assert.ErrorIs(t, err, revision.ErrInvalidState)
			_, err = svc.Complete(ctx, rev.ID, admin)
			assert.ErrorIs(t, err, revision.ErrInvalidState)

			got, err := svc.Get(ctx, rev.ID, admin)
			require.NoError(t, err)
			assert.Equal(t, rev, got)
		})
	}
}

func TestService_permissionsCheckedFirst(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)

	tests := []struct {
		name string
		op   func(id string, actor revision.Actor) (revision.Revision, error)
	}{
		{name: "advance", op: func(id string, a revision.Actor) (revision.Revision, error) { return svc.AdvanceStage(ctx, id, a) }},
		{name: "approve", op: func(id string, a revision.Actor) (revision.Revision, error) { return svc.Approve(ctx, id, a) }},
		{name: "reject", op: func(id string, a revision.Actor) (revision.Revision, error) { return svc.Reject(ctx, id, a) }},
		{name: "complete", op: func(id string, a revision.Actor) (revision.Revision, error) { return svc.Complete(ctx, id, a) }},
		{name: "get", op: func(id string, a revision.Actor) (revision.Revision, error) { return svc.Get(ctx, id, a) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.op("unknown", student)
			assert.ErrorIs(t, err, revision.ErrDenied)
			_, err = tt.op("unknown", admin)
			assert.ErrorIs(t, err, revision.ErrNotFound)
		})
	}
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)
	first := initiate(t, svc)
	nr := newRevision()
	nr.Title = "Update labs"
	nr.Program = "B.Sc Physics"
	nr.Priority = revision.PriorityLow
	second, err := svc.Initiate(ctx, nr, faculty)
	require.NoError(t, err)

	t.Run("no view permission", func(t *testing.T) {
		for _, actor := range []revision.Actor{student, parent, {Role: "janitor"}} {
			revs, err := svc.Query(ctx, actor, nil, nil)
			require.NoError(t, err)
			assert.NotNil(t, revs)
			assert.Empty(t, revs)
		}
	})

	t.Run("all in creation order", func(t *testing.T) {
		revs, err := svc.Query(ctx, hod, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []revision.Revision{first, second}, revs)
	})

	t.Run("filter is cleaned", func(t *testing.T) {
		revs, err := svc.Query(ctx, admin, &revision.QueryFilter{Priorities: []revision.Priority{" low"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, []revision.Revision{second}, revs)
	})

	t.Run("ordering", func(t *testing.T) {
		// priority ranks Low < Medium < High
		revs, err := svc.Query(ctx, admin, nil, core.ParseOrdering("-priority", revision.OrderingFields...))
		require.NoError(t, err)
		assert.Equal(t, []revision.Revision{first, second}, revs)

		revs, err = svc.Query(ctx, admin, nil, core.ParseOrdering("priority", revision.OrderingFields...))
		require.NoError(t, err)
		assert.Equal(t, []revision.Revision{second, first}, revs)

		revs, err = svc.Query(ctx, admin, nil, core.ParseOrdering("-title", revision.OrderingFields...))
		require.NoError(t, err)
		assert.Equal(t, []revision.Revision{second, first}, revs)
	})
}

func TestService_concurrentAdvances(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)
	rev := initiate(t, svc)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var okCount int
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AdvanceStage(ctx, rev.ID, admin); err == nil {
				mu.Lock()
				okCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := svc.Get(ctx, rev.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, 3, okCount)
	assert.Equal(t, revision.StageFinalApproval, got.Stage)
	assert.Len(t, got.History, 4)
}

func TestService_noCommitteeEmail(t *testing.T) {
	db, _ := inmemdb.Open()
	mailer := new(mailRecorder)
	conf := core.NewTestConfig()
	conf.SetCommitteeEmail("")
	svc := revision.NewService(inmemdb.NewRevisionRepository(db), access.NewDefaultPolicy(), mailer, nil, conf)

	rev, err := svc.Initiate(context.Background(), newRevision(), admin)
	require.NoError(t, err)
	_, err = svc.Reject(context.Background(), rev.ID, admin)
	require.NoError(t, err)
	assert.Empty(t, mailer.sent())
}
