// Package revision is the curriculum revision workflow.
//
// A Revision moves through five ordered stages:
//
//	Gap Analysis -> Faculty Review -> Committee Review -> Final Approval -> Implementation
//
// AdvanceStage walks the pipeline up to Final Approval; only Approve moves a revision from
// Final Approval to Implementation. Reject is allowed from any open stage and is absorbing.
// Every operation is authorized against the "revision-workflow" feature of the access policy.
package revision

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/access"
)

var (
	// errors
	ErrDenied            = errors.New("permission denied")
	ErrNotFound          = errors.New("revision not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidTransition = errors.New("invalid transition")
)

// Operation names, as recorded in Transition.Action.
const (
	OpInitiate = "initiate"
	OpAdvance  = "advance"
	OpApprove  = "approve"
	OpReject   = "reject"
	OpComplete = "complete"
)

var nowFunc = time.Now // mockable

// now is the current UTC time at the precision every store keeps.
func now() time.Time {
	return nowFunc().UTC().Truncate(time.Microsecond)
}

type (
	// Authorizer answers access policy questions. *access.Policy implements it.
	Authorizer interface {
		IsAllowed(feature access.Feature, action access.Action, role access.Role) bool
	}

	Service interface {
		Initiate(ctx context.Context, nr NewRevision, actor Actor) (Revision, error)
		AdvanceStage(ctx context.Context, id string, actor Actor) (Revision, error)
		Approve(ctx context.Context, id string, actor Actor) (Revision, error)
		Reject(ctx context.Context, id string, actor Actor) (Revision, error)
		Complete(ctx context.Context, id string, actor Actor) (Revision, error)
		Get(ctx context.Context, id string, actor Actor) (Revision, error)
		// Query returns an empty slice, not an error, when the actor may not view revisions.
		Query(ctx context.Context, actor Actor, filter *QueryFilter, ordering []core.DBOrdering) ([]Revision, error)
	}

	service struct {
		repo    Repository
		authz   Authorizer
		mailSvc core.EmailService
		logger  core.Logger
		conf    *core.Config

		// serialises every mutation of the revision set
		mu sync.Mutex
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, authz Authorizer, mailSvc core.EmailService, logger core.Logger, conf *core.Config) Service {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &service{
		repo:    repo,
		authz:   authz,
		mailSvc: mailSvc,
		logger:  logger,
		conf:    conf,
	}
}

func (svc *service) authorize(action access.Action, actor Actor) error {
	if svc.authz == nil || !svc.authz.IsAllowed(access.FeatureRevisionWorkflow, action, actor.Role) {
		return ErrDenied
	}
	return nil
}

func (svc *service) Initiate(ctx context.Context, nr NewRevision, actor Actor) (Revision, error) {
	if err := svc.authorize(access.ActionCreate, actor); err != nil {
		return Revision{}, err
	}
	if err := nr.Validate(); err != nil {
		return Revision{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	tstamp := now()
	rev := Revision{
		ID:            uuid.New().String(),
		Title:         nr.Title,
		Program:       nr.Program,
		Description:   nr.Description,
		Stage:         StageGapAnalysis,
		Status:        StatusInProgress,
		Priority:      nr.Priority,
		DueDate:       nr.DueDate,
		RequestedBy:   actor.Subject,
		RequesterRole: actor.Role,
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
		History: []Transition{{
			Action:   OpInitiate,
			ToStage:  StageGapAnalysis,
			ToStatus: StatusInProgress,
			Role:     actor.Role,
			Actor:    actor.Subject,
			At:       tstamp,
		}},
	}
	rev, err := svc.repo.CreateRevision(ctx, rev)
	if err != nil {
		return Revision{}, errors.Wrap(err, "creating revision")
	}
	svc.logger.Info(fmt.Sprintf("revision %s initiated", rev.ID), map[string]interface{}{"title": rev.Title, "role": actor.Role})
	return rev, nil
}

// transition runs apply on the stored revision under the service lock and saves the result.
// apply must only change Stage and Status.
func (svc *service) transition(ctx context.Context, id string, actor Actor, action access.Action, op string, apply func(rev *Revision) error) (Revision, error) {
	if err := svc.authorize(action, actor); err != nil {
		return Revision{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	rev, err := svc.repo.GetRevision(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Revision{}, ErrNotFound
		}
		return Revision{}, errors.Wrap(err, "getting revision")
	}

	orig := rev
	if err := apply(&rev); err != nil {
		return Revision{}, err
	}

	tstamp := now()
	rev.UpdatedAt = tstamp
	tr := Transition{
		Action:     op,
		FromStage:  orig.Stage,
		ToStage:    rev.Stage,
		FromStatus: orig.Status,
		ToStatus:   rev.Status,
		Role:       actor.Role,
		Actor:      actor.Subject,
		At:         tstamp,
	}
	rev, err = svc.repo.UpdateRevision(ctx, rev, tr)
	if err != nil {
		return Revision{}, errors.Wrapf(err, "updating revision (%s)", op)
	}
	svc.logger.Info(fmt.Sprintf("revision %s: %s", rev.ID, op), map[string]interface{}{
		"stage": rev.Stage, "status": rev.Status, "role": actor.Role,
	})
	return rev, nil
}

func (svc *service) AdvanceStage(ctx context.Context, id string, actor Actor) (Revision, error) {
	return svc.transition(ctx, id, actor, access.ActionEdit, OpAdvance, func(rev *Revision) error {
		if rev.Stage.IsTerminal() {
			return errors.Wrapf(ErrInvalidTransition, "revision is already at %s", rev.Stage)
		}
		if rev.Status.IsTerminal() {
			return errors.Wrapf(ErrInvalidState, "revision is %s", strings.ToLower(string(rev.Status)))
		}
		if rev.Stage == StageFinalApproval {
			return errors.Wrapf(ErrInvalidState, "revision at %s must be approved", rev.Stage)
		}
		next, ok := rev.Stage.Next()
		if !ok {
			return errors.Wrapf(ErrInvalidTransition, "no stage after %q", rev.Stage)
		}
		rev.Stage = next
		return nil
	})
}

func (svc *service) Approve(ctx context.Context, id string, actor Actor) (Revision, error) {
	rev, err := svc.transition(ctx, id, actor, access.ActionApprove, OpApprove, func(rev *Revision) error {
		if rev.Stage != StageFinalApproval {
			return errors.Wrapf(ErrInvalidState, "cannot approve at %s", rev.Stage)
		}
		if rev.Status.IsTerminal() {
			return errors.Wrapf(ErrInvalidState, "revision is %s", strings.ToLower(string(rev.Status)))
		}
		rev.Status = StatusApproved
		rev.Stage = StageImplementation
		return nil
	})
	if err == nil {
		svc.notify(rev, actor)
	}
	return rev, err
}

func (svc *service) Reject(ctx context.Context, id string, actor Actor) (Revision, error) {
	rev, err := svc.transition(ctx, id, actor, access.ActionEdit, OpReject, func(rev *Revision) error {
		if !rev.IsOpen() || rev.Stage.IsTerminal() {
			return errors.Wrapf(ErrInvalidState, "cannot reject a %s revision at %s", strings.ToLower(string(rev.Status)), rev.Stage)
		}
		rev.Status = StatusRejected
		return nil
	})
	if err == nil {
		svc.notify(rev, actor)
	}
	return rev, err
}

func (svc *service) Complete(ctx context.Context, id string, actor Actor) (Revision, error) {
	rev, err := svc.transition(ctx, id, actor, access.ActionEdit, OpComplete, func(rev *Revision) error {
		if rev.Stage != StageImplementation || rev.Status != StatusApproved {
			return errors.Wrapf(ErrInvalidState, "only approved revisions in %s can be completed", StageImplementation)
		}
		rev.Status = StatusCompleted
		return nil
	})
	if err == nil {
		svc.notify(rev, actor)
	}
	return rev, err
}

func (svc *service) Get(ctx context.Context, id string, actor Actor) (Revision, error) {
	if err := svc.authorize(access.ActionView, actor); err != nil {
		return Revision{}, err
	}
	rev, err := svc.repo.GetRevision(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Revision{}, ErrNotFound
		}
		return Revision{}, errors.Wrap(err, "getting revision")
	}
	return rev, nil
}

func (svc *service) Query(ctx context.Context, actor Actor, filter *QueryFilter, ordering []core.DBOrdering) ([]Revision, error) {
	if err := svc.authorize(access.ActionView, actor); err != nil {
		return []Revision{}, nil
	}
	if filter != nil {
		filter.Clean()
	}
	revs, err := svc.repo.QueryRevisions(ctx, filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying revisions")
	}
	if revs == nil {
		revs = []Revision{}
	}
	return revs, nil
}

// notify tells the curriculum committee about a decision. Sending never affects the operation.
func (svc *service) notify(rev Revision, actor Actor) {
	if svc.mailSvc == nil || svc.conf == nil {
		return
	}
	to, ok := svc.conf.CommitteeEmail()
	if !ok {
		return
	}

	var body strings.Builder
	_, _ = fmt.Fprintf(&body, "Revision: %s\n", rev.Title)
	_, _ = fmt.Fprintf(&body, "Program: %s\n", rev.Program)
	_, _ = fmt.Fprintf(&body, "Stage: %s\n", rev.Stage)
	_, _ = fmt.Fprintf(&body, "Status: %s\n", rev.Status)
	_, _ = fmt.Fprintf(&body, "Priority: %s\n", rev.Priority)
	_, _ = fmt.Fprintf(&body, "Due: %s\n", rev.DueDate.Format("2006-01-02"))
	_, _ = fmt.Fprintf(&body, "By: %s (%s)\n", actor.Subject, actor.Role)

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{to},
		Subject: fmt.Sprintf("Revision %s: %s", strings.ToLower(string(rev.Status)), rev.Title),
		Body:    body.String(),
	})
}
