package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/revision"
)

type revisionApi struct {
	svc revision.Service
}

func registerRevisionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc revision.Service) {
	api := revisionApi{svc: svc}

	rg := g.Group("/revisions", jwt)
	rg.POST("", api.create)
	rg.GET("", api.query)

	// detail endpoints
	dg := rg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.POST("/advance", api.transition(svc.AdvanceStage))
	dg.POST("/approve", api.transition(svc.Approve))
	dg.POST("/reject", api.transition(svc.Reject))
	dg.POST("/complete", api.transition(svc.Complete))
}

type (
	CreateRevisionRequest struct {
		Title       string `json:"title"`
		Program     string `json:"program"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
		DueDate     string `json:"due_date"` // 2006-01-02 or RFC 3339
	}

	RevisionQueryRequest struct {
		Search     string   `query:"search"`
		Program    string   `query:"program"`
		Stages     []string `query:"stage"`
		Statuses   []string `query:"status"`
		Priorities []string `query:"priority"`
		DueFrom    string   `query:"due_from"`
		DueTo      string   `query:"due_to"`
	}
)

func (cr CreateRevisionRequest) newRevision() (revision.NewRevision, error) {
	nr := revision.NewRevision{
		Title:       cr.Title,
		Program:     cr.Program,
		Description: cr.Description,
		Priority:    revision.Priority(cr.Priority),
	}
	if core.CleanString(cr.DueDate) != "" {
		due, err := revision.ParseDueDate(cr.DueDate)
		if err != nil {
			return revision.NewRevision{}, err
		}
		nr.DueDate = due
	}
	return nr, nil
}

func (qr RevisionQueryRequest) filter() (*revision.QueryFilter, error) {
	qf := &revision.QueryFilter{
		Search:  qr.Search,
		Program: qr.Program,
	}
	for _, s := range qr.Stages {
		qf.Stages = append(qf.Stages, revision.ParseStage(s))
	}
	for _, s := range qr.Statuses {
		qf.Statuses = append(qf.Statuses, revision.ParseStatus(s))
	}
	for _, p := range qr.Priorities {
		qf.Priorities = append(qf.Priorities, revision.ParsePriority(p))
	}
	if qr.DueFrom != "" {
		t, err := revision.ParseDueDate(qr.DueFrom)
		if err != nil {
			return nil, core.NewValidationError(err, core.FieldError{Field: "due_from", Error: "invalid date"})
		}
		qf.DueFrom = t
	}
	if qr.DueTo != "" {
		t, err := revision.ParseDueDate(qr.DueTo)
		if err != nil {
			return nil, core.NewValidationError(err, core.FieldError{Field: "due_to", Error: "invalid date"})
		}
		qf.DueTo = t
	}
	return qf, nil
}

// Handlers

func (api *revisionApi) create(ctx echo.Context) error {
	var data CreateRevisionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CreateRevisionRequest")
	}
	nr, err := data.newRevision()
	if err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	rev, err := api.svc.Initiate(ctx.Request().Context(), nr, actor)
	if err != nil {
		return errors.Wrap(err, "initiating revision")
	}
	return ctx.JSON(http.StatusCreated, rev)
}

func (api *revisionApi) query(ctx echo.Context) error {
	var data RevisionQueryRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RevisionQueryRequest")
	}
	filter, err := data.filter()
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, revision.OrderingFields...)

	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	revs, err := api.svc.Query(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying revisions")
	}
	return ctx.JSON(http.StatusOK, revs)
}

func (api *revisionApi) retrieve(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	rev, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"), actor)
	if err != nil {
		return errors.Wrap(err, "getting revision")
	}
	return ctx.JSON(http.StatusOK, rev)
}

type transitionFunc func(ctx context.Context, id string, actor revision.Actor) (revision.Revision, error)

func (api *revisionApi) transition(fn transitionFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := getContextActor(ctx)
		if err != nil {
			return err
		}
		rev, err := fn(ctx.Request().Context(), ctx.Param("id"), actor)
		if err != nil {
			return err // state errors are already described
		}
		return ctx.JSON(http.StatusOK, rev)
	}
}
