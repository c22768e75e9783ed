package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/access"
	"github.com/trezcool/masomo-curriculum/core/revision"
)

const (
	revisionColumns = "id, seq, title, program, description, stage, status, priority, due_date, " +
		"requested_by, requester_role, created_at, updated_at"
	insertColumns = "id, title, program, description, stage, status, priority, due_date, " +
		"requested_by, requester_role, created_at, updated_at"
	transitionColumns = "revision_id, position, action, from_stage, to_stage, from_status, to_status, role, actor, at"
)

// ordering fields -> SQL expressions
var orderingColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"due_date":   "due_date",
	"priority":   "CASE priority WHEN 'High' THEN 3 WHEN 'Medium' THEN 2 WHEN 'Low' THEN 1 ELSE 0 END",
	"title":      "LOWER(title)",
	"program":    "LOWER(program)",
	"stage": "CASE stage WHEN 'Gap Analysis' THEN 0 WHEN 'Faculty Review' THEN 1 WHEN 'Committee Review' THEN 2 " +
		"WHEN 'Final Approval' THEN 3 WHEN 'Implementation' THEN 4 ELSE 5 END",
	"status": "status",
}

type (
	revisionRow struct {
		ID            string    `db:"id"`
		Seq           int64     `db:"seq"`
		Title         string    `db:"title"`
		Program       string    `db:"program"`
		Description   string    `db:"description"`
		Stage         string    `db:"stage"`
		Status        string    `db:"status"`
		Priority      string    `db:"priority"`
		DueDate       time.Time `db:"due_date"`
		RequestedBy   string    `db:"requested_by"`
		RequesterRole string    `db:"requester_role"`
		CreatedAt     time.Time `db:"created_at"`
		UpdatedAt     time.Time `db:"updated_at"`
	}

	transitionRow struct {
		RevisionID string    `db:"revision_id"`
		Position   int       `db:"position"`
		Action     string    `db:"action"`
		FromStage  string    `db:"from_stage"`
		ToStage    string    `db:"to_stage"`
		FromStatus string    `db:"from_status"`
		ToStatus   string    `db:"to_status"`
		Role       string    `db:"role"`
		Actor      string    `db:"actor"`
		At         time.Time `db:"at"`
	}

	revisionRepository struct {
		db *sqlx.DB
	}
)

var _ revision.Repository = (*revisionRepository)(nil) // interface compliance check

// NewRevisionRepository returns a Repository backed by db (postgres or sqlite). The schema must be migrated.
func NewRevisionRepository(db *sqlx.DB) revision.Repository {
	return &revisionRepository{db: db}
}

func (row revisionRow) revision(history []revision.Transition) revision.Revision {
	if history == nil {
		history = []revision.Transition{}
	}
	return revision.Revision{
		ID:            row.ID,
		Title:         row.Title,
		Program:       row.Program,
		Description:   row.Description,
		Stage:         revision.Stage(row.Stage),
		Status:        revision.Status(row.Status),
		Priority:      revision.Priority(row.Priority),
		DueDate:       row.DueDate.UTC(),
		RequestedBy:   row.RequestedBy,
		RequesterRole: access.Role(row.RequesterRole),
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
		History:       history,
	}
}

func (row transitionRow) transition() revision.Transition {
	return revision.Transition{
		Action:     row.Action,
		FromStage:  revision.Stage(row.FromStage),
		ToStage:    revision.Stage(row.ToStage),
		FromStatus: revision.Status(row.FromStatus),
		ToStatus:   revision.Status(row.ToStatus),
		Role:       access.Role(row.Role),
		Actor:      row.Actor,
		At:         row.At.UTC(),
	}
}

func newTransitionRow(revID string, position int, tr revision.Transition) transitionRow {
	return transitionRow{
		RevisionID: revID,
		Position:   position,
		Action:     tr.Action,
		FromStage:  string(tr.FromStage),
		ToStage:    string(tr.ToStage),
		FromStatus: string(tr.FromStatus),
		ToStatus:   string(tr.ToStatus),
		Role:       string(tr.Role),
		Actor:      tr.Actor,
		At:         tr.At.UTC(),
	}
}

// trapNoRowsErr maps "no rows" err to revision.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return revision.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// inTx runs fn in a transaction, every statement of fn must use tx.
func (repo *revisionRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func insertTransition(ctx context.Context, tx *sqlx.Tx, row transitionRow) error {
	q := "INSERT INTO revision_transition (" + transitionColumns + ") VALUES " +
		"(:revision_id, :position, :action, :from_stage, :to_stage, :from_status, :to_status, :role, :actor, :at)"
	_, err := tx.NamedExecContext(ctx, q, row)
	return errors.Wrap(err, "inserting transition")
}

func (repo *revisionRepository) CreateRevision(ctx context.Context, rev revision.Revision) (revision.Revision, error) {
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		row := revisionRow{
			ID:            rev.ID,
			Title:         rev.Title,
			Program:       rev.Program,
			Description:   rev.Description,
			Stage:         string(rev.Stage),
			Status:        string(rev.Status),
			Priority:      string(rev.Priority),
			DueDate:       rev.DueDate.UTC(),
			RequestedBy:   rev.RequestedBy,
			RequesterRole: string(rev.RequesterRole),
			CreatedAt:     rev.CreatedAt.UTC(),
			UpdatedAt:     rev.UpdatedAt.UTC(),
		}
		// seq is assigned by the database
		q := "INSERT INTO revision_request (" + insertColumns + ") VALUES " +
			"(:id, :title, :program, :description, :stage, :status, :priority, :due_date, " +
			":requested_by, :requester_role, :created_at, :updated_at)"
		if _, err := tx.NamedExecContext(ctx, q, row); err != nil {
			return errors.Wrap(err, "inserting revision")
		}

		for i, tr := range rev.History {
			if err := insertTransition(ctx, tx, newTransitionRow(rev.ID, i, tr)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return revision.Revision{}, err
	}
	return repo.GetRevision(ctx, rev.ID)
}

func getRevision(ctx context.Context, q sqlx.QueryerContext, id string) (revision.Revision, error) {
	var row revisionRow
	query := sqlx.Rebind(sqlx.BindType(driverName(q)), "SELECT "+revisionColumns+" FROM revision_request WHERE id = ?")
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		return revision.Revision{}, trapNoRowsErr(err, "finding revision by ID")
	}
	histories, err := getHistories(ctx, q, row.ID)
	if err != nil {
		return revision.Revision{}, err
	}
	return row.revision(histories[row.ID]), nil
}

// getHistories returns the transitions of the given revisions, by revision ID and in position order.
func getHistories(ctx context.Context, q sqlx.QueryerContext, ids ...string) (map[string][]revision.Transition, error) {
	histories := make(map[string][]revision.Transition, len(ids))
	if len(ids) == 0 {
		return histories, nil
	}

	query, args, err := sqlx.In(
		"SELECT "+transitionColumns+" FROM revision_transition WHERE revision_id IN (?) ORDER BY revision_id, position", ids)
	if err != nil {
		return nil, errors.Wrap(err, "building history query")
	}
	var rows []transitionRow
	if err = sqlx.SelectContext(ctx, q, &rows, sqlx.Rebind(sqlx.BindType(driverName(q)), query), args...); err != nil {
		return nil, errors.Wrap(err, "querying history")
	}
	for _, row := range rows {
		histories[row.RevisionID] = append(histories[row.RevisionID], row.transition())
	}
	return histories, nil
}

func driverName(q sqlx.QueryerContext) string {
	switch db := q.(type) {
	case *sqlx.DB:
		return db.DriverName()
	case *sqlx.Tx:
		return db.DriverName()
	}
	return ""
}

func (repo *revisionRepository) GetRevision(ctx context.Context, id string) (revision.Revision, error) {
	return getRevision(ctx, repo.db, id)
}

func (repo *revisionRepository) UpdateRevision(ctx context.Context, rev revision.Revision, tr revision.Transition) (revision.Revision, error) {
	var updated revision.Revision
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			tx.Rebind("UPDATE revision_request SET stage = ?, status = ?, updated_at = ? WHERE id = ?"),
			string(rev.Stage), string(rev.Status), rev.UpdatedAt.UTC(), rev.ID)
		if err != nil {
			return errors.Wrap(err, "updating revision")
		}
		if n, err := res.RowsAffected(); err != nil {
			return errors.Wrap(err, "updating revision")
		} else if n == 0 {
			return revision.ErrNotFound
		}

		var position int
		if err = tx.GetContext(ctx, &position,
			tx.Rebind("SELECT COUNT(*) FROM revision_transition WHERE revision_id = ?"), rev.ID); err != nil {
			return errors.Wrap(err, "counting transitions")
		}
		if err = insertTransition(ctx, tx, newTransitionRow(rev.ID, position, tr)); err != nil {
			return err
		}

		updated, err = getRevision(ctx, tx, rev.ID)
		return err
	})
	if err != nil {
		return revision.Revision{}, err
	}
	return updated, nil
}

func (repo *revisionRepository) QueryRevisions(ctx context.Context, filter *revision.QueryFilter, ordering []core.DBOrdering) ([]revision.Revision, error) {
	var where []string
	var args []interface{}

	if filter != nil {
		// revisions with Title, Program or Description matching the search keyword
		if filter.Search != "" {
			val := "%" + strings.ToLower(filter.Search) + "%"
			where = append(where, "(LOWER(title) LIKE ? OR LOWER(program) LIKE ? OR LOWER(description) LIKE ?)")
			args = append(args, val, val, val)
		}
		if filter.Program != "" {
			where = append(where, "LOWER(program) = ?")
			args = append(args, strings.ToLower(filter.Program))
		}
		if len(filter.Stages) > 0 {
			where = append(where, "stage IN (?)")
			args = append(args, stringsOf(filter.Stages))
		}
		if len(filter.Statuses) > 0 {
			where = append(where, "status IN (?)")
			args = append(args, stringsOf(filter.Statuses))
		}
		if len(filter.Priorities) > 0 {
			where = append(where, "priority IN (?)")
			args = append(args, stringsOf(filter.Priorities))
		}
		if !filter.DueFrom.IsZero() {
			where = append(where, "due_date >= ?")
			args = append(args, filter.DueFrom.UTC())
		}
		if !filter.DueTo.IsZero() {
			where = append(where, "due_date <= ?")
			args = append(args, filter.DueTo.UTC())
		}
	}

	query := "SELECT " + revisionColumns + " FROM revision_request"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := orderingColumns[ord.Field]; ok {
			orderList = append(orderList, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	orderList = append(orderList, "seq ASC") // creation order breaks ties
	query += " ORDER BY " + strings.Join(orderList, ", ")

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building revision query")
	}

	var rows []revisionRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying revisions")
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	histories, err := getHistories(ctx, repo.db, ids...)
	if err != nil {
		return nil, err
	}

	revs := make([]revision.Revision, 0, len(rows))
	for _, row := range rows {
		revs = append(revs, row.revision(histories[row.ID]))
	}
	return revs, nil
}

func stringsOf[T ~string](vals []T) []string {
	strs := make([]string, 0, len(vals))
	for _, v := range vals {
		strs = append(strs, string(v))
	}
	return strs
}
