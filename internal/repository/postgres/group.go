package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/errwatch/issue-lifecycle-service/internal/apperrors"
	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/errwatch/issue-lifecycle-service/internal/search"
	"github.com/jmoiron/sqlx"
)

var groupColumns = []string{
	"id", "project_id", "status", "times_seen", "users_seen",
	"first_seen", "last_seen", "resolved_at", "is_public", "share_id",
	"message", "culprit", "data",
}

// hiddenStatuses are excluded from query-based selection: these groups are
// either being destroyed or waiting for a merge worker to absorb them.
var hiddenStatuses = []domain.GroupStatus{
	domain.StatusPendingDeletion,
	domain.StatusDeletionInProgress,
	domain.StatusPendingMerge,
}

type GroupRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewGroupRepository(db *sqlx.DB, log *slog.Logger) *GroupRepository {
	return &GroupRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *GroupRepository) GetGroupByID(ctx context.Context, groupID int64) (*domain.Group, error) {
	const op = "internal.repository.postgres.GetGroupByID"

	query, args, err := r.sq.Select(groupColumns...).
		From("groups").
		Where(sq.Eq{"id": groupID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var group domain.Group
	if err := r.db.GetContext(ctx, &group, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: group with id '%d'", op, apperrors.ErrNotFound, groupID)
		}

		return nil, fmt.Errorf("%s: failed to get group: %w", op, err)
	}

	return &group, nil
}

func (r *GroupRepository) GetGroupsByIDs(ctx context.Context, groupIDs []int64) ([]domain.Group, error) {
	const op = "internal.repository.postgres.GetGroupsByIDs"

	if len(groupIDs) == 0 {
		return []domain.Group{}, nil
	}

	query, args, err := r.sq.Select(groupColumns...).
		From("groups").
		Where(sq.Eq{"id": groupIDs}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var groups []domain.Group
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to select groups: %w", op, err)
	}

	// preserve the caller's ordering
	byID := make(map[int64]domain.Group, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}

	ordered := make([]domain.Group, 0, len(groups))
	for _, id := range groupIDs {
		if g, ok := byID[id]; ok {
			ordered = append(ordered, g)
		}
	}

	return ordered, nil
}

func (r *GroupRepository) FindGroupIDs(ctx context.Context, projectIDs []int64, q *search.Query, sort search.Sort, limit int) ([]int64, error) {
	const op = "internal.repository.postgres.FindGroupIDs"

	builder := r.sq.Select("id").
		From("groups").
		Where(sq.Eq{"project_id": projectIDs}).
		Where(sq.NotEq{"status": hiddenStatuses}).
		Limit(uint64(limit))

	if q.Status != nil {
		builder = builder.Where(sq.Eq{"status": *q.Status})
	}

	if q.TimesSeen != nil {
		builder = builder.Where(numericPredicate("times_seen", q.TimesSeen))
	}

	if q.UsersSeen != nil {
		builder = builder.Where(numericPredicate("users_seen", q.UsersSeen))
	}

	for _, term := range q.Terms {
		builder = builder.Where(sq.ILike{"message": "%" + term + "%"})
	}

	switch sort {
	case search.SortNew:
		builder = builder.OrderBy("first_seen DESC", "id DESC")
	case search.SortFreq:
		builder = builder.OrderBy("times_seen DESC", "id DESC")
	default:
		builder = builder.OrderBy("last_seen DESC", "id DESC")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to select group ids: %w", op, err)
	}

	return ids, nil
}

func numericPredicate(column string, f *search.NumericFilter) sq.Sqlizer {
	switch f.Op {
	case search.OpGt:
		return sq.Gt{column: f.Value}
	case search.OpLt:
		return sq.Lt{column: f.Value}
	default:
		return sq.Eq{column: f.Value}
	}
}

func (r *GroupRepository) GetGroupWithLock(ctx context.Context, tx *sqlx.Tx, groupID int64) (*domain.Group, error) {
	const op = "internal.repository.postgres.GetGroupWithLock"

	query, args, err := r.sq.Select(groupColumns...).
		From("groups").
		Where(sq.Eq{"id": groupID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var group domain.Group
	if err := tx.GetContext(ctx, &group, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: group with id '%d'", op, apperrors.ErrNotFound, groupID)
		}

		return nil, fmt.Errorf("%s: failed to get group with lock: %w", op, err)
	}

	return &group, nil
}

func (r *GroupRepository) UpdateGroupStatus(ctx context.Context, tx *sqlx.Tx, groupID int64, status domain.GroupStatus, resolvedAt *time.Time) error {
	const op = "internal.repository.postgres.UpdateGroupStatus"

	query, args, err := r.sq.Update("groups").
		Set("status", status).
		Set("resolved_at", resolvedAt).
		Where(sq.Eq{"id": groupID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}

	if rowsAffected, err := res.RowsAffected(); err == nil && rowsAffected == 0 {
		return fmt.Errorf("%s: %w: group with id '%d'", op, apperrors.ErrNotFound, groupID)
	}

	return nil
}

func (r *GroupRepository) SetGroupShare(ctx context.Context, tx *sqlx.Tx, groupID int64, isPublic bool, shareID *string) error {
	const op = "internal.repository.postgres.SetGroupShare"

	query, args, err := r.sq.Update("groups").
		Set("is_public", isPublic).
		Set("share_id", shareID).
		Where(sq.Eq{"id": groupID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}

	if rowsAffected, err := res.RowsAffected(); err == nil && rowsAffected == 0 {
		return fmt.Errorf("%s: %w: group with id '%d'", op, apperrors.ErrNotFound, groupID)
	}

	return nil
}

func (r *GroupRepository) AccumulateCounters(ctx context.Context, tx *sqlx.Tx, survivorID int64, timesSeen, usersSeen int, firstSeen, lastSeen time.Time) error {
	const op = "internal.repository.postgres.AccumulateCounters"

	query, args, err := r.sq.Update("groups").
		Set("times_seen", sq.Expr("times_seen + ?", timesSeen)).
		Set("users_seen", sq.Expr("users_seen + ?", usersSeen)).
		Set("first_seen", sq.Expr("LEAST(first_seen, ?)", firstSeen)).
		Set("last_seen", sq.Expr("GREATEST(last_seen, ?)", lastSeen)).
		Where(sq.Eq{"id": survivorID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}

	return nil
}

func (r *GroupRepository) DeleteGroup(ctx context.Context, tx *sqlx.Tx, groupID int64) error {
	const op = "internal.repository.postgres.DeleteGroup"

	query, args, err := r.sq.Delete("groups").
		Where(sq.Eq{"id": groupID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build delete query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute delete: %w", op, err)
	}

	return nil
}
