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
	"github.com/jmoiron/sqlx"
)

type RecordRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewRecordRepository(db *sqlx.DB, log *slog.Logger) *RecordRepository {
	return &RecordRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *RecordRepository) ReplaceResolution(ctx context.Context, tx *sqlx.Tx, res *domain.Resolution) error {
	const op = "internal.repository.postgres.ReplaceResolution"

	if err := r.deleteByGroup(ctx, tx, op, "group_resolutions", res.GroupID); err != nil {
		return err
	}

	query, args, err := r.sq.Insert("group_resolutions").
		Columns("group_id", "release_id", "type", "status", "actor_id", "commit_id").
		Values(res.GroupID, res.ReleaseID, res.Type, res.Status, res.ActorID, res.CommitID).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *RecordRepository) DeleteResolution(ctx context.Context, tx *sqlx.Tx, groupID int64) error {
	const op = "internal.repository.postgres.DeleteResolution"
	return r.deleteByGroup(ctx, tx, op, "group_resolutions", groupID)
}

func (r *RecordRepository) ReplaceSnooze(ctx context.Context, tx *sqlx.Tx, snooze *domain.Snooze) error {
	const op = "internal.repository.postgres.ReplaceSnooze"

	if err := r.deleteByGroup(ctx, tx, op, "group_snoozes", snooze.GroupID); err != nil {
		return err
	}

	query, args, err := r.sq.Insert("group_snoozes").
		Columns(
			"group_id", "until_ts", "count", "window_minutes",
			"user_count", "user_window_minutes",
			"baseline_times_seen", "baseline_users_seen", "actor_id",
		).
		Values(
			snooze.GroupID, snooze.Until, snooze.Count, snooze.Window,
			snooze.UserCount, snooze.UserWindow,
			snooze.BaselineTimesSeen, snooze.BaselineUsersSeen, snooze.ActorID,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *RecordRepository) DeleteSnooze(ctx context.Context, tx *sqlx.Tx, groupID int64) error {
	const op = "internal.repository.postgres.DeleteSnooze"
	return r.deleteByGroup(ctx, tx, op, "group_snoozes", groupID)
}

func (r *RecordRepository) GetSnoozesByGroupIDs(ctx context.Context, groupIDs []int64) ([]domain.Snooze, error) {
	const op = "internal.repository.postgres.GetSnoozesByGroupIDs"

	if len(groupIDs) == 0 {
		return []domain.Snooze{}, nil
	}

	query, args, err := r.sq.Select(
		"id", "group_id", "until_ts", "count", "window_minutes",
		"user_count", "user_window_minutes",
		"baseline_times_seen", "baseline_users_seen", "actor_id", "created_at",
	).
		From("group_snoozes").
		Where(sq.Eq{"group_id": groupIDs}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var snoozes []domain.Snooze
	if err := r.db.SelectContext(ctx, &snoozes, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to select snoozes: %w", op, err)
	}

	return snoozes, nil
}

func (r *RecordRepository) CreateActivity(ctx context.Context, tx *sqlx.Tx, activity *domain.Activity) error {
	const op = "internal.repository.postgres.CreateActivity"

	query, args, err := r.sq.Insert("group_activities").
		Columns("group_id", "project_id", "type", "user_id", "data").
		Values(activity.GroupID, activity.ProjectID, activity.Type, activity.UserID, activity.Data).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *RecordRepository) MoveActivities(ctx context.Context, tx *sqlx.Tx, fromGroupID, toGroupID int64) error {
	const op = "internal.repository.postgres.MoveActivities"

	query, args, err := r.sq.Update("group_activities").
		Set("group_id", toGroupID).
		Where(sq.Eq{"group_id": fromGroupID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}

	return nil
}

func (r *RecordRepository) Subscribe(ctx context.Context, tx *sqlx.Tx, groupID, userID int64, reason domain.SubscriptionReason) error {
	const op = "internal.repository.postgres.Subscribe"

	query, args, err := r.sq.Insert("group_subscriptions").
		Columns("group_id", "user_id", "is_active", "reason").
		Values(groupID, userID, true, reason).
		Suffix("ON CONFLICT (group_id, user_id) DO UPDATE SET is_active = TRUE").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *RecordRepository) SetSubscription(ctx context.Context, tx *sqlx.Tx, groupID, userID int64, active bool, reason domain.SubscriptionReason) error {
	const op = "internal.repository.postgres.SetSubscription"

	query, args, err := r.sq.Insert("group_subscriptions").
		Columns("group_id", "user_id", "is_active", "reason").
		Values(groupID, userID, active, reason).
		Suffix("ON CONFLICT (group_id, user_id) DO UPDATE SET is_active = EXCLUDED.is_active, reason = EXCLUDED.reason").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *RecordRepository) GetAssignee(ctx context.Context, tx *sqlx.Tx, groupID int64) (*domain.Assignee, error) {
	const op = "internal.repository.postgres.GetAssignee"

	query, args, err := r.sq.Select("id", "group_id", "user_id", "team_id", "assigned_by", "created_at").
		From("group_assignees").
		Where(sq.Eq{"group_id": groupID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var assignee domain.Assignee
	if err := tx.GetContext(ctx, &assignee, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: assignee for group '%d'", op, apperrors.ErrNotFound, groupID)
		}

		return nil, fmt.Errorf("%s: failed to get assignee: %w", op, err)
	}

	return &assignee, nil
}

func (r *RecordRepository) ReplaceAssignee(ctx context.Context, tx *sqlx.Tx, assignee *domain.Assignee) error {
	const op = "internal.repository.postgres.ReplaceAssignee"

	if err := r.deleteByGroup(ctx, tx, op, "group_assignees", assignee.GroupID); err != nil {
		return err
	}

	query, args, err := r.sq.Insert("group_assignees").
		Columns("group_id", "user_id", "team_id", "assigned_by").
		Values(assignee.GroupID, assignee.UserID, assignee.TeamID, assignee.AssignedBy).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *RecordRepository) ClearAssignee(ctx context.Context, tx *sqlx.Tx, groupID int64) error {
	const op = "internal.repository.postgres.ClearAssignee"
	return r.deleteByGroup(ctx, tx, op, "group_assignees", groupID)
}

func (r *RecordRepository) SetBookmark(ctx context.Context, tx *sqlx.Tx, groupID, userID int64) error {
	const op = "internal.repository.postgres.SetBookmark"

	query, args, err := r.sq.Insert("group_bookmarks").
		Columns("group_id", "user_id").
		Values(groupID, userID).
		Suffix("ON CONFLICT (group_id, user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *RecordRepository) DeleteBookmark(ctx context.Context, tx *sqlx.Tx, groupID, userID int64) error {
	const op = "internal.repository.postgres.DeleteBookmark"

	query, args, err := r.sq.Delete("group_bookmarks").
		Where(sq.Eq{"group_id": groupID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build delete query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute delete: %w", op, err)
	}

	return nil
}

func (r *RecordRepository) UpsertSeen(ctx context.Context, tx *sqlx.Tx, groupID, userID int64, at time.Time) error {
	const op = "internal.repository.postgres.UpsertSeen"

	query, args, err := r.sq.Insert("group_seen").
		Columns("group_id", "user_id", "last_seen").
		Values(groupID, userID, at).
		Suffix("ON CONFLICT (group_id, user_id) DO UPDATE SET last_seen = EXCLUDED.last_seen").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *RecordRepository) DeleteSeen(ctx context.Context, tx *sqlx.Tx, groupID, userID int64) error {
	const op = "internal.repository.postgres.DeleteSeen"

	query, args, err := r.sq.Delete("group_seen").
		Where(sq.Eq{"group_id": groupID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build delete query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute delete: %w", op, err)
	}

	return nil
}

// dependent tables cleared before a group row can be hard-deleted
var groupRecordTables = []string{
	"group_activities",
	"group_subscriptions",
	"group_links",
	"group_resolutions",
	"group_snoozes",
	"group_bookmarks",
	"group_seen",
	"group_assignees",
}

func (r *RecordRepository) DeleteGroupRecords(ctx context.Context, tx *sqlx.Tx, groupID int64) error {
	const op = "internal.repository.postgres.DeleteGroupRecords"

	for _, table := range groupRecordTables {
		if err := r.deleteByGroup(ctx, tx, op, table, groupID); err != nil {
			return err
		}
	}

	return nil
}

func (r *RecordRepository) deleteByGroup(ctx context.Context, tx *sqlx.Tx, op, table string, groupID int64) error {
	query, args, err := r.sq.Delete(table).
		Where(sq.Eq{"group_id": groupID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build delete query for %s: %w", op, table, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to delete from %s: %w", op, table, err)
	}

	return nil
}
