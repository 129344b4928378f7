package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/errwatch/issue-lifecycle-service/internal/apperrors"
	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type LinkRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewLinkRepository(db *sqlx.DB, log *slog.Logger) *LinkRepository {
	return &LinkRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *LinkRepository) CreateGroupLink(ctx context.Context, tx *sqlx.Tx, link *domain.GroupLink) error {
	const op = "internal.repository.postgres.CreateGroupLink"

	query, args, err := r.sq.Insert("group_links").
		Columns("group_id", "project_id", "linked_type", "linked_id", "relationship").
		Values(link.GroupID, link.ProjectID, link.LinkedType, link.LinkedID, link.Relationship).
		Suffix("ON CONFLICT (group_id, linked_type, linked_id, relationship) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *LinkRepository) GetExternalIssues(ctx context.Context, groupID int64) ([]domain.ExternalIssue, error) {
	const op = "internal.repository.postgres.GetExternalIssues"

	query, args, err := r.sq.Select("ei.id", "ei.integration_id", "ei.key").
		From("external_issues ei").
		Join("group_links gl ON gl.linked_id = ei.id").
		Where(sq.Eq{
			"gl.group_id":    groupID,
			"gl.linked_type": domain.LinkedExternalIssue,
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var issues []domain.ExternalIssue
	if err := r.db.SelectContext(ctx, &issues, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []domain.ExternalIssue{}, nil
		}

		return nil, fmt.Errorf("%s: failed to select external issues: %w", op, err)
	}

	return issues, nil
}

func (r *LinkRepository) DeleteHashesByGroup(ctx context.Context, tx *sqlx.Tx, groupID int64) error {
	const op = "internal.repository.postgres.DeleteHashesByGroup"

	query, args, err := r.sq.Delete("group_hashes").
		Where(sq.Eq{"group_id": groupID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build delete query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute delete: %w", op, err)
	}

	return nil
}

func (r *LinkRepository) RepointHashesToGroup(ctx context.Context, tx *sqlx.Tx, fromGroupID, toGroupID int64) error {
	const op = "internal.repository.postgres.RepointHashesToGroup"

	// The synchronous path may already have removed these hashes; updating
	// zero rows is fine.
	query, args, err := r.sq.Update("group_hashes").
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

func (r *LinkRepository) RepointHashesToTombstone(ctx context.Context, tx *sqlx.Tx, groupID, tombstoneID int64) error {
	const op = "internal.repository.postgres.RepointHashesToTombstone"

	query, args, err := r.sq.Update("group_hashes").
		Set("group_id", nil).
		Set("tombstone_id", tombstoneID).
		Where(sq.Eq{"group_id": groupID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}

	return nil
}

func (r *LinkRepository) CreateTombstone(ctx context.Context, tx *sqlx.Tx, tombstone *domain.Tombstone) (int64, error) {
	const op = "internal.repository.postgres.CreateTombstone"

	query, args, err := r.sq.Insert("group_tombstones").
		Columns("previous_group_id", "project_id", "message", "culprit", "data").
		Values(tombstone.PreviousGroupID, tombstone.ProjectID, tombstone.Message, tombstone.Culprit, tombstone.Data).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	var id int64
	if err := tx.GetContext(ctx, &id, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return 0, fmt.Errorf("%s: %w: tombstone for group '%d'", op, apperrors.ErrAlreadyExists, tombstone.PreviousGroupID)
		}

		return 0, fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return id, nil
}

func (r *LinkRepository) GetTombstoneByPreviousGroup(ctx context.Context, tx *sqlx.Tx, groupID int64) (*domain.Tombstone, error) {
	const op = "internal.repository.postgres.GetTombstoneByPreviousGroup"

	query, args, err := r.sq.Select("id", "previous_group_id", "project_id", "message", "culprit", "data", "created_at").
		From("group_tombstones").
		Where(sq.Eq{"previous_group_id": groupID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var tombstone domain.Tombstone
	if err := tx.GetContext(ctx, &tombstone, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: failed to select tombstone: %w", op, err)
	}

	return &tombstone, nil
}
