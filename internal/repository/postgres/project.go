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
)

type ProjectRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewProjectRepository(db *sqlx.DB, log *slog.Logger) *ProjectRepository {
	return &ProjectRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *ProjectRepository) GetLatestRelease(ctx context.Context, projectID int64) (*domain.Release, error) {
	const op = "internal.repository.postgres.GetLatestRelease"

	query, args, err := r.sq.Select("id", "project_id", "version", "created_at").
		From("releases").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var release domain.Release
	if err := r.db.GetContext(ctx, &release, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: project '%d'", op, apperrors.ErrNoRelease, projectID)
		}

		return nil, fmt.Errorf("%s: failed to get latest release: %w", op, err)
	}

	return &release, nil
}

func (r *ProjectRepository) GetReleaseByVersion(ctx context.Context, projectID int64, version string) (*domain.Release, error) {
	const op = "internal.repository.postgres.GetReleaseByVersion"

	query, args, err := r.sq.Select("id", "project_id", "version", "created_at").
		From("releases").
		Where(sq.Eq{"project_id": projectID, "version": version}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var release domain.Release
	if err := r.db.GetContext(ctx, &release, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: release '%s'", op, apperrors.ErrNotFound, version)
		}

		return nil, fmt.Errorf("%s: failed to get release: %w", op, err)
	}

	return &release, nil
}

func (r *ProjectRepository) GetReleaseByID(ctx context.Context, releaseID int64) (*domain.Release, error) {
	const op = "internal.repository.postgres.GetReleaseByID"

	query, args, err := r.sq.Select("id", "project_id", "version", "created_at").
		From("releases").
		Where(sq.Eq{"id": releaseID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var release domain.Release
	if err := r.db.GetContext(ctx, &release, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: release with id '%d'", op, apperrors.ErrNotFound, releaseID)
		}

		return nil, fmt.Errorf("%s: failed to get release: %w", op, err)
	}

	return &release, nil
}

func (r *ProjectRepository) GetCommitByKey(ctx context.Context, repositoryName, commitKey string) (*domain.Commit, error) {
	const op = "internal.repository.postgres.GetCommitByKey"

	query, args, err := r.sq.Select("c.id", "c.repository_id", "c.key", "c.release_id").
		From("commits c").
		Join("repositories r ON r.id = c.repository_id").
		Where(sq.Eq{"r.name": repositoryName, "c.key": commitKey}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var commit domain.Commit
	if err := r.db.GetContext(ctx, &commit, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, &apperrors.UnknownCommitError{
				Commit:     commitKey,
				Repository: repositoryName,
			})
		}

		return nil, fmt.Errorf("%s: failed to get commit: %w", op, err)
	}

	return &commit, nil
}

func (r *ProjectRepository) GetUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	const op = "internal.repository.postgres.GetUserByID"

	query, args, err := r.sq.Select("id", "username", "self_assign_on_resolve").
		From("users").
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: user with id '%d'", op, apperrors.ErrNotFound, userID)
		}

		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	return &user, nil
}

func (r *ProjectRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	const op = "internal.repository.postgres.GetUserByUsername"

	query, args, err := r.sq.Select("id", "username", "self_assign_on_resolve").
		From("users").
		Where(sq.Eq{"username": username}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: user '%s'", op, apperrors.ErrNotFound, username)
		}

		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	return &user, nil
}

func (r *ProjectRepository) GetTeamBySlug(ctx context.Context, slug string) (*domain.Team, error) {
	const op = "internal.repository.postgres.GetTeamBySlug"

	query, args, err := r.sq.Select("id", "slug").
		From("teams").
		Where(sq.Eq{"slug": slug}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var team domain.Team
	if err := r.db.GetContext(ctx, &team, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: team '%s'", op, apperrors.ErrNotFound, slug)
		}

		return nil, fmt.Errorf("%s: failed to get team: %w", op, err)
	}

	return &team, nil
}

func (r *ProjectRepository) IsProjectMember(ctx context.Context, projectID, userID int64) (bool, error) {
	const op = "internal.repository.postgres.IsProjectMember"

	query, args, err := r.sq.Select("COUNT(*)").
		From("project_members").
		Where(sq.Eq{"project_id": projectID, "user_id": userID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}

	return count > 0, nil
}

func (r *ProjectRepository) IsTeamInProject(ctx context.Context, projectID, teamID int64) (bool, error) {
	const op = "internal.repository.postgres.IsTeamInProject"

	query, args, err := r.sq.Select("COUNT(*)").
		From("project_teams").
		Where(sq.Eq{"project_id": projectID, "team_id": teamID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}

	return count > 0, nil
}
