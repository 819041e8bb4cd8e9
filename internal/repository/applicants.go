package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"visadocs/internal/common"
	"visadocs/internal/entity"
)

// GetOrCreateApplicant returns the applicant with the given name, creating it
// with a Processing status on first sight. Applicants are never deleted here.
func (q *queries) GetOrCreateApplicant(ctx context.Context, fullName string) (*entity.Applicant, error) {
	existing, err := q.getApplicantByName(ctx, fullName)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	query, args, err := q.sb.Insert("applicants").
		Columns("full_name", "application_status").
		Values(fullName, "Processing").
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		q.logger.Error("applicant insert failed", "full_name", fullName, "error", err)
		return nil, common.WrapError(common.ErrPersistence, err.Error())
	}
	q.logger.Info("applicant created", "full_name", fullName)
	return q.getApplicantByName(ctx, fullName)
}

func (q *queries) getApplicantByName(ctx context.Context, fullName string) (*entity.Applicant, error) {
	query, args, err := q.sb.Select("id", "full_name", "email", "application_status", "created_at").
		From("applicants").
		Where(sq.Eq{"full_name": fullName}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var (
		a     entity.Applicant
		email sql.NullString
	)
	err = q.db.QueryRowContext(ctx, query, args...).
		Scan(&a.ID, &a.FullName, &email, &a.ApplicationStatus, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan applicant: %w", err)
	}
	if email.Valid {
		a.Email = &email.String
	}
	return &a, nil
}
