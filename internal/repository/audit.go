package repository

import (
	"context"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"

	"visadocs/internal/common"
)

// AppendAudit writes an immutable audit entry for a verification action.
func (q *queries) AppendAudit(ctx context.Context, documentID, action, performedBy string, details any) error {
	var payload any
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		payload = string(b)
	}

	query, args, err := q.sb.Insert("audit_log").
		Columns("document_id", "action", "performed_by", "details").
		Values(documentID, action, performedBy, payload).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		q.logger.Error("audit append failed", "document_id", documentID, "action", action, "error", err)
		return common.WrapError(common.ErrPersistence, err.Error())
	}
	return nil
}

// CountAuditEntries reports the audit rows for a document, used by tests and
// the verification dashboard queries.
func (q *queries) CountAuditEntries(ctx context.Context, documentID string) (int, error) {
	query, args, err := q.sb.Select("COUNT(*)").
		From("audit_log").
		Where(sq.Eq{"document_id": documentID}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := q.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
