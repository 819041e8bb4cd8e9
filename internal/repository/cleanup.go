package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// minValidDate guards against rows whose timestamps predate the system.
var minValidDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// auditRetentionFactor: audit rows grow faster than documents, so their FIFO
// cap is a multiple of maxRecords.
const auditRetentionFactor = 5

// Cleanup removes rows with implausible dates and enforces FIFO retention
// caps. Runs once per poll cycle; failures are logged by the caller and never
// stop the cycle.
func (q *queries) Cleanup(ctx context.Context, maxRecords int) error {
	now := time.Now()

	del, args, err := q.sb.Delete("documents").
		Where(sq.Or{sq.Gt{"upload_date": now}, sq.Lt{"upload_date": minValidDate}}).
		ToSql()
	if err != nil {
		return err
	}
	if res, err := q.db.ExecContext(ctx, del, args...); err == nil {
		if n, _ := res.RowsAffected(); n > 0 {
			q.logger.Info("cleanup removed documents with invalid dates", "count", n)
		}
	} else {
		return err
	}

	del, args, err = q.sb.Delete("audit_log").
		Where(sq.Or{sq.Gt{"created_at": now}, sq.Lt{"created_at": minValidDate}}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, del, args...); err != nil {
		return err
	}

	if maxRecords <= 0 {
		return nil
	}
	if err := q.enforceFIFO(ctx, "documents", "created_at", maxRecords); err != nil {
		return err
	}
	return q.enforceFIFO(ctx, "audit_log", "created_at", maxRecords*auditRetentionFactor)
}

// enforceFIFO deletes the oldest rows beyond the cap.
func (q *queries) enforceFIFO(ctx context.Context, table, orderCol string, limit int) error {
	count, args, err := q.sb.Select("COUNT(*)").From(table).ToSql()
	if err != nil {
		return err
	}
	var n int
	if err := q.db.QueryRowContext(ctx, count, args...).Scan(&n); err != nil {
		return err
	}
	if n <= limit {
		return nil
	}

	sel, args, err := q.sb.Select("id").From(table).
		OrderBy(orderCol + " ASC").
		Limit(uint64(n - limit)).
		ToSql()
	if err != nil {
		return err
	}
	rows, err := q.db.QueryContext(ctx, sel, args...)
	if err != nil {
		return err
	}
	var ids []any
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()
	if len(ids) == 0 {
		return nil
	}

	del, args, err := q.sb.Delete(table).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, del, args...)
	if err != nil {
		return err
	}
	if removed, _ := res.RowsAffected(); removed > 0 {
		q.logger.Info("cleanup enforced retention cap", "table", table, "removed", removed)
	}
	return nil
}
