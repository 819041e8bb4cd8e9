package repository

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"

	"visadocs/constants"
	"visadocs/internal/common"
)

// VerificationUpdate carries the result of a manual review action.
type VerificationUpdate struct {
	Status     constants.VerificationStatus
	VerifiedBy string
	Notes      string

	// ComplianceStatus, when set, overrides the derived status alongside the
	// verification change (approval forces Passed).
	ComplianceStatus string

	// Analysis, when set, replaces the stored analysis payload (manual
	// corrections).
	Analysis json.RawMessage
}

// UpdateVerification records a manual review decision on the document row.
func (q *queries) UpdateVerification(ctx context.Context, documentID string, u VerificationUpdate) error {
	update := q.sb.Update("documents").
		Set("verification_status", string(u.Status)).
		Set("verified_by", u.VerifiedBy).
		Set("verified_at", time.Now()).
		Set("verification_notes", u.Notes).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"document_id": documentID})
	if u.ComplianceStatus != "" {
		update = update.Set("status", u.ComplianceStatus)
	}
	if len(u.Analysis) > 0 {
		update = update.Set("ai_analysis", string(u.Analysis))
	}

	query, args, err := update.ToSql()
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		q.logger.Error("verification update failed", "document_id", documentID, "error", err)
		return common.WrapError(common.ErrPersistence, err.Error())
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}
