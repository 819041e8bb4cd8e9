package repository

import (
	"context"
	"fmt"
)

// DDL kept portable between sqlite and postgres; only the key type differs.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS applicants (
	id %[1]s,
	full_name TEXT NOT NULL UNIQUE,
	email TEXT,
	application_status TEXT NOT NULL DEFAULT 'Processing',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
	id %[1]s,
	document_id TEXT NOT NULL,
	applicant_id BIGINT,
	file_name TEXT NOT NULL UNIQUE,
	document_type TEXT,
	visa_category TEXT,
	status TEXT,
	processing_stage TEXT,
	completeness_score INTEGER NOT NULL DEFAULT 0,
	confidence_score INTEGER,
	field_confidence TEXT,
	ocr_metadata TEXT,
	verification_status TEXT NOT NULL DEFAULT 'pending',
	verified_by TEXT,
	verified_at TIMESTAMP,
	verification_notes TEXT,
	expiry_date TIMESTAMP,
	ai_analysis TEXT,
	version INTEGER NOT NULL DEFAULT 1,
	upload_date TIMESTAMP,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_documents_document_id ON documents (document_id);
CREATE INDEX IF NOT EXISTS idx_documents_applicant_id ON documents (applicant_id);

CREATE TABLE IF NOT EXISTS audit_log (
	id %[1]s,
	document_id TEXT NOT NULL,
	action TEXT NOT NULL,
	performed_by TEXT NOT NULL,
	details TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// InitSchema creates the tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	keyType := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == "pgx" {
		keyType = "BIGSERIAL PRIMARY KEY"
	}
	ddl := fmt.Sprintf(schemaTemplate, keyType)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	s.logger.Info("database schema ready")
	return nil
}
