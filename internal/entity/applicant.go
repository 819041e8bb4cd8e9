package entity

import "time"

// Applicant groups documents uploaded under one name. Created lazily the first
// time a document arrives for an unknown applicant; never deleted by the core.
type Applicant struct {
	ID                int64
	FullName          string
	Email             *string
	ApplicationStatus string
	CreatedAt         time.Time
}
