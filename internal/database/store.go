// Package database persists a journal of update and rollback runs so an
// operator can reconstruct what happened on an unattended host.
package database

import (
	"context"
	"time"
)

// Run statuses. A run starts as "running" and finishes as exactly one of
// the terminal states.
const (
	StatusRunning   = "running"
	StatusSuccess   = "success"
	StatusUpToDate  = "up-to-date"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Run is a single recorded invocation of an update or rollback.
type Run struct {
	ID               string
	Operation        string // "update" or "rollback"
	Status           string
	InstalledVersion string
	TargetVersion    string
	BackupPath       string
	Detail           string // failure reason for failed runs
	StartedAt        time.Time
	FinishedAt       *time.Time
}

// Store is the persistence interface for the run journal.
type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, id, status string, run *Run) error
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	Close() error
}
