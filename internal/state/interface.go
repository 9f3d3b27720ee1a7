package state

import (
	"io"
	"time"

	"github.com/ShayCichocki/quorum/pkg/models"
)

// RunStore handles run persistence.
type RunStore interface {
	BeginRun(id string, plan *models.Plan, startedAt time.Time) error
	FinishRun(id string, result *models.ExecutionResult) error
	SaveRun(id string, plan *models.Plan, startedAt time.Time, result *models.ExecutionResult) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]RunSummary, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore composes everything the CLI needs from persistence.
type StateStore interface {
	io.Closer
	Migrator
	RunStore
	MarkInterrupted() (int64, error)
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore = (*DB)(nil)
	_ Migrator   = (*DB)(nil)
	_ RunStore   = (*DB)(nil)
)
