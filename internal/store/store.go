// Package store persists institutions, programs, scholarships and the
// import-run ledger.
//
// Importers talk to the store through the gateway interfaces defined here;
// SQLStore implements them on SQLite or PostgreSQL.
package store

import (
	"context"
	"time"

	"github.com/leapstack-labs/leapingest/internal/mapping"
)

// Entity is an institution or scholarship identified by an external id.
type Entity struct {
	ID         int64
	ExternalID string
	Attributes mapping.AttributeSet
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Program is an award program offered by an institution at one level.
type Program struct {
	ID            int64
	InstitutionID int64
	CIPCode       string
	Level         string
	Awards        *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EntityGateway finds, creates, updates and prunes entities keyed by
// external id.
type EntityGateway interface {
	// FindOrCreate returns the entity for externalID, creating an empty one
	// when absent.
	FindOrCreate(ctx context.Context, externalID string) (*Entity, error)
	// FindByExternalID returns nil, nil when the entity does not exist.
	FindByExternalID(ctx context.Context, externalID string) (*Entity, error)
	// Update merges attrs into the entity and saves it. Keys present in
	// attrs overwrite stored values, including with nil.
	Update(ctx context.Context, e *Entity, attrs mapping.AttributeSet) error
	// DeleteAllExcept removes every entity whose external id is not in keep.
	DeleteAllExcept(ctx context.Context, keep map[string]struct{}) (int, error)
}

// ProgramGateway manages programs.
type ProgramGateway interface {
	DeleteAllPrograms(ctx context.Context) (int, error)
	FindOrCreateProgram(ctx context.Context, institutionID int64, cipCode, level string) (*Program, error)
	SaveProgram(ctx context.Context, p *Program) error
}

// RunStatus is the state of an import run.
type RunStatus string

// Import run states.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunStats are the row counters of an import run.
type RunStats struct {
	Read     int
	Imported int
	Skipped  int
	Failed   int
	Deleted  int
}

// Add accumulates other into s.
func (s *RunStats) Add(other RunStats) {
	s.Read += other.Read
	s.Imported += other.Imported
	s.Skipped += other.Skipped
	s.Failed += other.Failed
	s.Deleted += other.Deleted
}

// Run is one entry of the import-run ledger.
type Run struct {
	ID          string
	Dataset     string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
	Stats       RunStats
}

// RunLedger records import runs.
type RunLedger interface {
	CreateRun(ctx context.Context, dataset string) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, stats RunStats, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
}
