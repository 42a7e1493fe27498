package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sellerdesk/seller-backoffice/internal/database"
	"gorm.io/gorm"
)

// State is a step of a single run
type State string

const (
	StateIdle                  State = "idle"
	StateResolvingDirectory    State = "resolving_directory"
	StateEnsuringTrackingTable State = "ensuring_tracking_table"
	StateScanningFiles         State = "scanning_files"
	StateApplyingSequence      State = "applying_sequence"
	StateCompleted             State = "completed"
	StateFailed                State = "failed"
	StateFailedAtFile          State = "failed_at_file"
)

// Terminal reports whether no further transitions follow s
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateFailedAtFile
}

// Outcome values for FileOutcome.Status
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomePending = "pending"
)

// FileOutcome is what a run did with one validly named file
type FileOutcome struct {
	Version int64  `json:"version"`
	Name    string `json:"name"`
	Status  string `json:"status"`
}

// Result summarizes a run that reached StateCompleted
type Result struct {
	RunID        string        `json:"run_id"`
	Directory    string        `json:"directory"`
	Applied      int           `json:"applied"`
	Skipped      int           `json:"skipped"`
	Invalid      int           `json:"invalid"`
	Total        int           `json:"total"`
	Files        []FileOutcome `json:"files"`
	InvalidFiles []string      `json:"invalid_files,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// RunStatus is the runner's view of its most recent run
type RunStatus struct {
	RunID         string     `json:"run_id,omitempty"`
	State         State      `json:"state"`
	Directory     string     `json:"directory,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Result        *Result    `json:"result,omitempty"`
	FailedVersion int64      `json:"failed_version,omitempty"`
	FailedName    string     `json:"failed_name,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Options configures a Runner
type Options struct {
	// Directories are the candidate locations, searched in order
	Directories []string
	// Table is the tracking relation, optionally schema-qualified
	Table    string
	Ordering Ordering
	Recorder Recorder
}

// Runner applies versioned .sql files against a pool it does not own
type Runner struct {
	db       *gorm.DB
	dirs     []string
	table    trackingTable
	ordering Ordering
	recorder Recorder
	logger   zerolog.Logger

	runMu sync.Mutex

	mu   sync.RWMutex
	last RunStatus
}

// NewRunner creates a runner over db. Closing db stays with the caller.
func NewRunner(db *gorm.DB, opts Options, logger zerolog.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("migration runner requires a database")
	}
	if len(opts.Directories) == 0 {
		return nil, errors.New("migration runner requires at least one candidate directory")
	}

	ordering, err := ParseOrdering(string(opts.Ordering))
	if err != nil {
		return nil, err
	}

	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	dirs := make([]string, len(opts.Directories))
	copy(dirs, opts.Directories)

	return &Runner{
		db:       db,
		dirs:     dirs,
		table:    newTrackingTable(opts.Table),
		ordering: ordering,
		recorder: recorder,
		logger:   logger.With().Str("component", "migrate").Logger(),
		last:     RunStatus{State: StateIdle},
	}, nil
}

// LastRun returns a copy of the most recent run's status
func (r *Runner) LastRun() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// plan is the outcome of the scan phase
type plan struct {
	directory string
	files     []FileOutcome
	pending   []MigrationFile
	skipped   int
	invalid   []string
	total     int
}

// Run applies every pending migration once, in order, halting at the first
// failure. Runs on the same Runner are serialized.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	runID := uuid.New().String()
	logger := r.logger.With().Str("run_id", runID).Logger()
	started := time.Now()

	r.mu.Lock()
	r.last = RunStatus{RunID: runID, State: StateIdle, StartedAt: &started}
	r.mu.Unlock()

	p, err := r.scan(ctx, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Migration run failed before applying files")
		r.finish(StateFailed, nil, MigrationFile{}, err, started)
		return nil, err
	}

	r.setState(StateApplyingSequence)

	for _, file := range p.pending {
		if err := ctx.Err(); err != nil {
			err = fmt.Errorf("migration run cancelled before %s: %w", file.Name, err)
			logger.Error().Err(err).Msg("Migration run cancelled")
			r.finish(StateFailed, nil, MigrationFile{}, err, started)
			return nil, err
		}

		fileLogger := logger.With().
			Int64("version", file.Version).
			Str("name", file.Name).
			Logger()

		fileLogger.Info().Msg("Running migration")

		fileStarted := time.Now()
		if err := r.apply(ctx, file, fileLogger); err != nil {
			var migErr *MigrationError
			kind := ErrStatementExecution
			if errors.As(err, &migErr) {
				kind = migErr.Kind
			}
			r.recorder.FileFailed(file, kind)

			fileLogger.Error().Err(err).Msg("Migration failed, halting sequence")
			r.finish(StateFailedAtFile, nil, file, err, started)
			return nil, err
		}
		elapsed := time.Since(fileStarted)

		for i := range p.files {
			if p.files[i].Name == file.Name {
				p.files[i].Status = OutcomeApplied
			}
		}
		r.recorder.FileApplied(file, elapsed)

		fileLogger.Info().Dur("elapsed", elapsed).Msg("Migration completed successfully")
	}

	result := &Result{
		RunID:        runID,
		Directory:    p.directory,
		Applied:      len(p.pending),
		Skipped:      p.skipped,
		Invalid:      len(p.invalid),
		Total:        p.total,
		Files:        p.files,
		InvalidFiles: p.invalid,
		Duration:     time.Since(started),
	}

	logger.Info().
		Str("directory", result.Directory).
		Int("applied", result.Applied).
		Int("skipped", result.Skipped).
		Int("invalid", result.Invalid).
		Int("total", result.Total).
		Dur("duration", result.Duration).
		Msg("Migrations complete")

	r.finish(StateCompleted, result, MigrationFile{}, nil, started)
	return result, nil
}

// scan resolves the directory, bootstraps the tracking table and classifies
// every file. Skipped files are never read.
func (r *Runner) scan(ctx context.Context, logger zerolog.Logger) (*plan, error) {
	r.setState(StateResolvingDirectory)

	dir, err := ResolveDirectory(r.dirs)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.last.Directory = dir
	r.mu.Unlock()

	logger.Info().Str("directory", dir).Msg("Using migrations directory")

	r.setState(StateEnsuringTrackingTable)
	if err := r.table.ensure(ctx, r.db); err != nil {
		return nil, err
	}

	r.setState(StateScanningFiles)
	names, err := ListSQLFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations in %s: %w", dir, err)
	}

	p := &plan{directory: dir, total: len(names)}

	var files []MigrationFile
	seen := make(map[int64]string)
	for _, name := range names {
		version, err := ParseVersion(name)
		if err != nil {
			logger.Warn().Err(err).Str("name", name).Msg("Skipping file without a version prefix")
			p.invalid = append(p.invalid, name)
			continue
		}
		if other, ok := seen[version]; ok {
			logger.Warn().
				Int64("version", version).
				Str("name", name).
				Str("conflicts_with", other).
				Msg("Duplicate migration version")
		} else {
			seen[version] = name
		}
		files = append(files, newMigrationFile(dir, name, version))
	}

	SortFiles(files, r.ordering)

	for _, file := range files {
		applied, err := r.table.isApplied(ctx, r.db, file.Version)
		if err != nil {
			return nil, err
		}

		if applied {
			logger.Debug().
				Int64("version", file.Version).
				Str("name", file.Name).
				Msg("Migration already applied, skipping")
			p.skipped++
			p.files = append(p.files, FileOutcome{Version: file.Version, Name: file.Name, Status: OutcomeSkipped})
			r.recorder.FileSkipped(file)
			continue
		}

		p.pending = append(p.pending, file)
		p.files = append(p.files, FileOutcome{Version: file.Version, Name: file.Name, Status: OutcomePending})
	}

	return p, nil
}

// apply runs one file and its tracking insert in a single transaction
func (r *Runner) apply(ctx context.Context, file MigrationFile, logger zerolog.Logger) error {
	sqlText, err := file.SQL()
	if err != nil {
		return newMigrationError(ErrFileRead, file, err)
	}

	// Cancellation halts the run between files, never the file in flight
	tx := r.db.WithContext(context.WithoutCancel(ctx)).Begin()
	if tx.Error != nil {
		return newMigrationError(ErrStatementExecution, file, fmt.Errorf("failed to start transaction: %w", tx.Error))
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if strings.TrimSpace(sqlText) == "" {
		logger.Warn().Msg("Migration file is empty, recording it without executing")
	} else if err := tx.Exec(sqlText).Error; err != nil {
		r.rollback(tx, logger)
		return newMigrationError(ErrStatementExecution, file, err)
	}

	if err := r.table.insert(tx, file); err != nil {
		r.rollback(tx, logger)
		return newMigrationError(classifyTrackingError(err), file, err)
	}

	if err := tx.Commit().Error; err != nil {
		r.rollback(tx, logger)
		return newMigrationError(classifyTrackingError(err), file, err)
	}

	return nil
}

func (r *Runner) rollback(tx *gorm.DB, logger zerolog.Logger) {
	if err := tx.Rollback().Error; err != nil && !errors.Is(err, gorm.ErrInvalidTransaction) {
		logger.Debug().Err(err).Msg("Rollback reported an error")
	}
}

// classifyTrackingError separates a concurrent runner's insert from any
// other failure at insert or commit time
func classifyTrackingError(err error) error {
	if database.IsDuplicateKeyError(err) {
		return ErrTrackingInsertConflict
	}
	return ErrStatementExecution
}

func (r *Runner) setState(state State) {
	r.mu.Lock()
	r.last.State = state
	r.mu.Unlock()
}

func (r *Runner) finish(state State, result *Result, failed MigrationFile, err error, started time.Time) {
	finished := time.Now()

	r.mu.Lock()
	r.last.State = state
	r.last.FinishedAt = &finished
	r.last.Result = result
	r.last.FailedVersion = failed.Version
	r.last.FailedName = failed.Name
	if err != nil {
		r.last.Error = err.Error()
	}
	r.mu.Unlock()

	r.recorder.RunFinished(state, result, finished.Sub(started))
}
