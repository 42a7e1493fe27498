package migrate

import "time"

// Recorder observes a run. Implementations must be safe for use by one run at
// a time; the runner never calls them concurrently.
type Recorder interface {
	FileApplied(file MigrationFile, elapsed time.Duration)
	FileSkipped(file MigrationFile)
	FileFailed(file MigrationFile, kind error)
	RunFinished(state State, result *Result, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) FileApplied(MigrationFile, time.Duration)  {}
func (nopRecorder) FileSkipped(MigrationFile)                 {}
func (nopRecorder) FileFailed(MigrationFile, error)           {}
func (nopRecorder) RunFinished(State, *Result, time.Duration) {}
