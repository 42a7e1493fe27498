package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Exit codes returned by RunStandalone
const (
	ExitOK      = 0
	ExitFailure = 1
)

// RunStandalone runs once for a process that owns pool. The pool is closed on
// every path, and failures are printed to stderr in operator-readable form.
func RunStandalone(ctx context.Context, r *Runner, pool io.Closer, stderr io.Writer) int {
	code := ExitOK

	result, err := r.Run(ctx)
	if err != nil {
		code = ExitFailure
		printFailure(stderr, err)
	} else {
		fmt.Fprintf(stderr, "migrations complete: %d applied, %d skipped, %d total (%s)\n",
			result.Applied, result.Skipped, result.Total, result.Directory)
	}

	if pool != nil {
		if err := pool.Close(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to close database pool")
			fmt.Fprintf(stderr, "failed to close database pool: %v\n", err)
			code = ExitFailure
		}
	}

	return code
}

func printFailure(w io.Writer, err error) {
	var migErr *MigrationError
	switch {
	case errors.As(err, &migErr):
		fmt.Fprintf(w, "migration failed: %s (version %d)\n", migErr.Name, migErr.Version)
		fmt.Fprintf(w, "  kind:  %v\n", migErr.Kind)
		if migErr.Err != nil {
			fmt.Fprintf(w, "  error: %v\n", migErr.Err)
		}
	case IsDirectoryNotFound(err):
		fmt.Fprintf(w, "%v\n", err)
	default:
		fmt.Fprintf(w, "migration run failed: %v\n", err)
	}
}

// RunEmbedded runs once inside a host that keeps ownership of the pool. A
// missing migrations directory is logged and treated as nothing to do; any
// other failure is returned for the host to act on.
func RunEmbedded(ctx context.Context, r *Runner) (*Result, error) {
	result, err := r.Run(ctx)
	if err == nil {
		return result, nil
	}

	if IsDirectoryNotFound(err) {
		r.logger.Warn().Err(err).Msg("No migrations directory found, continuing without migrations")
		return nil, nil
	}

	r.logger.Error().Err(err).Msg("Startup migrations failed")
	return nil, err
}
