package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/declsql/declsql/internal/sandbox"
)

// Schema is the outcome of a snapshot run: the recording DAL and the
// tables it holds, placeholders excluded.
type Schema struct {
	DAL      *sandbox.DAL
	Tables   []string
	Attempts int
}

// Snapshot executes a single snippet through the same repair loop as
// Run and returns the recorded schema, for inspection rather than
// diffing.
func Snapshot(code string, opts Options) (*Schema, error) {
	r, err := newRunner("", code, opts)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= MaxRetries; attempt++ {
		src, err := r.assemble()
		if err != nil {
			return nil, err
		}
		r.log.Debug("executing snapshot scaffold", zap.Int("attempt", attempt))

		oldDAL, newDAL, execErr := r.execute(src)
		if execErr == nil {
			tables := r.selectTables(oldDAL, newDAL)
			if len(tables) == 0 {
				execErr = errNoTables
			} else {
				return &Schema{DAL: newDAL, Tables: tables, Attempts: attempt}, nil
			}
		}
		lastErr = execErr

		if err := r.repair(classify(execErr), src); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("snippet could not be repaired automatically after %d attempts: %w",
		MaxRetries, lastErr)
}
