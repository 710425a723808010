package store

import (
	"context"
	"fmt"
)

// DeterminismReport compares a compilation with earlier runs of the same
// input.
type DeterminismReport struct {
	InputHash  string
	OutputHash string

	// Previous holds the earlier runs of the input, oldest first.
	Previous []Run

	// Mismatches holds the earlier runs whose output differs.
	Mismatches []Run
}

// Deterministic reports whether every earlier run produced the same
// output. It is true when there are no earlier runs.
func (r *DeterminismReport) Deterministic() bool {
	return len(r.Mismatches) == 0
}

func (r *DeterminismReport) String() string {
	if r.Deterministic() {
		return fmt.Sprintf("deterministic: %d earlier run(s) of %s agree", len(r.Previous), short(r.InputHash))
	}
	m := r.Mismatches[0]
	return fmt.Sprintf("nondeterministic: input %s compiled to %s, but run %s (seq %d) produced %s",
		short(r.InputHash), short(r.OutputHash), m.ID, m.Seq, short(m.OutputHash))
}

// CheckDeterminism compares outputHash against every recorded run of
// inputHash. Runs of other compiler versions are skipped, since a new
// version may legitimately change the output.
func (s *Store) CheckDeterminism(ctx context.Context, inputHash, outputHash, version string) (*DeterminismReport, error) {
	runs, err := s.RunsForInput(ctx, inputHash)
	if err != nil {
		return nil, fmt.Errorf("check determinism: %w", err)
	}
	report := &DeterminismReport{InputHash: inputHash, OutputHash: outputHash}
	for _, r := range runs {
		if r.EngineVersion != version {
			continue
		}
		report.Previous = append(report.Previous, r)
		if r.OutputHash != outputHash {
			report.Mismatches = append(report.Mismatches, r)
		}
	}
	return report, nil
}

// GetLastSeq returns the sequence number of the latest run, or 0 for an
// empty log.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM runs`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
