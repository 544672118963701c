package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alex_bench/index"
)

func exposition(t *testing.T, recorder *Recorder) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alex_bench.prom")
	require.NoError(t, recorder.WriteToTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRecorderPhases(t *testing.T) {
	recorder := NewRecorder()
	recorder.ObservePhase(PhaseBulkLoad, 3*time.Millisecond, 5)
	recorder.ObservePhase(PhaseUserInsert, time.Millisecond, 2)
	recorder.ObservePhase(PhaseUserInsert, time.Millisecond, 3)

	text := exposition(t, recorder)
	assert.Contains(t, text, `alex_bench_runner_keys_total{phase="bulk_load"} 5`)
	assert.Contains(t, text, `alex_bench_runner_keys_total{phase="user_insert"} 5`)
	assert.Contains(t, text, `alex_bench_runner_phase_seconds_count{phase="user_insert"} 2`)
}

func TestRecorderSnapshotsAndFailures(t *testing.T) {
	recorder := NewRecorder()
	recorder.ObserveSnapshot(SnapshotLabel(0, true), 1, 0)
	recorder.ObserveSnapshot(SnapshotLabel(4, false), 12, 3)
	recorder.ObserveFailure(4)
	recorder.ObserveSkipped()
	recorder.ObserveIndexStats(index.Stats{NumKeys: 42, NumSidewaysSplits: 2})

	text := exposition(t, recorder)
	assert.Contains(t, text, `alex_bench_index_leaves{snapshot="initial"} 1`)
	assert.Contains(t, text, `alex_bench_index_leaves{snapshot="user_4"} 12`)
	assert.Contains(t, text, `alex_bench_index_model_nodes{snapshot="user_4"} 3`)
	assert.Contains(t, text, `alex_bench_runner_insertion_failures_total{user="4"} 1`)
	assert.Contains(t, text, `alex_bench_runner_skipped_users_total 1`)
	assert.Contains(t, text, `alex_bench_index_structure_events{counter="keys"} 42`)
	assert.Contains(t, text, `alex_bench_index_structure_events{counter="sideways_splits"} 2`)
}

func TestRecordersAreIndependent(t *testing.T) {
	first := NewRecorder()
	second := NewRecorder()
	first.ObserveSkipped()

	families, err := second.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == "alex_bench_runner_skipped_users_total" {
			assert.Zero(t, family.GetMetric()[0].GetCounter().GetValue())
		}
	}
}
