package workload

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alex_bench/config"
	"alex_bench/dataset"
	"alex_bench/index"
	"alex_bench/introspect"
	"alex_bench/metrics"
	"alex_bench/report"
	"alex_bench/results"
	"alex_bench/shared"
	"alex_bench/tests"
)

func writeKeys(t *testing.T, dir string, userID int, keys []shared.KeyType) {
	t.Helper()
	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%d\n", key)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("user_%d.txt", userID)), []byte(b.String()), 0o644))
}

func randomUserKeys(n int, seed int64) []shared.KeyType {
	rng := rand.New(rand.NewSource(seed))
	keys := make([]shared.KeyType, n)
	for i := range keys {
		keys[i] = shared.KeyType(rng.Int63n(1 << 32))
	}
	return keys
}

func testConfig(t *testing.T, dataDir string, users ...int) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.KeysFileType = config.EncodingText
	cfg.SetInitUserID(0)
	cfg.Users = users
	cfg.DataDir = dataDir
	cfg.OutDir = filepath.Join(t.TempDir(), "out")
	return cfg
}

type failingInserter struct {
	failAt int
	calls  int
}

func (f *failingInserter) Insert(shared.KeyType, shared.PayloadType) error {
	defer func() { f.calls++ }()
	if f.calls == f.failAt {
		return fmt.Errorf("%w: test budget", shared.AllocationError)
	}
	return nil
}

func TestBuildIndexSortsInput(t *testing.T) {
	pairs := dataset.BuildValues([]shared.KeyType{9, 3, 7, 3, 1}, 0)
	alex, err := BuildIndex(pairs)
	require.NoError(t, err)
	assert.Equal(t, 5, alex.NumKeys())

	var keys []shared.KeyType
	alex.ForEach(func(key shared.KeyType, _ shared.PayloadType) bool {
		keys = append(keys, key)
		return true
	})
	assert.Equal(t, []shared.KeyType{1, 3, 3, 7, 9}, keys)
}

func TestBuildIndexConstructionFailure(t *testing.T) {
	pairs := dataset.BuildValues(randomUserKeys(1000, 1), 0)
	alex, err := BuildIndex(pairs, index.WithMemoryBudget(128))
	assert.Nil(t, alex)
	assert.ErrorIs(t, err, shared.ConstructionFailureError)
	assert.ErrorIs(t, err, shared.AllocationError)
}

func TestInsertKeysForUser(t *testing.T) {
	alex, err := BuildIndex(dataset.BuildValues([]shared.KeyType{1, 2, 3}, 0))
	require.NoError(t, err)

	result, err := InsertKeysForUser(alex, dataset.Dataset{UserID: 4, Keys: []shared.KeyType{10, 5}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 4, result.UserID)
	assert.GreaterOrEqual(t, int64(result.Elapsed), int64(0))

	payload, err := alex.Find(10)
	require.NoError(t, err)
	assert.Equal(t, shared.PayloadType(4), *payload)
}

func TestInsertKeysForUserEmpty(t *testing.T) {
	alex, err := BuildIndex(dataset.BuildValues([]shared.KeyType{1, 2, 3}, 0))
	require.NoError(t, err)
	before := introspect.TakeSnapshot(alex).NumLeaves()

	result, err := InsertKeysForUser(alex, dataset.Dataset{UserID: 1})
	require.NoError(t, err)
	assert.Zero(t, result.Inserted)
	assert.GreaterOrEqual(t, int64(result.Elapsed), int64(0))
	assert.Equal(t, before, introspect.TakeSnapshot(alex).NumLeaves())
	assert.Equal(t, 3, alex.NumKeys())
}

func TestInsertKeysForUserAbandonsOnFailure(t *testing.T) {
	target := &failingInserter{failAt: 2}
	result, err := InsertKeysForUser(target, dataset.Dataset{UserID: 6, Keys: []shared.KeyType{1, 2, 3, 4}})

	var failure *shared.InsertionFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 6, failure.UserID)
	assert.Equal(t, 2, failure.Position)
	assert.ErrorIs(t, err, shared.AllocationError)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 3, target.calls)
}

func TestRunScenarioBulkThenUser(t *testing.T) {
	dataDir := t.TempDir()
	writeKeys(t, dataDir, 0, []shared.KeyType{3, 1, 5, 2, 4})
	writeKeys(t, dataDir, 1, []shared.KeyType{6, 7})
	cfg := testConfig(t, dataDir, 1)

	rep, err := NewRunner(cfg).Run()
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Initial.Inserted)
	require.Len(t, rep.Users, 1)
	assert.Equal(t, 2, rep.Users[0].Inserted)
	assert.Equal(t, -1, rep.Users[0].FailedAt)

	initial, err := os.ReadFile(report.InitialPath(cfg.OutDir))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(initial), ",1,5\n"))

	after, err := os.ReadFile(report.UserPath(cfg.OutDir, 1))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(after), "\n"), "\n")
	assert.Len(t, lines, rep.Users[0].Leaves)

	sawSeven := false
	for _, line := range lines {
		fields := strings.Split(line, ",")
		require.Len(t, fields, 4)
		if fields[3] == "7" {
			sawSeven = true
		}
	}
	assert.True(t, sawSeven)
	assert.Equal(t, "1", strings.Split(lines[0], ",")[2])
}

func TestRunRejectsUnsupportedEncoding(t *testing.T) {
	dataDir := t.TempDir()
	writeKeys(t, dataDir, 0, []shared.KeyType{1, 2})
	cfg := testConfig(t, dataDir, 1)
	cfg.KeysFileType = "csv"

	rep, err := NewRunner(cfg).Run()
	assert.ErrorIs(t, err, shared.ConfigError)
	assert.Nil(t, rep)
	assert.NoFileExists(t, report.InitialPath(cfg.OutDir))
}

func TestRunMissingInitialUserIsFatal(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), 1)

	_, err := NewRunner(cfg).Run()
	assert.ErrorIs(t, err, shared.DatasetMissingError)
	assert.NoFileExists(t, report.InitialPath(cfg.OutDir))
}

func TestRunConstructionFailureIsFatal(t *testing.T) {
	dataDir := t.TempDir()
	writeKeys(t, dataDir, 0, randomUserKeys(1000, 2))
	writeKeys(t, dataDir, 1, []shared.KeyType{1})
	cfg := testConfig(t, dataDir, 1)
	cfg.Index.MemoryBudgetBytes = 128

	rep, err := NewRunner(cfg).Run()
	assert.ErrorIs(t, err, shared.ConstructionFailureError)
	require.NotNil(t, rep)
	assert.Empty(t, rep.Users)
	assert.NoFileExists(t, report.InitialPath(cfg.OutDir))
}

func TestRunSkipsUnreadableUsers(t *testing.T) {
	dataDir := t.TempDir()
	writeKeys(t, dataDir, 0, []shared.KeyType{10, 20, 30})
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "user_2.txt"), []byte("12\nnope\n"), 0o644))
	writeKeys(t, dataDir, 3, []shared.KeyType{15})
	cfg := testConfig(t, dataDir, 1, 2, 3)

	rep, err := NewRunner(cfg).Run()
	require.NoError(t, err)
	require.Len(t, rep.Users, 3)
	assert.True(t, rep.Users[0].Skipped)
	assert.ErrorIs(t, rep.Users[0].Err, shared.DatasetMissingError)
	assert.True(t, rep.Users[1].Skipped)
	assert.ErrorIs(t, rep.Users[1].Err, shared.MalformedDatasetError)
	assert.False(t, rep.Users[2].Skipped)
	require.Len(t, rep.Completed(), 1)

	assert.NoFileExists(t, report.UserPath(cfg.OutDir, 1))
	assert.NoFileExists(t, report.UserPath(cfg.OutDir, 2))
	assert.FileExists(t, report.UserPath(cfg.OutDir, 3))
}

func TestRunLeafCountNeverShrinks(t *testing.T) {
	dataDir := t.TempDir()
	writeKeys(t, dataDir, 0, randomUserKeys(5_000, 10))
	for userID := 1; userID <= 4; userID++ {
		writeKeys(t, dataDir, userID, randomUserKeys(3_000, int64(10+userID)))
	}
	cfg := testConfig(t, dataDir, 1, 2, 3, 4)
	cfg.Index.MaxNodeSize = 4096
	cfg.Verify = true

	rep, err := NewRunner(cfg).Run()
	require.NoError(t, err)
	previous := rep.Initial.Leaves
	for _, phase := range rep.Users {
		assert.GreaterOrEqual(t, phase.Leaves, previous, "user %d", phase.UserID)
		previous = phase.Leaves
	}
	assert.Greater(t, previous, rep.Initial.Leaves)
}

func TestRunIsDeterministic(t *testing.T) {
	dataDir := t.TempDir()
	writeKeys(t, dataDir, 0, randomUserKeys(4_000, 20))
	writeKeys(t, dataDir, 1, randomUserKeys(2_000, 21))
	writeKeys(t, dataDir, 2, randomUserKeys(2_000, 22))

	run := func() string {
		cfg := testConfig(t, dataDir, 1, 2)
		cfg.Index.MaxNodeSize = 4096
		_, err := NewRunner(cfg).Run()
		require.NoError(t, err)
		return cfg.OutDir
	}
	first, second := run(), run()

	for _, name := range []string{"node_info.txt", "node_info_after_user_1.txt", "node_info_after_user_2.txt"} {
		a, err := os.ReadFile(filepath.Join(first, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(second, name))
		require.NoError(t, err)
		assert.Equal(t, a, b, name)
	}
}

func TestRunInsertionFailureKeepsGoing(t *testing.T) {
	dataDir := t.TempDir()
	initial := make([]shared.KeyType, 1000)
	for i := range initial {
		initial[i] = shared.KeyType(i * 10)
	}
	writeKeys(t, dataDir, 0, initial)
	writeKeys(t, dataDir, 1, randomUserKeys(50_000, 30))
	writeKeys(t, dataDir, 2, []shared.KeyType{5})
	cfg := testConfig(t, dataDir, 1, 2)
	cfg.Index.MemoryBudgetBytes = 64 * 1024
	cfg.Verify = true

	rep, err := NewRunner(cfg).Run()
	require.NoError(t, err)
	require.Len(t, rep.Users, 2)

	failed := rep.Users[0]
	assert.GreaterOrEqual(t, failed.FailedAt, 0)
	assert.Equal(t, failed.FailedAt, failed.Inserted)
	assert.ErrorIs(t, failed.Err, shared.AllocationError)
	assert.FileExists(t, report.UserPath(cfg.OutDir, 1))
	assert.Equal(t, 2, rep.Users[1].UserID)
}

func TestRunRecordsResultsAndMetrics(t *testing.T) {
	dataDir := t.TempDir()
	writeKeys(t, dataDir, 0, randomUserKeys(500, 40))
	writeKeys(t, dataDir, 1, randomUserKeys(100, 41))
	writeKeys(t, dataDir, 2, randomUserKeys(100, 42))
	cfg := testConfig(t, dataDir, 0, 1, 2)
	cfg.ResultsDB = filepath.Join(t.TempDir(), "results.db")
	cfg.MetricsFile = filepath.Join(t.TempDir(), "alex_bench.prom")

	runner := NewRunner(cfg, WithRecorder(metrics.NewRecorder()), WithRunID("run-1"))
	rep, err := runner.Run()
	require.NoError(t, err)
	assert.Equal(t, "run-1", rep.RunID)
	require.Len(t, rep.Users, 2)

	store, err := results.Open(cfg.ResultsDB)
	require.NoError(t, err)
	defer store.Close()
	rows, err := store.Rows("run-1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, metrics.PhaseBulkLoad, rows[0].Phase)
	assert.Equal(t, 500, rows[0].Inserted)
	assert.Equal(t, metrics.PhaseUserInsert, rows[2].Phase)
	assert.Equal(t, 2, rows[2].UserID)
	assert.Equal(t, report.UserPath(cfg.OutDir, 2), rows[2].Artifact)

	text, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(text), `alex_bench_runner_keys_total{phase="user_insert"} 200`)

	var summary strings.Builder
	require.NoError(t, rep.WriteSummary(&summary))
	assert.Contains(t, summary.String(), "bulk_load")
	assert.Equal(t, 4, strings.Count(summary.String(), "\n"))
}

func TestRunBinaryEncoding(t *testing.T) {
	dataDir := t.TempDir()
	_, err := tests.WriteUserKeys(dataDir, 0, config.EncodingBinary, tests.GenerateRandomKeys(2_000, 50))
	require.NoError(t, err)
	_, err = tests.WriteUserKeys(dataDir, 1, config.EncodingBinary, tests.GenerateRandomKeys(500, 51))
	require.NoError(t, err)
	cfg := testConfig(t, dataDir, 1)
	cfg.KeysFileType = config.EncodingBinary
	cfg.Verify = true

	rep, err := NewRunner(cfg).Run()
	require.NoError(t, err)
	assert.Equal(t, 2_000, rep.Initial.Inserted)
	require.Len(t, rep.Completed(), 1)
	assert.Equal(t, 500, rep.Users[0].Inserted)
}
