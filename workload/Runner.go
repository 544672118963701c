package workload

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"alex_bench/config"
	"alex_bench/dataset"
	"alex_bench/index"
	"alex_bench/introspect"
	"alex_bench/logging"
	"alex_bench/metrics"
	"alex_bench/report"
	"alex_bench/results"
	"alex_bench/shared"
	"alex_bench/verify"
)

const shadowDegree = 32

// Runner executes the bulk load followed by one insertion phase per remaining
// user, writing a node info artifact after each phase.
type Runner struct {
	cfg     *config.Config
	loader  *dataset.KeyLoader
	logger  *logging.Logger
	metrics *metrics.Recorder
	runID   string

	// per run
	results *results.Store
	shadow  *verify.Shadow
}

type RunnerOption func(*Runner)

func WithLogger(logger *logging.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithRecorder(recorder *metrics.Recorder) RunnerOption {
	return func(r *Runner) {
		r.metrics = recorder
	}
}

func WithRunID(runID string) RunnerOption {
	return func(r *Runner) {
		r.runID = runID
	}
}

func NewRunner(cfg *config.Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:     cfg,
		loader:  dataset.NewKeyLoader(cfg),
		logger:  logging.NoopLogger(),
		metrics: metrics.NewRecorder(),
		runID:   uuid.New().String(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) indexOptions() []index.Option {
	return []index.Option{
		index.WithExpectedInsertFrac(*r.cfg.Index.ExpectedInsertFrac),
		index.WithMaxNodeSize(r.cfg.Index.MaxNodeSize),
		index.WithMemoryBudget(r.cfg.Index.MemoryBudgetBytes),
	}
}

// Run validates the configuration before touching any dataset. A failure of the
// initial user or of an artifact write ends the run; a failing user phase is
// recorded in the report and the run goes on.
func (r *Runner) Run() (_ *Report, err error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.cfg.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create out dir: %w", err)
	}
	if r.cfg.ResultsDB != "" {
		if r.results, err = results.Open(r.cfg.ResultsDB); err != nil {
			return nil, err
		}
		defer func() {
			if closeErr := r.results.Close(); err == nil {
				err = closeErr
			}
			r.results = nil
		}()
	}
	r.shadow = nil
	if r.cfg.Verify {
		r.shadow = verify.NewShadow(shadowDegree)
	}

	rep := &Report{RunID: r.runID}
	alex, initial, err := r.bulkPhase()
	rep.Initial = initial
	if err != nil {
		return rep, err
	}

	for _, userID := range r.cfg.RemainingUsers() {
		phase, err := r.userPhase(alex, userID)
		rep.Users = append(rep.Users, phase)
		if err != nil {
			return rep, err
		}
	}

	if r.cfg.MetricsFile != "" {
		if err := r.metrics.WriteToTextfile(r.cfg.MetricsFile); err != nil {
			return rep, fmt.Errorf("write metrics: %w", err)
		}
	}
	return rep, nil
}

func (r *Runner) bulkPhase() (*index.Index, PhaseResult, error) {
	userID := r.cfg.InitUserID
	phase := PhaseResult{UserID: userID, FailedAt: -1}

	ds, err := r.loader.Load(r.cfg.KeysFileType, userID)
	if err != nil {
		phase.Err = err
		return nil, phase, fmt.Errorf("initial user %d: %w", userID, err)
	}
	pairs := dataset.BuildValues(ds.Keys, ds.UserID)

	start := time.Now()
	alex, err := BuildIndex(pairs, r.indexOptions()...)
	phase.Elapsed = time.Since(start)
	r.logger.LogBulkLoad(userID, len(pairs), phase.Elapsed, err)
	if err != nil {
		phase.Err = err
		return nil, phase, err
	}
	phase.Inserted = len(pairs)
	r.metrics.ObservePhase(metrics.PhaseBulkLoad, phase.Elapsed, len(pairs))
	if r.shadow != nil {
		r.shadow.AddAll(pairs)
	}

	if err := r.finishPhase(alex, &phase, report.InitialPath(r.cfg.OutDir), metrics.SnapshotLabel(userID, true)); err != nil {
		return nil, phase, err
	}
	if err := r.record(metrics.PhaseBulkLoad, phase); err != nil {
		return nil, phase, err
	}
	return alex, phase, nil
}

func (r *Runner) userPhase(alex *index.Index, userID int) (PhaseResult, error) {
	phase := PhaseResult{UserID: userID, FailedAt: -1}

	ds, err := r.loader.Load(r.cfg.KeysFileType, userID)
	if err != nil {
		if errors.Is(err, shared.DatasetMissingError) || errors.Is(err, shared.MalformedDatasetError) {
			r.logger.LogSkippedUser(userID, err)
			r.metrics.ObserveSkipped()
			phase.Skipped = true
			phase.Err = err
			return phase, nil
		}
		phase.Err = err
		return phase, err
	}

	result, err := InsertKeysForUser(alex, ds)
	phase.Elapsed = result.Elapsed
	phase.Inserted = result.Inserted
	var failure *shared.InsertionFailure
	switch {
	case errors.As(err, &failure):
		r.logger.LogInsertionFailure(failure)
		r.metrics.ObserveFailure(userID)
		phase.FailedAt = failure.Position
		phase.Err = failure
	case err != nil:
		return phase, err
	default:
		r.logger.LogUserPhase(userID, result.Inserted, result.Elapsed)
	}
	r.metrics.ObservePhase(metrics.PhaseUserInsert, result.Elapsed, result.Inserted)
	if r.shadow != nil {
		for _, key := range ds.Keys[:result.Inserted] {
			r.shadow.Add(key)
		}
	}

	if err := r.finishPhase(alex, &phase, report.UserPath(r.cfg.OutDir, userID), metrics.SnapshotLabel(userID, false)); err != nil {
		return phase, err
	}
	return phase, r.record(metrics.PhaseUserInsert, phase)
}

// finishPhase snapshots the index and writes the artifact of the phase.
func (r *Runner) finishPhase(alex *index.Index, phase *PhaseResult, path string, label string) error {
	snapshot := introspect.TakeSnapshot(alex)
	if r.shadow != nil {
		if err := snapshot.Ordered(); err != nil {
			return fmt.Errorf("%w: %s: %w", shared.VerificationError, label, err)
		}
		if err := r.shadow.Check(alex); err != nil {
			return fmt.Errorf("%w: %s: %w", shared.VerificationError, label, err)
		}
	}

	if err := report.WriteNodeInfo(path, snapshot.Leaves, r.cfg.Precision()); err != nil {
		return err
	}
	phase.Leaves = snapshot.NumLeaves()
	phase.ModelNodes = snapshot.ModelNodes
	phase.Artifact = path

	stats := alex.Stats()
	r.logger.LogSnapshot(path, snapshot.NumLeaves(), snapshot.ModelNodes)
	r.logger.LogIndexStats(label,
		"keys", stats.NumKeys,
		"data_nodes", stats.NumDataNodes,
		"model_nodes", stats.NumModelNodes,
		"sideways_splits", stats.NumSidewaysSplits,
		"downward_splits", stats.NumDownwardSplits,
		"expansions", stats.NumModelNodeExpansions,
		"memory_bytes", stats.MemoryUsedBytes,
	)
	r.metrics.ObserveSnapshot(label, snapshot.NumLeaves(), snapshot.ModelNodes)
	r.metrics.ObserveIndexStats(stats)
	return nil
}

func (r *Runner) record(phaseName string, phase PhaseResult) error {
	if r.results == nil {
		return nil
	}
	return r.results.Record(results.Row{
		RunID:      r.runID,
		Phase:      phaseName,
		UserID:     phase.UserID,
		ElapsedNs:  phase.Elapsed.Nanoseconds(),
		Inserted:   phase.Inserted,
		FailedAt:   phase.FailedAt,
		Leaves:     phase.Leaves,
		ModelNodes: phase.ModelNodes,
		Artifact:   phase.Artifact,
	})
}

func (r *Runner) RunID() string {
	return r.runID
}
