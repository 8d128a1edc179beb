package reconciliation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"payment-reconciliation/internal/discrepancy"
	"payment-reconciliation/internal/feed"
	"payment-reconciliation/internal/locker"
	"payment-reconciliation/internal/matching"
	"payment-reconciliation/internal/models"
	"payment-reconciliation/internal/repositories"
)

// lockTTL bounds how long a crashed worker can hold a run key.
const lockTTL = 30 * time.Minute

// Service drives the matching pipeline for one (gateway, period) key at a
// time per key: fetch both feeds, match, classify leftovers, aggregate, and
// persist the run. Runs for distinct keys may execute concurrently; a key
// whose run is still in progress is rejected with InvalidStateError.
type Service struct {
	feed       feed.TransactionFeed
	matcher    *matching.MatchEngine
	classifier *discrepancy.Classifier
	runs       repositories.RunRepository
	discs      repositories.DiscrepancyRepository
	locker     locker.RunLocker
	logger     *logrus.Logger
}

func NewService(
	txFeed feed.TransactionFeed,
	matcher *matching.MatchEngine,
	classifier *discrepancy.Classifier,
	runs repositories.RunRepository,
	discs repositories.DiscrepancyRepository,
	runLocker locker.RunLocker,
	logger *logrus.Logger,
) *Service {
	return &Service{
		feed:       txFeed,
		matcher:    matcher,
		classifier: classifier,
		runs:       runs,
		discs:      discs,
		locker:     runLocker,
		logger:     logger,
	}
}

// Run executes one reconciliation pass. Validation failures surface before a
// run record exists; cancellation leaves a cancelled run with its partial
// matches; an invariant violation leaves a failed, quarantined run.
func (s *Service) Run(ctx context.Context, key models.RunKey, initiatedBy string) (*models.ReconciliationRun, error) {
	release, err := s.locker.Acquire(ctx, key.String(), lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	platformTxs, gatewayTxs, err := s.feed.Fetch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch feed for %s: %w", key, err)
	}
	if err := feed.Validate(platformTxs, gatewayTxs); err != nil {
		return nil, err
	}

	run := NewRun(key, initiatedBy)
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	started := time.Now()

	result, matchErr := s.matcher.Match(ctx, run.ID, platformTxs, gatewayTxs)
	if matchErr != nil {
		run.Matches = result.Matches
		run.ProcessingTimeMs = time.Since(started).Milliseconds()
		if err := Cancel(run); err != nil {
			return run, err
		}
		if err := s.runs.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			return run, fmt.Errorf("persist cancelled run: %w", err)
		}
		s.logger.WithFields(logrus.Fields{
			"run_id":  run.ID,
			"gateway": run.Gateway,
			"matches": len(run.Matches),
		}).Warn("reconciliation run cancelled")
		return run, fmt.Errorf("run %s cancelled: %w", run.ID, matchErr)
	}

	discs := s.classifier.Classify(run.ID, result.UnmatchedPlatform, result.UnmatchedGateway)
	run.ProcessingTimeMs = time.Since(started).Milliseconds()

	if err := Aggregate(run, platformTxs, gatewayTxs, result.Matches, discs); err != nil {
		if finishErr := s.runs.FinishRun(ctx, run); finishErr != nil {
			s.logger.WithFields(logrus.Fields{"run_id": run.ID}).Error(finishErr)
		}
		s.logger.WithFields(logrus.Fields{
			"run_id":  run.ID,
			"gateway": run.Gateway,
		}).Error(err)
		return run, err
	}

	if err := s.discs.InsertDiscrepancies(ctx, discs); err != nil {
		if failErr := Fail(run); failErr == nil {
			_ = s.runs.FinishRun(context.WithoutCancel(ctx), run)
		}
		return run, fmt.Errorf("persist discrepancies: %w", err)
	}

	if err := Complete(run); err != nil {
		return run, err
	}
	if err := s.runs.FinishRun(ctx, run); err != nil {
		return run, fmt.Errorf("persist completed run: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":        run.ID,
		"gateway":       run.Gateway,
		"total":         run.TotalTransactions,
		"matched":       run.ReconciledTransactions,
		"discrepancies": len(discs),
		"accuracy":      run.MatchingAccuracy,
		"duration_ms":   run.ProcessingTimeMs,
	}).Info("reconciliation run completed")

	return run, nil
}

// RunOutcome is one entry of a RunAll batch.
type RunOutcome struct {
	Key models.RunKey
	Run *models.ReconciliationRun
	Err error
}

// RunAll executes one run per key in parallel. Keys share no mutable state,
// so a worker per key is safe; duplicate keys in the batch lose the lock and
// report InvalidStateError.
func (s *Service) RunAll(ctx context.Context, keys []models.RunKey, initiatedBy string) []RunOutcome {
	outcomes := make([]RunOutcome, len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key models.RunKey) {
			defer wg.Done()
			run, err := s.Run(ctx, key, initiatedBy)
			outcomes[i] = RunOutcome{Key: key, Run: run, Err: err}
		}(i, key)
	}
	wg.Wait()

	return outcomes
}
