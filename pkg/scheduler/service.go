// Package scheduler drives periodic snapshot recomputes. New
// transactions never mutate a live snapshot; they wait in the store
// until the next scheduled rebuild swaps a fresh one in.
package scheduler

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stylehive/stylehive-go/pkg/metadatastore"
	"github.com/stylehive/stylehive-go/pkg/models"
	"github.com/stylehive/stylehive-go/pkg/recommend"
	"github.com/stylehive/stylehive-go/utils"
)

// Service rebuilds the recommendation snapshot on a cron schedule and
// records each recompute in the metadata store.
type Service struct {
	engine   *recommend.Service
	metadata metadatastore.MetadataStore
	logger   *utils.Logger

	cron    *cron.Cron
	entryID cron.EntryID

	mu      sync.Mutex
	lastRun *time.Time
	nextRun *time.Time
}

// NewService creates a refresh scheduler. The schedule must be a
// standard cron expression or a descriptor like "@hourly".
func NewService(engine *recommend.Service, metadata metadatastore.MetadataStore, schedule string, logger *utils.Logger) (*Service, error) {
	if logger == nil {
		logger = utils.GetLogger()
	}
	s := &Service{
		engine:   engine,
		metadata: metadata,
		logger:   logger,
		cron:     cron.New(),
	}

	parsed, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}
	s.entryID = s.cron.Schedule(parsed, cron.FuncJob(func() {
		if err := s.Refresh(); err != nil {
			s.logger.Error("scheduled refresh failed", err, utils.Component("scheduler"))
		}
	}))
	return s, nil
}

// Start starts the scheduler.
func (s *Service) Start() {
	s.cron.Start()
	s.updateNextRun()
	s.logger.Info("refresh scheduler started", utils.Component("scheduler"))
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("refresh scheduler stopped", utils.Component("scheduler"))
}

// Refresh reloads the catalog and transaction log from the metadata
// store, rebuilds the snapshot, and records the recompute. It is also
// called directly by the manual-refresh API endpoint.
func (s *Service) Refresh() error {
	catalog, err := s.metadata.ListProducts()
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	rows, err := s.metadata.ListTransactionRows()
	if err != nil {
		return fmt.Errorf("failed to load transaction log: %w", err)
	}

	snapshot, err := s.engine.Rebuild(catalog, rows)
	if err != nil {
		return err
	}

	now := time.Now()
	s.mu.Lock()
	s.lastRun = &now
	s.mu.Unlock()
	s.updateNextRun()

	optsJSON, err := json.Marshal(snapshot.Options)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot options: %w", err)
	}
	info := &models.SnapshotInfo{
		ID:              snapshot.ID,
		CreatedAt:       snapshot.CreatedAt,
		NumTransactions: snapshot.Store.NumTransactions(),
		NumProducts:     snapshot.Store.NumProducts(),
		NumCustomers:    snapshot.Store.NumCustomers(),
		NumItemsets:     len(snapshot.Basket.FrequentItemsets()),
		NumRules:        len(snapshot.Basket.Rules()),
		Options:         string(optsJSON),
	}
	if err := s.metadata.SaveSnapshotInfo(info); err != nil {
		s.logger.Warn("failed to record snapshot",
			utils.Component("scheduler"), utils.String("snapshot_id", snapshot.ID))
	}
	return nil
}

// LastRun returns when the last successful refresh finished, if any.
func (s *Service) LastRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// NextRun returns when the next scheduled refresh will fire.
func (s *Service) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}

func (s *Service) updateNextRun() {
	entry := s.cron.Entry(s.entryID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.Next.IsZero() {
		s.nextRun = nil
		return
	}
	next := entry.Next
	s.nextRun = &next
}
