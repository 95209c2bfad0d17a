// Package recommend implements the StyleHive recommendation engine:
// frequent-itemset mining with association rules, latent-factor
// product similarity, and a hybrid blend of the two, computed as a
// batch over an immutable transaction snapshot.
package recommend

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stylehive/stylehive-go/pkg/models"
	"github.com/stylehive/stylehive-go/pkg/txstore"
	"github.com/stylehive/stylehive-go/utils"
)

// ErrNoSnapshot is returned by queries before the first rebuild.
var ErrNoSnapshot = errors.New("no recommendation snapshot available; rebuild first")

// Options holds the engine configuration.
type Options struct {
	MinSupport     float64         `json:"min_support" yaml:"min_support"`
	MinConfidence  float64         `json:"min_confidence" yaml:"min_confidence"`
	MaxItemsetSize int             `json:"max_itemset_size" yaml:"max_itemset_size"`
	CFRank         int             `json:"cf_rank" yaml:"cf_rank"`
	TopK           int             `json:"top_k" yaml:"top_k"`
	Weights        Weights         `json:"hybrid_weights" yaml:"hybrid_weights"`
	Aggregation    AggregationMode `json:"aggregation" yaml:"aggregation"`
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MinSupport:     0.01,
		MinConfidence:  0.3,
		MaxItemsetSize: 3,
		CFRank:         3,
		TopK:           5,
		Weights:        DefaultWeights(),
		Aggregation:    AggregateSum,
	}
}

// Validate rejects configurations that no component could honor.
func (o Options) Validate() error {
	if o.MinSupport < 0 || o.MinSupport > 1 {
		return fmt.Errorf("min support must be in [0, 1], got %g", o.MinSupport)
	}
	if o.MinConfidence < 0 || o.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be in [0, 1], got %g", o.MinConfidence)
	}
	if o.MaxItemsetSize < 2 {
		return fmt.Errorf("max itemset size must be at least 2, got %d", o.MaxItemsetSize)
	}
	if o.CFRank < 1 {
		return fmt.Errorf("cf rank must be positive, got %d", o.CFRank)
	}
	if o.TopK < 1 {
		return fmt.Errorf("top k must be positive, got %d", o.TopK)
	}
	return o.Weights.Validate()
}

// Snapshot is the explicit, owned set of derived artifacts produced by
// one batch recompute: the normalized transactions plus fitted
// analyzers. A snapshot is immutable after Build and safe for
// concurrent readers; data changes produce a whole new snapshot.
type Snapshot struct {
	ID        string
	CreatedAt time.Time
	Options   Options

	Store         *txstore.Store
	Basket        *MarketBasketAnalyzer
	Collaborative *CollaborativeFilteringRecommender
	Hybrid        *HybridRecommender
	Evaluator     *BasketEvaluator
}

// BuildSnapshot normalizes the raw rows and fits every analyzer.
func BuildSnapshot(catalog []models.Product, rows []models.TransactionRow, opts Options) (*Snapshot, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	store, err := txstore.Load(catalog, rows)
	if err != nil {
		return nil, err
	}

	basket := NewMarketBasketAnalyzer(opts.MinSupport, opts.MinConfidence, opts.MaxItemsetSize)
	if err := basket.Fit(store); err != nil {
		return nil, fmt.Errorf("market basket fit failed: %w", err)
	}
	collaborative := NewCollaborativeFilteringRecommender(opts.CFRank)
	if err := collaborative.Fit(store); err != nil {
		return nil, fmt.Errorf("collaborative filtering fit failed: %w", err)
	}
	hybrid := NewHybridRecommender(store, basket, collaborative)

	return &Snapshot{
		ID:            uuid.New().String(),
		CreatedAt:     time.Now().UTC(),
		Options:       opts,
		Store:         store,
		Basket:        basket,
		Collaborative: collaborative,
		Hybrid:        hybrid,
		Evaluator:     NewBasketEvaluator(store, basket, hybrid, opts.Weights, opts.Aggregation),
	}, nil
}

// Recommend blends both signals with the snapshot's configured weights.
func (s *Snapshot) Recommend(productID string, topK int) ([]models.Recommendation, error) {
	return s.Hybrid.Recommend(productID, topK, s.Options.Weights)
}

// Service owns the current snapshot and swaps in a new one on each
// batch recompute. Queries always run against a consistent snapshot.
type Service struct {
	opts   Options
	logger *utils.Logger

	mu      sync.RWMutex
	current *Snapshot
}

// NewService creates a service with validated options.
func NewService(opts Options, logger *utils.Logger) (*Service, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Service{opts: opts, logger: logger}, nil
}

// Rebuild recomputes all derived artifacts from scratch and swaps the
// snapshot on success. A failed rebuild leaves the previous snapshot
// in place.
func (s *Service) Rebuild(catalog []models.Product, rows []models.TransactionRow) (*Snapshot, error) {
	start := time.Now()
	snapshot, err := BuildSnapshot(catalog, rows, s.opts)
	if err != nil {
		s.logger.Error("snapshot rebuild failed", err, utils.Component("recommend"))
		return nil, err
	}

	s.mu.Lock()
	s.current = snapshot
	s.mu.Unlock()

	s.logger.Info("snapshot rebuilt",
		utils.Component("recommend"),
		utils.String("snapshot_id", snapshot.ID),
		utils.Int("transactions", snapshot.Store.NumTransactions()),
		utils.Int("products", snapshot.Store.NumProducts()),
		utils.Int("rules", len(snapshot.Basket.Rules())),
		utils.String("took", time.Since(start).Round(time.Millisecond).String()),
	)
	return snapshot, nil
}

// Snapshot returns the current snapshot.
func (s *Service) Snapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoSnapshot
	}
	return s.current, nil
}

// Options returns the engine configuration.
func (s *Service) Options() Options {
	return s.opts
}
