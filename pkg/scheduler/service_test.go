package scheduler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stylehive/stylehive-go/pkg/metadatastore"
	"github.com/stylehive/stylehive-go/pkg/models"
	"github.com/stylehive/stylehive-go/pkg/recommend"
)

func seededMetadata(t *testing.T) metadatastore.MetadataStore {
	t.Helper()
	store, err := metadatastore.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	catalog := []models.Product{
		{ID: "jeans", Name: "Slim Jeans", Category: "bottoms", UnitPrice: 59.90},
		{ID: "tshirt", Name: "Basic Tee", Category: "tops", UnitPrice: 14.90},
	}
	if err := store.SaveProducts(catalog); err != nil {
		t.Fatalf("SaveProducts failed: %v", err)
	}
	ts := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.TransactionRow{
		{TransactionID: "t1", CustomerID: "c1", Timestamp: ts, ProductID: "tshirt", LineTotal: 14.90},
		{TransactionID: "t1", CustomerID: "c1", Timestamp: ts, ProductID: "jeans", LineTotal: 59.90},
	}
	if err := store.SaveTransactionRows(rows); err != nil {
		t.Fatalf("SaveTransactionRows failed: %v", err)
	}
	return store
}

func testEngine(t *testing.T) *recommend.Service {
	t.Helper()
	opts := recommend.DefaultOptions()
	opts.MinSupport = 0.3
	engine, err := recommend.NewService(opts, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return engine
}

func TestNewServiceRejectsBadSchedule(t *testing.T) {
	if _, err := NewService(testEngine(t), seededMetadata(t), "not a cron expr", nil); err == nil {
		t.Error("Expected invalid cron expression to be rejected")
	}
}

func TestRefreshBuildsSnapshotFromStore(t *testing.T) {
	engine := testEngine(t)
	metadata := seededMetadata(t)
	service, err := NewService(engine, metadata, "@hourly", nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if err := service.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	snapshot, err := engine.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snapshot.Store.NumTransactions() != 1 {
		t.Errorf("Expected 1 transaction, got %d", snapshot.Store.NumTransactions())
	}
	if snapshot.Store.NumProducts() != 2 {
		t.Errorf("Expected 2 products, got %d", snapshot.Store.NumProducts())
	}

	if service.LastRun() == nil {
		t.Error("Expected LastRun to be set after a refresh")
	}

	// The recompute is recorded for the history API.
	infos, err := metadata.ListSnapshotInfos(10)
	if err != nil {
		t.Fatalf("ListSnapshotInfos failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("Expected 1 snapshot record, got %d", len(infos))
	}
	if infos[0].ID != snapshot.ID {
		t.Errorf("Recorded id %s does not match snapshot %s", infos[0].ID, snapshot.ID)
	}
	if infos[0].Options == "" {
		t.Error("Expected engine options recorded as JSON")
	}
}

func TestRefreshEmptyStoreStillSwapsSnapshot(t *testing.T) {
	store, err := metadatastore.NewSQLiteStore(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine := testEngine(t)
	service, err := NewService(engine, store, "@hourly", nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	if err := service.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	snapshot, err := engine.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snapshot.Store.NumTransactions() != 0 {
		t.Errorf("Expected empty snapshot, got %d transactions", snapshot.Store.NumTransactions())
	}
}

func TestStartSetsNextRun(t *testing.T) {
	service, err := NewService(testEngine(t), seededMetadata(t), "@hourly", nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	service.Start()
	defer service.Stop()

	if service.NextRun() == nil {
		t.Error("Expected NextRun after Start")
	}
}
