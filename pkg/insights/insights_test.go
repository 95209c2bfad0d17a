package insights

import (
	"math"
	"testing"
	"time"

	"github.com/stylehive/stylehive-go/pkg/models"
	"github.com/stylehive/stylehive-go/pkg/txstore"
)

func row(tx, customer string, month, dayOfMonth int, product string, total float64) models.TransactionRow {
	return models.TransactionRow{
		TransactionID: tx,
		CustomerID:    customer,
		Timestamp:     time.Date(2024, time.Month(month), dayOfMonth, 0, 0, 0, 0, time.UTC),
		ProductID:     product,
		LineTotal:     total,
	}
}

func testStore(t *testing.T) *txstore.Store {
	t.Helper()
	catalog := []models.Product{
		{ID: "jeans", Name: "Slim Jeans", Category: "bottoms", UnitPrice: 60},
		{ID: "scarf", Name: "Wool Scarf", Category: "accessories", UnitPrice: 20},
		{ID: "tshirt", Name: "Basic Tee", Category: "tops", UnitPrice: 15},
	}
	rows := []models.TransactionRow{
		row("t1", "c1", 7, 1, "tshirt", 15),
		row("t1", "c1", 7, 1, "jeans", 60),
		row("t2", "c2", 7, 15, "tshirt", 15),
		row("t3", "c1", 8, 3, "jeans", 60),
	}
	store, err := txstore.Load(catalog, rows)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return store
}

func TestSummary(t *testing.T) {
	summary, err := NewAnalyzer(testStore(t)).Summary()
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}

	if summary.NumTransactions != 3 || summary.NumCustomers != 2 || summary.NumProducts != 3 {
		t.Errorf("Unexpected counts: %+v", summary)
	}
	if summary.TotalRevenue != 150 {
		t.Errorf("Expected revenue 150, got %v", summary.TotalRevenue)
	}
	// Basket sizes 2, 1, 1.
	want := 4.0 / 3.0
	if math.Abs(summary.MeanBasketSize-want) > 1e-9 {
		t.Errorf("Expected mean basket size %v, got %v", want, summary.MeanBasketSize)
	}
	// Basket values 75, 15, 60.
	if summary.MedianBasketValue != 60 {
		t.Errorf("Expected median basket value 60, got %v", summary.MedianBasketValue)
	}
}

func TestSummaryEmptyStore(t *testing.T) {
	store, err := txstore.Load([]models.Product{{ID: "tshirt", Name: "Basic Tee"}}, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	summary, err := NewAnalyzer(store).Summary()
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary.NumTransactions != 0 || summary.TotalRevenue != 0 {
		t.Errorf("Expected zeroed summary, got %+v", summary)
	}
}

func TestTopProducts(t *testing.T) {
	top := NewAnalyzer(testStore(t)).TopProducts(0)
	if len(top) != 2 {
		t.Fatalf("Expected 2 purchased products, got %d", len(top))
	}
	// jeans revenue share: 37.5 + 60 = 97.5; tshirt: 37.5 + 15 = 52.5.
	if top[0].ProductID != "jeans" {
		t.Errorf("Expected jeans first, got %s", top[0].ProductID)
	}
	if math.Abs(top[0].Revenue-97.5) > 1e-9 {
		t.Errorf("Expected jeans revenue 97.5, got %v", top[0].Revenue)
	}
	if top[0].Baskets != 2 {
		t.Errorf("Expected jeans in 2 baskets, got %d", top[0].Baskets)
	}

	limited := NewAnalyzer(testStore(t)).TopProducts(1)
	if len(limited) != 1 {
		t.Errorf("Expected truncation to 1, got %d", len(limited))
	}
}

func TestCategoryBreakdown(t *testing.T) {
	categories := NewAnalyzer(testStore(t)).CategoryBreakdown()
	if len(categories) != 2 {
		t.Fatalf("Expected 2 categories, got %d", len(categories))
	}
	if categories[0].Category != "bottoms" {
		t.Errorf("Expected bottoms first by revenue, got %s", categories[0].Category)
	}
}

func TestMonthlyRevenue(t *testing.T) {
	months := NewAnalyzer(testStore(t)).MonthlyRevenue()
	if len(months) != 2 {
		t.Fatalf("Expected 2 months, got %d", len(months))
	}
	if months[0].Month != "2024-07" || months[1].Month != "2024-08" {
		t.Errorf("Unexpected month order: %v", months)
	}
	if months[0].Transactions != 2 || months[0].Revenue != 90 {
		t.Errorf("Unexpected July stats: %+v", months[0])
	}
}

func TestCustomerSegments(t *testing.T) {
	segments, err := NewAnalyzer(testStore(t)).CustomerSegments()
	if err != nil {
		t.Fatalf("CustomerSegments failed: %v", err)
	}
	if len(segments) == 0 {
		t.Fatal("Expected at least one segment")
	}

	customers := 0
	revenue := 0.0
	for _, seg := range segments {
		customers += seg.Customers
		revenue += seg.Revenue
		if seg.MinSpend > seg.MaxSpend {
			t.Errorf("Segment %s has min %v > max %v", seg.Name, seg.MinSpend, seg.MaxSpend)
		}
	}
	if customers != 2 {
		t.Errorf("Segments must cover every customer, got %d", customers)
	}
	if revenue != 150 {
		t.Errorf("Segment revenue must sum to total, got %v", revenue)
	}
}

func TestCustomerSegmentsEmptyStore(t *testing.T) {
	store, err := txstore.Load([]models.Product{{ID: "tshirt"}}, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	segments, err := NewAnalyzer(store).CustomerSegments()
	if err != nil {
		t.Fatalf("CustomerSegments failed: %v", err)
	}
	if segments != nil {
		t.Errorf("Expected nil segments, got %v", segments)
	}
}
