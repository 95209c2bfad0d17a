package models

import (
	"sort"
	"time"
)

// Product is immutable catalog reference data, created once at load time.
type Product struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	UnitPrice float64 `json:"unit_price"`
}

// TransactionRow is one line item of the tabular transaction log:
// multiple rows share a transaction id and are grouped into baskets by
// the transaction store.
type TransactionRow struct {
	TransactionID string    `json:"transaction_id"`
	CustomerID    string    `json:"customer_id"`
	Timestamp     time.Time `json:"timestamp"`
	ProductID     string    `json:"product_id"`
	LineTotal     float64   `json:"line_total"`
}

// Transaction is a basket-level record: one purchase event with the
// set of distinct products it contained. Products is sorted and
// duplicate line items are collapsed.
type Transaction struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Timestamp  time.Time `json:"timestamp"`
	Products   []string  `json:"products"`
	Total      float64   `json:"total"`
}

// Contains reports whether the basket includes the given product.
// Products is kept sorted, so this is a binary search.
func (t *Transaction) Contains(productID string) bool {
	i := sort.SearchStrings(t.Products, productID)
	return i < len(t.Products) && t.Products[i] == productID
}

// ContainsAll reports whether every product of the (sorted) itemset is
// present in the basket.
func (t *Transaction) ContainsAll(items []string) bool {
	for _, item := range items {
		if !t.Contains(item) {
			return false
		}
	}
	return true
}
