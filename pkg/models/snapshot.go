package models

import "time"

// SnapshotInfo is the persisted record of one batch recompute. The
// fitted artifacts themselves live in memory; this row is what survives
// restarts for auditing and the snapshot listing API.
type SnapshotInfo struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	NumTransactions int       `json:"num_transactions"`
	NumProducts     int       `json:"num_products"`
	NumCustomers    int       `json:"num_customers"`
	NumItemsets     int       `json:"num_itemsets"`
	NumRules        int       `json:"num_rules"`
	Options         string    `json:"options"` // engine options as JSON
}
