package metadatastore

import "github.com/stylehive/stylehive-go/pkg/models"

// MetadataStore is the interface for engine persistence: the product
// catalog, the raw transaction log, and the history of snapshot
// recomputes. The fitted recommendation artifacts are rebuilt from
// these rows; they are never persisted themselves.
type MetadataStore interface {
	// Catalog operations
	SaveProducts(products []models.Product) error
	GetProduct(id string) (*models.Product, error)
	ListProducts() ([]models.Product, error)
	DeleteProduct(id string) error

	// Transaction log operations
	SaveTransactionRows(rows []models.TransactionRow) error
	ListTransactionRows() ([]models.TransactionRow, error)
	CountTransactionRows() (int, error)
	DeleteTransactionRowsBefore(cutoff string) (int, error)

	// Snapshot history operations
	SaveSnapshotInfo(info *models.SnapshotInfo) error
	GetSnapshotInfo(id string) (*models.SnapshotInfo, error)
	ListSnapshotInfos(limit int) ([]*models.SnapshotInfo, error)

	Close() error
}
