package metadatastore

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stylehive/stylehive-go/pkg/models"
)

// SQLiteStore provides SQLite-based persistence for the catalog,
// transaction log, and snapshot history
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based storage instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Open database with connection pooling parameters
	// Format: file:path?param=value
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writes, so the pool stays small.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}

	// In-memory databases used in tests report "delete" or "memory"
	// instead of WAL; both are acceptable there.
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return nil, fmt.Errorf("failed to check journal mode: %w", err)
	}
	if journalMode != "wal" && journalMode != "delete" && journalMode != "memory" {
		return nil, fmt.Errorf("unexpected journal mode: got %s", journalMode)
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// retryOnBusy retries a database operation if it fails due to SQLITE_BUSY
// This provides an additional safety net on top of the busy_timeout pragma
func (s *SQLiteStore) retryOnBusy(operation func() error, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if err.Error() == "database is locked (5) (SQLITE_BUSY)" {
			// Exponential backoff: 10ms, 20ms, 40ms, 80ms, 160ms
			backoff := time.Duration(10*(1<<uint(i))) * time.Millisecond
			time.Sleep(backoff)
			continue
		}

		return err
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

// initSchema creates the database schema if it doesn't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT,
		unit_price REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transaction_rows (
		transaction_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		product_id TEXT NOT NULL,
		line_total REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transaction_rows_tx ON transaction_rows(transaction_id);
	CREATE INDEX IF NOT EXISTS idx_transaction_rows_time ON transaction_rows(timestamp);

	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		num_transactions INTEGER NOT NULL,
		num_products INTEGER NOT NULL,
		num_customers INTEGER NOT NULL,
		num_itemsets INTEGER NOT NULL,
		num_rules INTEGER NOT NULL,
		options TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveProducts upserts catalog rows in a single transaction.
func (s *SQLiteStore) SaveProducts(products []models.Product) error {
	return s.retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO products (id, name, category, unit_price)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				category = excluded.category,
				unit_price = excluded.unit_price
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range products {
			if _, err := stmt.Exec(p.ID, p.Name, p.Category, p.UnitPrice); err != nil {
				return fmt.Errorf("failed to save product %s: %w", p.ID, err)
			}
		}
		return tx.Commit()
	}, 5)
}

// GetProduct retrieves a catalog row by id.
func (s *SQLiteStore) GetProduct(id string) (*models.Product, error) {
	var p models.Product
	err := s.db.QueryRow(`
		SELECT id, name, category, unit_price FROM products WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.UnitPrice)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// ListProducts returns the catalog ordered by product id.
func (s *SQLiteStore) ListProducts() ([]models.Product, error) {
	rows, err := s.db.Query(`
		SELECT id, name, category, unit_price FROM products ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// DeleteProduct removes a catalog row.
func (s *SQLiteStore) DeleteProduct(id string) error {
	_, err := s.db.Exec(`DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// SaveTransactionRows appends raw log rows in a single transaction.
func (s *SQLiteStore) SaveTransactionRows(logRows []models.TransactionRow) error {
	return s.retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO transaction_rows (transaction_id, customer_id, timestamp, product_id, line_total)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, r := range logRows {
			if _, err := stmt.Exec(r.TransactionID, r.CustomerID,
				r.Timestamp.UTC().Format(time.RFC3339), r.ProductID, r.LineTotal); err != nil {
				return fmt.Errorf("failed to save row for transaction %s: %w", r.TransactionID, err)
			}
		}
		return tx.Commit()
	}, 5)
}

// ListTransactionRows returns the whole log ordered by timestamp, then
// transaction id, matching the order the engine normalizes on.
func (s *SQLiteStore) ListTransactionRows() ([]models.TransactionRow, error) {
	rows, err := s.db.Query(`
		SELECT transaction_id, customer_id, timestamp, product_id, line_total
		FROM transaction_rows
		ORDER BY timestamp, transaction_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction rows: %w", err)
	}
	defer rows.Close()

	var out []models.TransactionRow
	for rows.Next() {
		var r models.TransactionRow
		var ts string
		if err := rows.Scan(&r.TransactionID, &r.CustomerID, &ts, &r.ProductID, &r.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp %q: %w", ts, err)
		}
		r.Timestamp = parsed
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountTransactionRows returns the number of raw log rows.
func (s *SQLiteStore) CountTransactionRows() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM transaction_rows`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transaction rows: %w", err)
	}
	return count, nil
}

// DeleteTransactionRowsBefore removes log rows older than the RFC3339
// cutoff and reports how many were deleted.
func (s *SQLiteStore) DeleteTransactionRowsBefore(cutoff string) (int, error) {
	res, err := s.db.Exec(`DELETE FROM transaction_rows WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transaction rows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return int(n), nil
}

// SaveSnapshotInfo records one batch recompute.
func (s *SQLiteStore) SaveSnapshotInfo(info *models.SnapshotInfo) error {
	return s.retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO snapshots (id, created_at, num_transactions, num_products, num_customers, num_itemsets, num_rules, options)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, info.ID, info.CreatedAt.UTC().Format(time.RFC3339),
			info.NumTransactions, info.NumProducts, info.NumCustomers,
			info.NumItemsets, info.NumRules, info.Options)
		if err != nil {
			return fmt.Errorf("failed to save snapshot %s: %w", info.ID, err)
		}
		return nil
	}, 5)
}

// GetSnapshotInfo retrieves one recompute record by id.
func (s *SQLiteStore) GetSnapshotInfo(id string) (*models.SnapshotInfo, error) {
	var info models.SnapshotInfo
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, created_at, num_transactions, num_products, num_customers, num_itemsets, num_rules, options
		FROM snapshots WHERE id = ?
	`, id).Scan(&info.ID, &createdAt, &info.NumTransactions, &info.NumProducts,
		&info.NumCustomers, &info.NumItemsets, &info.NumRules, &info.Options)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
	}
	info.CreatedAt = parsed
	return &info, nil
}

// ListSnapshotInfos returns recompute records newest first. limit <= 0
// returns all of them.
func (s *SQLiteStore) ListSnapshotInfos(limit int) ([]*models.SnapshotInfo, error) {
	query := `
		SELECT id, created_at, num_transactions, num_products, num_customers, num_itemsets, num_rules, options
		FROM snapshots ORDER BY created_at DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var infos []*models.SnapshotInfo
	for rows.Next() {
		var info models.SnapshotInfo
		var createdAt string
		if err := rows.Scan(&info.ID, &createdAt, &info.NumTransactions, &info.NumProducts,
			&info.NumCustomers, &info.NumItemsets, &info.NumRules, &info.Options); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
		}
		info.CreatedAt = parsed
		infos = append(infos, &info)
	}
	return infos, rows.Err()
}
