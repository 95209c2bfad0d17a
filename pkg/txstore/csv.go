package txstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stylehive/stylehive-go/pkg/models"
)

// Transaction log column order: transaction id, customer id, timestamp,
// product id, line total. Header names are matched case-insensitively.
var transactionColumns = []string{"transaction_id", "customer_id", "timestamp", "product_id", "line_total"}

var catalogColumns = []string{"product_id", "name", "category", "unit_price"}

// ReadTransactionLog parses a tabular transaction log, one row per
// product line item. Malformed input aborts with a DataFormatError;
// there is no partial result.
func ReadTransactionLog(r io.Reader) ([]models.TransactionRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &models.DataFormatError{Reason: fmt.Sprintf("unreadable csv: %v", err)}
	}
	if len(records) == 0 {
		return nil, &models.DataFormatError{Reason: "empty transaction log"}
	}
	cols, err := columnIndices(records[0], transactionColumns)
	if err != nil {
		return nil, err
	}

	rows := make([]models.TransactionRow, 0, len(records)-1)
	for i, record := range records[1:] {
		line := i + 2 // 1-based, after the header
		get := func(name string) string {
			idx := cols[name]
			if idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		ts, err := parseTimestamp(get("timestamp"))
		if err != nil {
			return nil, &models.DataFormatError{Line: line, Reason: err.Error()}
		}
		total, err := strconv.ParseFloat(get("line_total"), 64)
		if err != nil {
			return nil, &models.DataFormatError{Line: line, Reason: "bad line total " + get("line_total")}
		}

		row := models.TransactionRow{
			TransactionID: get("transaction_id"),
			CustomerID:    get("customer_id"),
			Timestamp:     ts,
			ProductID:     get("product_id"),
			LineTotal:     total,
		}
		if row.TransactionID == "" || row.CustomerID == "" || row.ProductID == "" {
			return nil, &models.DataFormatError{Line: line, Reason: "missing transaction id, customer id, or product id"}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadProductCatalog parses the product reference file.
func ReadProductCatalog(r io.Reader) ([]models.Product, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &models.DataFormatError{Reason: fmt.Sprintf("unreadable csv: %v", err)}
	}
	if len(records) == 0 {
		return nil, &models.DataFormatError{Reason: "empty product catalog"}
	}
	cols, err := columnIndices(records[0], catalogColumns)
	if err != nil {
		return nil, err
	}

	products := make([]models.Product, 0, len(records)-1)
	for i, record := range records[1:] {
		line := i + 2
		get := func(name string) string {
			idx := cols[name]
			if idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}
		price, err := strconv.ParseFloat(get("unit_price"), 64)
		if err != nil {
			return nil, &models.DataFormatError{Line: line, Reason: "bad unit price " + get("unit_price")}
		}
		p := models.Product{
			ID:        get("product_id"),
			Name:      get("name"),
			Category:  get("category"),
			UnitPrice: price,
		}
		if p.ID == "" {
			return nil, &models.DataFormatError{Line: line, Reason: "missing product id"}
		}
		products = append(products, p)
	}
	return products, nil
}

// LoadTransactionLogFile reads a transaction log from disk.
func LoadTransactionLogFile(path string) ([]models.TransactionRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transaction log: %w", err)
	}
	defer f.Close()
	return ReadTransactionLog(f)
}

// LoadProductCatalogFile reads a product catalog from disk.
func LoadProductCatalogFile(path string) ([]models.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open product catalog: %w", err)
	}
	defer f.Close()
	return ReadProductCatalog(f)
}

func columnIndices(header, wanted []string) (map[string]int, error) {
	cols := make(map[string]int, len(wanted))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	out := make(map[string]int, len(wanted))
	for _, name := range wanted {
		idx, ok := cols[name]
		if !ok {
			return nil, &models.DataFormatError{Line: 1, Reason: "missing column " + name}
		}
		out[name] = idx
	}
	return out, nil
}

// parseTimestamp accepts ISO 8601 (with or without a time component)
// or Unix epoch seconds.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	if epoch, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(epoch, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}
