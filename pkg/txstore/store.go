// Package txstore normalizes raw transaction rows into an immutable
// basket-level snapshot with the indices the analyzers query.
package txstore

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/stylehive/stylehive-go/pkg/models"
)

// Store is an immutable snapshot of the transaction log: one
// Transaction per purchase event plus product/customer indices for
// O(1) membership checks. Loaded once per analysis session; all
// derived artifacts are recomputed from it wholesale.
type Store struct {
	products      map[string]models.Product
	productIDs    []string
	productIndex  map[string]int
	customerIDs   []string
	customerIndex map[string]int
	transactions  []models.Transaction
	byProduct     map[string][]int // product id -> indices into transactions
}

// Load validates raw rows against the catalog and groups them into
// baskets. Every row must carry a transaction id, a customer id and a
// product id present in the catalog; any violation aborts the load
// with a DataFormatError and nothing is kept.
func Load(catalog []models.Product, rows []models.TransactionRow) (*Store, error) {
	s := &Store{
		products:      make(map[string]models.Product, len(catalog)),
		productIndex:  make(map[string]int),
		customerIndex: make(map[string]int),
		byProduct:     make(map[string][]int),
	}

	for _, p := range catalog {
		if p.ID == "" {
			return nil, &models.DataFormatError{Reason: "catalog product without id"}
		}
		if _, dup := s.products[p.ID]; dup {
			return nil, &models.DataFormatError{Reason: "duplicate catalog product " + p.ID}
		}
		s.products[p.ID] = p
		s.productIDs = append(s.productIDs, p.ID)
	}
	sort.Strings(s.productIDs)
	for i, id := range s.productIDs {
		s.productIndex[id] = i
	}

	type basket struct {
		tx       models.Transaction
		products map[string]bool
	}
	baskets := make(map[string]*basket)
	var order []string

	for i, row := range rows {
		line := i + 1
		switch {
		case row.TransactionID == "":
			return nil, &models.DataFormatError{Line: line, Reason: "missing transaction id"}
		case row.CustomerID == "":
			return nil, &models.DataFormatError{Line: line, Reason: "missing customer id"}
		case row.ProductID == "":
			return nil, &models.DataFormatError{Line: line, Reason: "missing product id"}
		}
		if _, ok := s.products[row.ProductID]; !ok {
			return nil, &models.DataFormatError{Line: line, Reason: "product " + row.ProductID + " not in catalog"}
		}

		b, ok := baskets[row.TransactionID]
		if !ok {
			b = &basket{
				tx: models.Transaction{
					ID:         row.TransactionID,
					CustomerID: row.CustomerID,
					Timestamp:  row.Timestamp,
				},
				products: make(map[string]bool),
			}
			baskets[row.TransactionID] = b
			order = append(order, row.TransactionID)
		} else if b.tx.CustomerID != row.CustomerID {
			return nil, &models.DataFormatError{Line: line, Reason: "transaction " + row.TransactionID + " spans multiple customers"}
		}
		if row.Timestamp.Before(b.tx.Timestamp) {
			b.tx.Timestamp = row.Timestamp
		}
		b.products[row.ProductID] = true
		b.tx.Total += row.LineTotal
	}

	// Deterministic transaction order: timestamp, then id.
	sort.Slice(order, func(i, j int) bool {
		a, b := baskets[order[i]].tx, baskets[order[j]].tx
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})

	customerSeen := make(map[string]bool)
	for _, id := range order {
		b := baskets[id]
		tx := b.tx
		tx.Products = make([]string, 0, len(b.products))
		for p := range b.products {
			tx.Products = append(tx.Products, p)
		}
		sort.Strings(tx.Products)

		idx := len(s.transactions)
		s.transactions = append(s.transactions, tx)
		for _, p := range tx.Products {
			s.byProduct[p] = append(s.byProduct[p], idx)
		}
		if !customerSeen[tx.CustomerID] {
			customerSeen[tx.CustomerID] = true
			s.customerIDs = append(s.customerIDs, tx.CustomerID)
		}
	}
	sort.Strings(s.customerIDs)
	for i, id := range s.customerIDs {
		s.customerIndex[id] = i
	}

	return s, nil
}

// HasProduct reports whether the product exists in the catalog.
func (s *Store) HasProduct(productID string) bool {
	_, ok := s.products[productID]
	return ok
}

// Product returns catalog data for a product id.
func (s *Store) Product(productID string) (models.Product, bool) {
	p, ok := s.products[productID]
	return p, ok
}

// ProductIDs returns the catalog's product ids in sorted order.
func (s *Store) ProductIDs() []string {
	return s.productIDs
}

// ProductIndex returns the dense column index of a product in the
// basket matrix.
func (s *Store) ProductIndex(productID string) (int, bool) {
	i, ok := s.productIndex[productID]
	return i, ok
}

// CustomerIDs returns the distinct customer ids in sorted order.
func (s *Store) CustomerIDs() []string {
	return s.customerIDs
}

// Transactions returns all baskets in deterministic order.
func (s *Store) Transactions() []models.Transaction {
	return s.transactions
}

// NumTransactions returns the basket count.
func (s *Store) NumTransactions() int { return len(s.transactions) }

// NumProducts returns the catalog size.
func (s *Store) NumProducts() int { return len(s.productIDs) }

// NumCustomers returns the distinct customer count.
func (s *Store) NumCustomers() int { return len(s.customerIDs) }

// BasketsContaining returns every transaction whose basket includes the
// product. An unknown product is an error; a known product with no
// purchases yields an empty slice.
func (s *Store) BasketsContaining(productID string) ([]models.Transaction, error) {
	if !s.HasProduct(productID) {
		return nil, &models.UnknownProductError{ProductID: productID}
	}
	idxs := s.byProduct[productID]
	out := make([]models.Transaction, len(idxs))
	for i, idx := range idxs {
		out[i] = s.transactions[idx]
	}
	return out, nil
}

// SupportCount returns how many transactions contain every product of
// the (sorted) itemset.
func (s *Store) SupportCount(items []string) int {
	if len(items) == 0 {
		return 0
	}
	// Scan the posting list of the rarest member.
	best := items[0]
	for _, it := range items[1:] {
		if len(s.byProduct[it]) < len(s.byProduct[best]) {
			best = it
		}
	}
	count := 0
	for _, idx := range s.byProduct[best] {
		if s.transactions[idx].ContainsAll(items) {
			count++
		}
	}
	return count
}

// BasketMatrix returns the customer×product interaction matrix used by
// the collaborative filter. Entry (c, p) is the number of transactions
// in which customer c bought product p. Rows follow CustomerIDs order,
// columns ProductIDs order.
func (s *Store) BasketMatrix() *mat.Dense {
	if len(s.customerIDs) == 0 || len(s.productIDs) == 0 {
		return mat.NewDense(1, 1, nil)
	}
	m := mat.NewDense(len(s.customerIDs), len(s.productIDs), nil)
	for _, tx := range s.transactions {
		row := s.customerIndex[tx.CustomerID]
		for _, p := range tx.Products {
			col := s.productIndex[p]
			m.Set(row, col, m.At(row, col)+1)
		}
	}
	return m
}
