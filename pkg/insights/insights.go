// Package insights computes descriptive merchandising analytics over
// the transaction snapshot: revenue KPIs, top products, category and
// seasonal breakdowns, and customer spend segments.
package insights

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/stylehive/stylehive-go/pkg/txstore"
)

// Summary holds basket-level KPIs for the whole transaction log.
type Summary struct {
	NumTransactions   int     `json:"num_transactions"`
	NumProducts       int     `json:"num_products"`
	NumCustomers      int     `json:"num_customers"`
	TotalRevenue      float64 `json:"total_revenue"`
	MeanBasketSize    float64 `json:"mean_basket_size"`
	MeanBasketValue   float64 `json:"mean_basket_value"`
	MedianBasketValue float64 `json:"median_basket_value"`
	BasketValueStdDev float64 `json:"basket_value_std_dev"`
}

// ProductStat aggregates one product's presence in the log.
type ProductStat struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Baskets   int     `json:"baskets"`
	Revenue   float64 `json:"revenue"`
}

// CategoryStat aggregates revenue by catalog category.
type CategoryStat struct {
	Category string  `json:"category"`
	Baskets  int     `json:"baskets"`
	Revenue  float64 `json:"revenue"`
}

// MonthStat aggregates revenue per calendar month ("2024-07").
type MonthStat struct {
	Month        string  `json:"month"`
	Transactions int     `json:"transactions"`
	Revenue      float64 `json:"revenue"`
}

// Segment is a customer spend tier bounded by quartiles of total spend.
type Segment struct {
	Name      string  `json:"name"`
	Customers int     `json:"customers"`
	MinSpend  float64 `json:"min_spend"`
	MaxSpend  float64 `json:"max_spend"`
	Revenue   float64 `json:"revenue"`
}

// Analyzer computes analytics off an immutable transaction store.
type Analyzer struct {
	store *txstore.Store
}

// NewAnalyzer creates an analyzer over the given store.
func NewAnalyzer(store *txstore.Store) *Analyzer {
	return &Analyzer{store: store}
}

// Summary computes the basket-level KPIs. An empty log yields a zeroed
// summary rather than an error.
func (a *Analyzer) Summary() (*Summary, error) {
	txs := a.store.Transactions()
	summary := &Summary{
		NumTransactions: a.store.NumTransactions(),
		NumProducts:     a.store.NumProducts(),
		NumCustomers:    a.store.NumCustomers(),
	}
	if len(txs) == 0 {
		return summary, nil
	}

	sizes := make([]float64, len(txs))
	values := make([]float64, len(txs))
	for i, tx := range txs {
		sizes[i] = float64(len(tx.Products))
		values[i] = tx.Total
		summary.TotalRevenue += tx.Total
	}

	var err error
	if summary.MeanBasketSize, err = stats.Mean(sizes); err != nil {
		return nil, fmt.Errorf("basket size mean: %w", err)
	}
	if summary.MeanBasketValue, err = stats.Mean(values); err != nil {
		return nil, fmt.Errorf("basket value mean: %w", err)
	}
	if summary.MedianBasketValue, err = stats.Median(values); err != nil {
		return nil, fmt.Errorf("basket value median: %w", err)
	}
	if summary.BasketValueStdDev, err = stats.StandardDeviation(values); err != nil {
		return nil, fmt.Errorf("basket value std dev: %w", err)
	}
	return summary, nil
}

// TopProducts ranks products by revenue descending, ties broken by
// basket count descending, then product id ascending. n <= 0 returns
// all products that appear in at least one basket.
func (a *Analyzer) TopProducts(n int) []ProductStat {
	byProduct := make(map[string]*ProductStat)
	for _, tx := range a.store.Transactions() {
		// Basket totals are split evenly across distinct line items;
		// the raw log's per-line totals are not kept after
		// normalization.
		share := 0.0
		if len(tx.Products) > 0 {
			share = tx.Total / float64(len(tx.Products))
		}
		for _, id := range tx.Products {
			stat, ok := byProduct[id]
			if !ok {
				stat = &ProductStat{ProductID: id}
				if p, found := a.store.Product(id); found {
					stat.Name = p.Name
					stat.Category = p.Category
				}
				byProduct[id] = stat
			}
			stat.Baskets++
			stat.Revenue += share
		}
	}

	out := make([]ProductStat, 0, len(byProduct))
	for _, stat := range byProduct {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		if out[i].Baskets != out[j].Baskets {
			return out[i].Baskets > out[j].Baskets
		}
		return out[i].ProductID < out[j].ProductID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// CategoryBreakdown aggregates the top-product stats by category,
// ranked by revenue descending.
func (a *Analyzer) CategoryBreakdown() []CategoryStat {
	byCategory := make(map[string]*CategoryStat)
	for _, stat := range a.TopProducts(0) {
		category := stat.Category
		if category == "" {
			category = "uncategorized"
		}
		cs, ok := byCategory[category]
		if !ok {
			cs = &CategoryStat{Category: category}
			byCategory[category] = cs
		}
		cs.Baskets += stat.Baskets
		cs.Revenue += stat.Revenue
	}

	out := make([]CategoryStat, 0, len(byCategory))
	for _, cs := range byCategory {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// MonthlyRevenue aggregates transactions per calendar month in
// chronological order.
func (a *Analyzer) MonthlyRevenue() []MonthStat {
	byMonth := make(map[string]*MonthStat)
	for _, tx := range a.store.Transactions() {
		month := tx.Timestamp.Format("2006-01")
		ms, ok := byMonth[month]
		if !ok {
			ms = &MonthStat{Month: month}
			byMonth[month] = ms
		}
		ms.Transactions++
		ms.Revenue += tx.Total
	}

	out := make([]MonthStat, 0, len(byMonth))
	for _, ms := range byMonth {
		out = append(out, *ms)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// CustomerSegments tiers customers by total spend using quartile
// boundaries: occasional (<= Q1), regular (<= Q2), loyal (<= Q3), and
// vip above that. Fewer than four customers all land in one tier.
func (a *Analyzer) CustomerSegments() ([]Segment, error) {
	spend := make(map[string]float64)
	for _, tx := range a.store.Transactions() {
		spend[tx.CustomerID] += tx.Total
	}
	if len(spend) == 0 {
		return nil, nil
	}

	values := make([]float64, 0, len(spend))
	for _, v := range spend {
		values = append(values, v)
	}

	quartiles, err := stats.Quartile(values)
	if err != nil {
		// Too few samples for quartiles: one tier holds everyone.
		segment := Segment{Name: "regular", Customers: len(spend)}
		first := true
		for _, v := range spend {
			if first || v < segment.MinSpend {
				segment.MinSpend = v
			}
			if first || v > segment.MaxSpend {
				segment.MaxSpend = v
			}
			segment.Revenue += v
			first = false
		}
		return []Segment{segment}, nil
	}

	segments := []Segment{
		{Name: "occasional"},
		{Name: "regular"},
		{Name: "loyal"},
		{Name: "vip"},
	}
	assign := func(v float64) *Segment {
		switch {
		case v <= quartiles.Q1:
			return &segments[0]
		case v <= quartiles.Q2:
			return &segments[1]
		case v <= quartiles.Q3:
			return &segments[2]
		default:
			return &segments[3]
		}
	}
	for _, v := range spend {
		seg := assign(v)
		if seg.Customers == 0 || v < seg.MinSpend {
			seg.MinSpend = v
		}
		if v > seg.MaxSpend {
			seg.MaxSpend = v
		}
		seg.Customers++
		seg.Revenue += v
	}

	out := segments[:0]
	for _, seg := range segments {
		if seg.Customers > 0 {
			out = append(out, seg)
		}
	}
	return out, nil
}
