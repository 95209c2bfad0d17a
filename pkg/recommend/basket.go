package recommend

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/stylehive/stylehive-go/pkg/models"
	"github.com/stylehive/stylehive-go/pkg/txstore"
)

// itemsetKey canonicalizes a sorted itemset so supports can be looked
// up by contents. The unit separator cannot appear in product ids.
func itemsetKey(items []string) string {
	return strings.Join(items, "\x1f")
}

// MarketBasketAnalyzer mines frequent itemsets level-wise and derives
// association rules above the configured support and confidence
// thresholds. Fit builds the artifacts once; queries only read them.
type MarketBasketAnalyzer struct {
	minSupport     float64
	minConfidence  float64
	maxItemsetSize int

	store    *txstore.Store
	itemsets map[string]models.Itemset
	rules    []models.AssociationRule
}

// NewMarketBasketAnalyzer creates an analyzer with the given thresholds.
// maxItemsetSize below 2 is raised to 2 so rules can exist at all.
func NewMarketBasketAnalyzer(minSupport, minConfidence float64, maxItemsetSize int) *MarketBasketAnalyzer {
	if maxItemsetSize < 2 {
		maxItemsetSize = 2
	}
	return &MarketBasketAnalyzer{
		minSupport:     minSupport,
		minConfidence:  minConfidence,
		maxItemsetSize: maxItemsetSize,
		itemsets:       make(map[string]models.Itemset),
	}
}

// Fit mines frequent itemsets from the store's transactions and
// generates association rules. Thresholds that leave no frequent
// itemsets produce empty artifacts, not an error.
func (a *MarketBasketAnalyzer) Fit(store *txstore.Store) error {
	a.store = store
	a.itemsets = make(map[string]models.Itemset)
	a.rules = nil

	n := store.NumTransactions()
	if n == 0 {
		return nil
	}

	// Level 1: supports straight off the posting lists.
	var level [][]string
	for _, id := range store.ProductIDs() {
		count := store.SupportCount([]string{id})
		if a.aboveSupport(count, n) {
			items := []string{id}
			a.record(items, count, n)
			level = append(level, items)
		}
	}

	for size := 2; size <= a.maxItemsetSize && len(level) > 1; size++ {
		candidates := a.generateCandidates(level)
		if len(candidates) == 0 {
			break
		}
		counts, err := a.countSupports(candidates)
		if err != nil {
			return fmt.Errorf("support counting failed: %w", err)
		}
		var next [][]string
		for i, cand := range candidates {
			if a.aboveSupport(counts[i], n) {
				a.record(cand, counts[i], n)
				next = append(next, cand)
			}
		}
		level = next
	}

	a.generateRules(n)
	return nil
}

func (a *MarketBasketAnalyzer) aboveSupport(count, total int) bool {
	// Threshold comparison is >=, not >.
	return count > 0 && float64(count)/float64(total) >= a.minSupport
}

func (a *MarketBasketAnalyzer) record(items []string, count, total int) {
	a.itemsets[itemsetKey(items)] = models.Itemset{
		Products:     items,
		SupportCount: count,
		Support:      float64(count) / float64(total),
	}
}

// generateCandidates joins frequent size-k itemsets that share their
// first k-1 members, then prunes any candidate with an infrequent
// size-k subset (anti-monotonicity).
func (a *MarketBasketAnalyzer) generateCandidates(level [][]string) [][]string {
	sort.Slice(level, func(i, j int) bool {
		return itemsetKey(level[i]) < itemsetKey(level[j])
	})

	var candidates [][]string
	for i := 0; i < len(level); i++ {
		for j := i + 1; j < len(level); j++ {
			k := len(level[i])
			if !equalPrefix(level[i], level[j], k-1) {
				// Levels are sorted, so no later j can share the prefix.
				break
			}
			cand := make([]string, k+1)
			copy(cand, level[i])
			cand[k] = level[j][k-1]
			if cand[k-1] > cand[k] {
				cand[k-1], cand[k] = cand[k], cand[k-1]
			}
			if a.allSubsetsFrequent(cand) {
				candidates = append(candidates, cand)
			}
		}
	}
	return candidates
}

func equalPrefix(a, b []string, n int) bool {
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (a *MarketBasketAnalyzer) allSubsetsFrequent(cand []string) bool {
	sub := make([]string, 0, len(cand)-1)
	for drop := range cand {
		sub = sub[:0]
		for i, item := range cand {
			if i != drop {
				sub = append(sub, item)
			}
		}
		if _, ok := a.itemsets[itemsetKey(sub)]; !ok {
			return false
		}
	}
	return true
}

// countSupports scans transactions for candidate containment. Shards
// of the transaction slice are counted concurrently and combined by
// summation; the result is identical to a sequential scan.
func (a *MarketBasketAnalyzer) countSupports(candidates [][]string) ([]int, error) {
	txs := a.store.Transactions()
	workers := runtime.GOMAXPROCS(0)
	if workers > len(txs) {
		workers = len(txs)
	}
	if workers < 1 {
		workers = 1
	}

	partials := make([][]int, workers)
	var g errgroup.Group
	chunk := (len(txs) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		w := w
		lo, hi := w*chunk, (w+1)*chunk
		if hi > len(txs) {
			hi = len(txs)
		}
		g.Go(func() error {
			counts := make([]int, len(candidates))
			for _, tx := range txs[lo:hi] {
				for ci, cand := range candidates {
					if tx.ContainsAll(cand) {
						counts[ci]++
					}
				}
			}
			partials[w] = counts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := make([]int, len(candidates))
	for _, counts := range partials {
		for i, c := range counts {
			total[i] += c
		}
	}
	return total, nil
}

// generateRules emits every non-trivial antecedent/consequent split of
// each frequent itemset of size >= 2 whose confidence clears the
// threshold.
func (a *MarketBasketAnalyzer) generateRules(total int) {
	keys := make([]string, 0, len(a.itemsets))
	for k := range a.itemsets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		set := a.itemsets[key]
		if len(set.Products) < 2 {
			continue
		}
		n := len(set.Products)
		for mask := 1; mask < (1<<n)-1; mask++ {
			var antecedent, consequent []string
			for i, item := range set.Products {
				if mask&(1<<i) != 0 {
					antecedent = append(antecedent, item)
				} else {
					consequent = append(consequent, item)
				}
			}
			ante, ok := a.itemsets[itemsetKey(antecedent)]
			if !ok {
				continue // cannot happen for frequent itemsets, defends against bad state
			}
			confidence := float64(set.SupportCount) / float64(ante.SupportCount)
			if confidence < a.minConfidence {
				continue
			}
			cons, ok := a.itemsets[itemsetKey(consequent)]
			if !ok {
				continue
			}
			a.rules = append(a.rules, models.AssociationRule{
				Antecedent: antecedent,
				Consequent: consequent,
				Support:    set.Support,
				Confidence: confidence,
				Lift:       confidence / cons.Support,
			})
		}
	}
}

// RecommendFor returns products implied by rules whose antecedent is
// exactly {productID}, ranked by confidence descending, then lift
// descending, then product id ascending. topK <= 0 returns all
// matches. No matching rule is a normal empty result.
func (a *MarketBasketAnalyzer) RecommendFor(productID string, topK int) ([]models.Recommendation, error) {
	if a.store == nil || !a.store.HasProduct(productID) {
		return nil, &models.UnknownProductError{ProductID: productID}
	}

	var recs []models.Recommendation
	for _, rule := range a.rules {
		if len(rule.Antecedent) != 1 || rule.Antecedent[0] != productID || len(rule.Consequent) != 1 {
			continue
		}
		target := rule.Consequent[0]
		recs = append(recs, models.Recommendation{
			TargetProducts: []string{productID},
			Product:        target,
			Score:          rule.Confidence,
			Source:         models.SourceMarketBasket,
			Confidence:     rule.Confidence,
			Lift:           rule.Lift,
			Explanation: fmt.Sprintf("%.0f%% of customers who bought %s also bought %s (lift %.2f)",
				rule.Confidence*100, a.displayName(productID), a.displayName(target), rule.Lift),
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Confidence != recs[j].Confidence {
			return recs[i].Confidence > recs[j].Confidence
		}
		if recs[i].Lift != recs[j].Lift {
			return recs[i].Lift > recs[j].Lift
		}
		return recs[i].Product < recs[j].Product
	})
	if topK > 0 && len(recs) > topK {
		recs = recs[:topK]
	}
	return recs, nil
}

// PairConfidence returns the confidence of the single-item rule
// {a} -> {b}, or false when no such rule was mined.
func (a *MarketBasketAnalyzer) PairConfidence(from, to string) (float64, bool) {
	for _, rule := range a.rules {
		if len(rule.Antecedent) == 1 && rule.Antecedent[0] == from &&
			len(rule.Consequent) == 1 && rule.Consequent[0] == to {
			return rule.Confidence, true
		}
	}
	return 0, false
}

// Rules returns all mined association rules in deterministic order.
func (a *MarketBasketAnalyzer) Rules() []models.AssociationRule {
	return a.rules
}

// FrequentItemsets returns the mined itemsets sorted by size, then by
// canonical contents.
func (a *MarketBasketAnalyzer) FrequentItemsets() []models.Itemset {
	out := make([]models.Itemset, 0, len(a.itemsets))
	for _, set := range a.itemsets {
		out = append(out, set)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Products) != len(out[j].Products) {
			return len(out[i].Products) < len(out[j].Products)
		}
		return itemsetKey(out[i].Products) < itemsetKey(out[j].Products)
	})
	return out
}

// Support returns the support of an itemset, or false when it was not
// found frequent.
func (a *MarketBasketAnalyzer) Support(items []string) (float64, bool) {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	set, ok := a.itemsets[itemsetKey(sorted)]
	if !ok {
		return 0, false
	}
	return set.Support, true
}

func (a *MarketBasketAnalyzer) displayName(productID string) string {
	if p, ok := a.store.Product(productID); ok && p.Name != "" {
		return p.Name
	}
	return productID
}
