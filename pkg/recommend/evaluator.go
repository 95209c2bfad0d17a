package recommend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stylehive/stylehive-go/pkg/models"
	"github.com/stylehive/stylehive-go/pkg/txstore"
)

// AggregationMode selects how per-item scores combine when a candidate
// is recommended for more than one basket item.
type AggregationMode string

const (
	AggregateSum AggregationMode = "sum"
	AggregateMax AggregationMode = "max"
)

// BasketEvaluator scores an in-progress multi-item basket: it suggests
// additions by aggregating hybrid recommendations across basket items
// and reports how strongly the current combination hangs together.
type BasketEvaluator struct {
	store   *txstore.Store
	basket  *MarketBasketAnalyzer
	hybrid  *HybridRecommender
	weights Weights
	mode    AggregationMode
}

// NewBasketEvaluator wires the evaluator over a fitted hybrid
// recommender. An unrecognized aggregation mode falls back to sum.
func NewBasketEvaluator(store *txstore.Store, basket *MarketBasketAnalyzer, hybrid *HybridRecommender, weights Weights, mode AggregationMode) *BasketEvaluator {
	if mode != AggregateMax {
		mode = AggregateSum
	}
	return &BasketEvaluator{store: store, basket: basket, hybrid: hybrid, weights: weights, mode: mode}
}

type basketCandidate struct {
	product     string
	score       float64
	confidence  float64
	similarity  float64
	reasons     []string
	contributed int
}

// Evaluate returns ranked additions for the basket plus a combination
// strength report. The basket must be non-empty and every id must be
// in the catalog; products already in the basket are never suggested.
func (e *BasketEvaluator) Evaluate(basketProductIDs []string, topK int) ([]models.Recommendation, *models.BasketReport, error) {
	if len(basketProductIDs) == 0 {
		return nil, nil, &models.EmptyBasketError{}
	}

	seen := make(map[string]bool)
	var basket []string
	for _, id := range basketProductIDs {
		if !e.store.HasProduct(id) {
			return nil, nil, &models.UnknownProductError{ProductID: id}
		}
		if !seen[id] {
			seen[id] = true
			basket = append(basket, id)
		}
	}
	sort.Strings(basket)

	candidates := make(map[string]*basketCandidate)
	add := func(product string, score, confidence, similarity float64, reason string) {
		cand, ok := candidates[product]
		if !ok {
			cand = &basketCandidate{product: product}
			candidates[product] = cand
		}
		switch e.mode {
		case AggregateMax:
			if score > cand.score {
				cand.score = score
			}
		default:
			cand.score += score
		}
		if confidence > cand.confidence {
			cand.confidence = confidence
		}
		if similarity > cand.similarity {
			cand.similarity = similarity
		}
		cand.contributed++
		if reason != "" && len(cand.reasons) < 2 {
			cand.reasons = append(cand.reasons, reason)
		}
	}

	// Per-item hybrid signal.
	for _, item := range basket {
		recs, err := e.hybrid.Recommend(item, 0, e.weights)
		if err != nil {
			return nil, nil, err
		}
		for _, rec := range recs {
			if seen[rec.Product] {
				continue
			}
			add(rec.Product, rec.Score, rec.Confidence, rec.Similarity, rec.Explanation)
		}
	}

	// Multi-item rules whose whole antecedent is already in the basket
	// speak for the combination itself, not a single member; their
	// confidence joins the blend under the market-basket weight.
	for _, rule := range e.basket.Rules() {
		if len(rule.Antecedent) < 2 || len(rule.Consequent) != 1 {
			continue
		}
		target := rule.Consequent[0]
		if seen[target] || !subsetOf(rule.Antecedent, basket) {
			continue
		}
		add(target, e.weights.MBA*rule.Confidence, rule.Confidence, 0,
			fmt.Sprintf("%.0f%% of baskets with %s also contain %s",
				rule.Confidence*100, e.displayNames(rule.Antecedent), e.displayName(target)))
	}

	recs := e.rank(basket, candidates, topK)
	report := e.report(basket)
	return recs, report, nil
}

func (e *BasketEvaluator) rank(basket []string, candidates map[string]*basketCandidate, topK int) []models.Recommendation {
	ordered := make([]*basketCandidate, 0, len(candidates))
	maxScore := 0.0
	for _, cand := range candidates {
		ordered = append(ordered, cand)
		if cand.score > maxScore {
			maxScore = cand.score
		}
	}
	// Summed contributions can exceed 1; rescale into the documented
	// [0, 1] output range without disturbing the order.
	scale := 1.0
	if maxScore > 1 {
		scale = 1 / maxScore
	}

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		if ordered[i].confidence != ordered[j].confidence {
			return ordered[i].confidence > ordered[j].confidence
		}
		if ordered[i].similarity != ordered[j].similarity {
			return ordered[i].similarity > ordered[j].similarity
		}
		return ordered[i].product < ordered[j].product
	})

	recs := make([]models.Recommendation, 0, len(ordered))
	for _, cand := range ordered {
		recs = append(recs, models.Recommendation{
			TargetProducts: basket,
			Product:        cand.product,
			Score:          cand.score * scale,
			Source:         models.SourceHybrid,
			Confidence:     cand.confidence,
			Similarity:     cand.similarity,
			Explanation:    strings.Join(cand.reasons, "; "),
		})
	}
	if topK > 0 && len(recs) > topK {
		recs = recs[:topK]
	}
	return recs
}

// report computes the combination strength: the mean single-item rule
// confidence across all unordered basket pairs, counting pairs with no
// rule in either direction as 0 and flagging them as untested.
func (e *BasketEvaluator) report(basket []string) *models.BasketReport {
	report := &models.BasketReport{Products: basket}

	pairs := 0
	sum := 0.0
	for i := 0; i < len(basket); i++ {
		for j := i + 1; j < len(basket); j++ {
			pairs++
			forward, okF := e.basket.PairConfidence(basket[i], basket[j])
			backward, okB := e.basket.PairConfidence(basket[j], basket[i])
			if !okF && !okB {
				report.UntestedPairs = append(report.UntestedPairs, models.UntestedPair{
					ProductA: basket[i],
					ProductB: basket[j],
				})
				continue
			}
			report.TestedPairs++
			if backward > forward {
				forward = backward
			}
			sum += forward
		}
	}
	if pairs > 0 {
		report.CombinationStrength = sum / float64(pairs)
	}
	return report
}

func subsetOf(items, within []string) bool {
	for _, item := range items {
		i := sort.SearchStrings(within, item)
		if i >= len(within) || within[i] != item {
			return false
		}
	}
	return true
}

func (e *BasketEvaluator) displayName(productID string) string {
	if p, ok := e.store.Product(productID); ok && p.Name != "" {
		return p.Name
	}
	return productID
}

func (e *BasketEvaluator) displayNames(productIDs []string) string {
	names := make([]string, len(productIDs))
	for i, id := range productIDs {
		names[i] = e.displayName(id)
	}
	return strings.Join(names, " and ")
}
