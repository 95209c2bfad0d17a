package recommend

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/stylehive/stylehive-go/pkg/models"
	"github.com/stylehive/stylehive-go/pkg/txstore"
)

// weightTolerance is the numeric slack allowed when checking that the
// blend weights sum to 1.
const weightTolerance = 1e-9

// Weights controls how the two signals are blended. They must be
// non-negative and sum to 1.
type Weights struct {
	MBA float64 `json:"mba" yaml:"mba"`
	CF  float64 `json:"cf" yaml:"cf"`
}

// DefaultWeights blends both signals equally.
func DefaultWeights() Weights {
	return Weights{MBA: 0.5, CF: 0.5}
}

// Validate rejects weights before any computation happens.
func (w Weights) Validate() error {
	if w.MBA < 0 || w.CF < 0 {
		return &models.InvalidWeightError{MBA: w.MBA, CF: w.CF, Reason: "weights must be non-negative"}
	}
	if math.Abs(w.MBA+w.CF-1) > weightTolerance {
		return &models.InvalidWeightError{MBA: w.MBA, CF: w.CF, Reason: "weights must sum to 1"}
	}
	return nil
}

// HybridRecommender merges market-basket and collaborative-filtering
// output for a product into one ranked list. Either signal may be
// missing for a candidate; it then contributes 0 instead of excluding
// the candidate.
type HybridRecommender struct {
	basket        *MarketBasketAnalyzer
	collaborative *CollaborativeFilteringRecommender
	store         *txstore.Store
}

// NewHybridRecommender wires the two fitted analyzers together.
func NewHybridRecommender(store *txstore.Store, basket *MarketBasketAnalyzer, collaborative *CollaborativeFilteringRecommender) *HybridRecommender {
	return &HybridRecommender{basket: basket, collaborative: collaborative, store: store}
}

type hybridCandidate struct {
	product    string
	confidence float64
	lift       float64
	similarity float64
	normalized float64
	ruleText   string
}

// Recommend blends both signals for the target product. Each signal is
// min-max normalized to [0, 1] over the candidate set before weighting;
// a zero-variance signal normalizes to all zeros. Ranking is hybrid
// score descending, then confidence descending, then similarity
// descending, then product id ascending. topK <= 0 returns all
// candidates.
func (h *HybridRecommender) Recommend(productID string, topK int, weights Weights) ([]models.Recommendation, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if !h.store.HasProduct(productID) {
		return nil, &models.UnknownProductError{ProductID: productID}
	}

	basketRecs, err := h.basket.RecommendFor(productID, 0)
	if err != nil {
		return nil, err
	}
	cfRecs, err := h.collaborative.SimilarTo(productID, 0)
	if err != nil {
		return nil, err
	}

	byProduct := make(map[string]*hybridCandidate)
	for _, rec := range basketRecs {
		byProduct[rec.Product] = &hybridCandidate{
			product:    rec.Product,
			confidence: rec.Confidence,
			lift:       rec.Lift,
			ruleText:   rec.Explanation,
		}
	}
	for _, rec := range cfRecs {
		cand, ok := byProduct[rec.Product]
		if !ok {
			cand = &hybridCandidate{product: rec.Product}
			byProduct[rec.Product] = cand
		}
		cand.similarity = rec.Similarity
	}
	if len(byProduct) == 0 {
		return nil, nil
	}

	candidates := make([]*hybridCandidate, 0, len(byProduct))
	for _, cand := range byProduct {
		candidates = append(candidates, cand)
	}

	confidence := make([]float64, len(candidates))
	similarity := make([]float64, len(candidates))
	for i, cand := range candidates {
		confidence[i] = cand.confidence
		similarity[i] = cand.similarity
	}
	normConfidence := minMaxNormalize(confidence)
	normSimilarity := minMaxNormalize(similarity)

	recs := make([]models.Recommendation, 0, len(candidates))
	for i, cand := range candidates {
		cand.normalized = weights.MBA*normConfidence[i] + weights.CF*normSimilarity[i]
		recs = append(recs, models.Recommendation{
			TargetProducts: []string{productID},
			Product:        cand.product,
			Score:          cand.normalized,
			Source:         models.SourceHybrid,
			Confidence:     cand.confidence,
			Lift:           cand.lift,
			Similarity:     cand.similarity,
			Explanation:    h.explain(productID, cand),
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		if recs[i].Confidence != recs[j].Confidence {
			return recs[i].Confidence > recs[j].Confidence
		}
		if recs[i].Similarity != recs[j].Similarity {
			return recs[i].Similarity > recs[j].Similarity
		}
		return recs[i].Product < recs[j].Product
	})
	if topK > 0 && len(recs) > topK {
		recs = recs[:topK]
	}
	return recs, nil
}

func (h *HybridRecommender) explain(productID string, cand *hybridCandidate) string {
	var parts []string
	if cand.confidence > 0 {
		parts = append(parts, fmt.Sprintf("%.0f%% of customers who bought %s also bought %s",
			cand.confidence*100, h.displayName(productID), h.displayName(cand.product)))
	}
	if cand.similarity > 0 {
		parts = append(parts, fmt.Sprintf("latent-factor similarity %.2f", cand.similarity))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("weak association with %s", h.displayName(productID))
	}
	return strings.Join(parts, "; ")
}

func (h *HybridRecommender) displayName(productID string) string {
	if p, ok := h.store.Product(productID); ok && p.Name != "" {
		return p.Name
	}
	return productID
}

// minMaxNormalize rescales values to [0, 1]. A zero-variance input
// maps to all zeros so blending never divides by zero.
func minMaxNormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}
