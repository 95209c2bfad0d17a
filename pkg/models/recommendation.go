package models

// RecommendationSource identifies which signal produced a recommendation.
type RecommendationSource string

const (
	SourceMarketBasket  RecommendationSource = "market-basket"
	SourceCollaborative RecommendationSource = "collaborative"
	SourceHybrid        RecommendationSource = "hybrid"
)

// Itemset is a set of product identifiers with its support over all
// transactions. Products is sorted, which makes the set canonical.
type Itemset struct {
	Products     []string `json:"products"`
	SupportCount int      `json:"support_count"`
	Support      float64  `json:"support"`
}

// AssociationRule is an antecedent → consequent implication mined from
// frequent itemsets. Antecedent and Consequent are disjoint sorted sets.
type AssociationRule struct {
	Antecedent []string `json:"antecedent"`
	Consequent []string `json:"consequent"`
	Support    float64  `json:"support"`
	Confidence float64  `json:"confidence"`
	Lift       float64  `json:"lift"`
}

// SimilarityScore is a symmetric latent-factor similarity between two
// products, in [-1, 1] (cosine).
type SimilarityScore struct {
	ProductA string  `json:"product_a"`
	ProductB string  `json:"product_b"`
	Score    float64 `json:"score"`
}

// Recommendation is an ephemeral, per-query suggestion of one product
// for one or more target products.
type Recommendation struct {
	TargetProducts []string             `json:"target_products"`
	Product        string               `json:"product"`
	Score          float64              `json:"score"`
	Source         RecommendationSource `json:"source"`
	Explanation    string               `json:"explanation"`

	// Raw contributing signals, zero when a signal had nothing to say.
	Confidence float64 `json:"confidence,omitempty"`
	Lift       float64 `json:"lift,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}

// UntestedPair is a pair of basket products with no known association
// rule in either direction. Flagged for visibility, not an error.
type UntestedPair struct {
	ProductA string `json:"product_a"`
	ProductB string `json:"product_b"`
}

// BasketReport is the combination-strength diagnostic for an
// in-progress basket.
type BasketReport struct {
	Products            []string       `json:"products"`
	CombinationStrength float64        `json:"combination_strength"`
	TestedPairs         int            `json:"tested_pairs"`
	UntestedPairs       []UntestedPair `json:"untested_pairs"`
}
