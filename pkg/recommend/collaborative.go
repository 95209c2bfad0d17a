package recommend

import (
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/stylehive/stylehive-go/pkg/models"
	"github.com/stylehive/stylehive-go/pkg/txstore"
)

// CollaborativeFilteringRecommender factorizes the customer×product
// interaction matrix into rank-r latent factors and caches a dense
// symmetric product×product cosine-similarity matrix. It captures
// co-preference across a customer's whole history, which basket
// analysis (co-occurrence within single transactions) cannot see.
type CollaborativeFilteringRecommender struct {
	rank int

	store      *txstore.Store
	products   []string
	factors    *mat.Dense    // product rows × latent columns
	similarity *mat.SymDense // dense symmetric, cached at fit time
}

// NewCollaborativeFilteringRecommender creates a recommender with the
// requested factorization rank. The rank is clamped at fit time if it
// exceeds what the data supports.
func NewCollaborativeFilteringRecommender(rank int) *CollaborativeFilteringRecommender {
	if rank < 1 {
		rank = 1
	}
	return &CollaborativeFilteringRecommender{rank: rank}
}

// Fit factorizes the interaction matrix and precomputes all pairwise
// product similarities.
func (c *CollaborativeFilteringRecommender) Fit(store *txstore.Store) error {
	c.store = store
	c.products = store.ProductIDs()

	np := len(c.products)
	c.similarity = mat.NewSymDense(maxInt(np, 1), nil)
	if np == 0 || store.NumCustomers() == 0 {
		c.factors = mat.NewDense(maxInt(np, 1), 1, nil)
		return nil
	}

	// Numerical stability over strict configuration adherence: clamp
	// the rank instead of failing when it exceeds the data.
	rank := c.rank
	if limit := minInt(np, store.NumCustomers()) - 1; rank > limit {
		rank = maxInt(limit, 1)
	}

	var svd mat.SVD
	if ok := svd.Factorize(store.BasketMatrix(), mat.SVDThin); !ok {
		return fmt.Errorf("svd factorization did not converge")
	}
	var v mat.Dense
	svd.VTo(&v)

	// Product latent vectors are the first rank columns of V.
	cols := minInt(rank, v.RawMatrix().Cols)
	c.factors = mat.NewDense(np, cols, nil)
	for i := 0; i < np; i++ {
		for j := 0; j < cols; j++ {
			c.factors.Set(i, j, v.At(i, j))
		}
	}

	// A product with no recorded purchases is cold: force its latent
	// vector to zero so its similarity to everything is exactly 0.
	for i, id := range c.products {
		if baskets, _ := store.BasketsContaining(id); len(baskets) == 0 {
			for j := 0; j < cols; j++ {
				c.factors.Set(i, j, 0)
			}
		}
	}

	return c.computeSimilarities()
}

// computeSimilarities fills the cached symmetric cosine matrix. Rows
// are independent once the factors are fixed, so they are computed
// concurrently; the output is deterministic regardless of scheduling.
func (c *CollaborativeFilteringRecommender) computeSimilarities() error {
	np := len(c.products)
	norms := make([]float64, np)
	for i := 0; i < np; i++ {
		norms[i] = mat.Norm(c.factors.RowView(i), 2)
	}

	workers := minInt(runtime.GOMAXPROCS(0), np)
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	chunk := (np + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, (w+1)*chunk
		if hi > np {
			hi = np
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				for j := i; j < np; j++ {
					c.similarity.SetSym(i, j, cosine(c.factors.RowView(i), c.factors.RowView(j), norms[i], norms[j]))
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func cosine(a, b mat.Vector, normA, normB float64) float64 {
	const eps = 1e-12
	if normA < eps || normB < eps {
		return 0
	}
	sim := mat.Dot(a, b) / (normA * normB)
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	// Round-off can push a cosine a hair outside [-1, 1].
	return math.Max(-1, math.Min(1, sim))
}

// Similarity returns the cached latent-factor similarity between two
// products. It is symmetric by construction.
func (c *CollaborativeFilteringRecommender) Similarity(productA, productB string) (float64, error) {
	ia, ok := c.store.ProductIndex(productA)
	if !ok {
		return 0, &models.UnknownProductError{ProductID: productA}
	}
	ib, ok := c.store.ProductIndex(productB)
	if !ok {
		return 0, &models.UnknownProductError{ProductID: productB}
	}
	return c.similarity.At(ia, ib), nil
}

// SimilarTo returns products with positive latent-factor similarity to
// the target, ranked by similarity descending, ties broken by product
// id ascending. Self-similarity is excluded; non-positive similarity is
// "no signal" and yields no candidate. topK <= 0 returns all matches.
func (c *CollaborativeFilteringRecommender) SimilarTo(productID string, topK int) ([]models.Recommendation, error) {
	idx, ok := c.store.ProductIndex(productID)
	if !ok {
		return nil, &models.UnknownProductError{ProductID: productID}
	}

	var recs []models.Recommendation
	for j, other := range c.products {
		if j == idx {
			continue
		}
		sim := c.similarity.At(idx, j)
		if sim <= 0 {
			continue
		}
		recs = append(recs, models.Recommendation{
			TargetProducts: []string{productID},
			Product:        other,
			Score:          sim,
			Source:         models.SourceCollaborative,
			Similarity:     sim,
			Explanation: fmt.Sprintf("customers who buy %s tend to buy %s (similarity %.2f)",
				c.displayName(productID), c.displayName(other), sim),
		})
	}

	sort.Slice(recs, func(i, j int) bool {
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

func (c *CollaborativeFilteringRecommender) displayName(productID string) string {
	if p, ok := c.store.Product(productID); ok && p.Name != "" {
		return p.Name
	}
	return productID
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
