package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/stylehive/stylehive-go/pkg/insights"
	"github.com/stylehive/stylehive-go/pkg/models"
	"github.com/stylehive/stylehive-go/pkg/recommend"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps engine errors onto HTTP status codes. Unknown
// products are 404, caller mistakes are 400, a missing snapshot is 503.
func writeError(w http.ResponseWriter, err error) {
	var (
		unknownProduct *models.UnknownProductError
		invalidWeight  *models.InvalidWeightError
		emptyBasket    *models.EmptyBasketError
		dataFormat     *models.DataFormatError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &unknownProduct):
		status = http.StatusNotFound
	case errors.As(err, &invalidWeight), errors.As(err, &emptyBasket), errors.As(err, &dataFormat):
		status = http.StatusBadRequest
	case errors.Is(err, recommend.ErrNoSnapshot):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady handles readiness check requests. The server is ready
// once the first snapshot has been built.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.engine.Snapshot(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleListProducts returns the catalog from the current snapshot.
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.engine.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	products := make([]models.Product, 0, snapshot.Store.NumProducts())
	for _, id := range snapshot.Store.ProductIDs() {
		if p, ok := snapshot.Store.Product(id); ok {
			products = append(products, p)
		}
	}
	writeJSON(w, http.StatusOK, products)
}

// handleRecommendations returns recommendations for a product.
// Optional query params: source (basket, collaborative or hybrid),
// top_k, mba_weight, cf_weight (weights must be given together and
// only apply to the hybrid source).
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.engine.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	productID := mux.Vars(r)["productID"]

	topK := snapshot.Options.TopK
	if v := r.URL.Query().Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top_k must be a positive integer"})
			return
		}
		topK = n
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = "hybrid"
	}

	var recs []models.Recommendation
	switch source {
	case "basket":
		recs, err = snapshot.Basket.RecommendFor(productID, topK)
	case "collaborative":
		recs, err = snapshot.Collaborative.SimilarTo(productID, topK)
	case "hybrid":
		var weights recommend.Weights
		weights, err = weightsFromQuery(r, snapshot.Options.Weights)
		if err == nil {
			recs, err = snapshot.Hybrid.Recommend(productID, topK, weights)
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source must be basket, collaborative or hybrid"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product_id":      productID,
		"snapshot_id":     snapshot.ID,
		"source":          source,
		"recommendations": recs,
	})
}

// weightsFromQuery reads an optional blend override from query params.
func weightsFromQuery(r *http.Request, defaults recommend.Weights) (recommend.Weights, error) {
	mbaStr := r.URL.Query().Get("mba_weight")
	cfStr := r.URL.Query().Get("cf_weight")
	if mbaStr == "" && cfStr == "" {
		return defaults, nil
	}
	if mbaStr == "" || cfStr == "" {
		return recommend.Weights{}, &models.InvalidWeightError{Reason: "mba_weight and cf_weight must be given together"}
	}
	mba, err := strconv.ParseFloat(mbaStr, 64)
	if err != nil {
		return recommend.Weights{}, &models.InvalidWeightError{Reason: "mba_weight is not a number"}
	}
	cf, err := strconv.ParseFloat(cfStr, 64)
	if err != nil {
		return recommend.Weights{}, &models.InvalidWeightError{Reason: "cf_weight is not a number"}
	}
	weights := recommend.Weights{MBA: mba, CF: cf}
	if err := weights.Validate(); err != nil {
		return recommend.Weights{}, err
	}
	return weights, nil
}

// BasketEvaluateRequest is the request body for basket evaluation.
type BasketEvaluateRequest struct {
	Products  []string `json:"products"`
	TopK      int      `json:"top_k,omitempty"`
	MBAWeight *float64 `json:"mba_weight,omitempty"`
	CFWeight  *float64 `json:"cf_weight,omitempty"`
}

// handleBasketEvaluate scores an in-progress basket.
func (s *Server) handleBasketEvaluate(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.engine.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}

	var req BasketEvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = snapshot.Options.TopK
	}

	evaluator := snapshot.Evaluator
	if req.MBAWeight != nil || req.CFWeight != nil {
		if req.MBAWeight == nil || req.CFWeight == nil {
			writeError(w, &models.InvalidWeightError{Reason: "mba_weight and cf_weight must be given together"})
			return
		}
		weights := recommend.Weights{MBA: *req.MBAWeight, CF: *req.CFWeight}
		if err := weights.Validate(); err != nil {
			writeError(w, err)
			return
		}
		evaluator = recommend.NewBasketEvaluator(snapshot.Store, snapshot.Basket, snapshot.Hybrid, weights, snapshot.Options.Aggregation)
	}

	recs, report, err := evaluator.Evaluate(req.Products, topK)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot_id":     snapshot.ID,
		"recommendations": recs,
		"report":          report,
	})
}

// analyzer builds an insights analyzer over the current snapshot.
func (s *Server) analyzer() (*insights.Analyzer, *recommend.Snapshot, error) {
	snapshot, err := s.engine.Snapshot()
	if err != nil {
		return nil, nil, err
	}
	return insights.NewAnalyzer(snapshot.Store), snapshot, nil
}

// handleInsightsSummary returns basket-level KPIs.
func (s *Server) handleInsightsSummary(w http.ResponseWriter, r *http.Request) {
	analyzer, _, err := s.analyzer()
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := analyzer.Summary()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleInsightsTopProducts returns products ranked by revenue.
func (s *Server) handleInsightsTopProducts(w http.ResponseWriter, r *http.Request) {
	analyzer, _, err := s.analyzer()
	if err != nil {
		writeError(w, err)
		return
	}
	n := 10
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "n must be a positive integer"})
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, analyzer.TopProducts(n))
}

// handleInsightsCategories returns revenue by catalog category.
func (s *Server) handleInsightsCategories(w http.ResponseWriter, r *http.Request) {
	analyzer, _, err := s.analyzer()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzer.CategoryBreakdown())
}

// handleInsightsMonthly returns revenue per calendar month.
func (s *Server) handleInsightsMonthly(w http.ResponseWriter, r *http.Request) {
	analyzer, _, err := s.analyzer()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzer.MonthlyRevenue())
}

// handleInsightsSegments returns customer spend tiers.
func (s *Server) handleInsightsSegments(w http.ResponseWriter, r *http.Request) {
	analyzer, _, err := s.analyzer()
	if err != nil {
		writeError(w, err)
		return
	}
	segments, err := analyzer.CustomerSegments()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, segments)
}

// handleCurrentSnapshot describes the snapshot serving queries.
func (s *Server) handleCurrentSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.engine.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":               snapshot.ID,
		"created_at":       snapshot.CreatedAt,
		"num_transactions": snapshot.Store.NumTransactions(),
		"num_products":     snapshot.Store.NumProducts(),
		"num_customers":    snapshot.Store.NumCustomers(),
		"num_rules":        len(snapshot.Basket.Rules()),
		"options":          snapshot.Options,
	})
}

// handleRefresh triggers an immediate snapshot rebuild.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "refresh is not configured"})
		return
	}
	if err := s.refresher.Refresh(); err != nil {
		writeError(w, err)
		return
	}
	snapshot, err := s.engine.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "refreshed",
		"snapshot_id": snapshot.ID,
	})
}

// handleListSnapshots returns the recompute history, newest first.
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.metadata == nil {
		writeJSON(w, http.StatusOK, []*models.SnapshotInfo{})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	infos, err := s.metadata.ListSnapshotInfos(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if infos == nil {
		infos = []*models.SnapshotInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}
