// Command analyze runs the recommendation engine once over CSV input
// and prints the mined artifacts and merchandising insights.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/stylehive/stylehive-go/pkg/insights"
	"github.com/stylehive/stylehive-go/pkg/recommend"
	"github.com/stylehive/stylehive-go/pkg/txstore"
	"github.com/stylehive/stylehive-go/utils"
)

func main() {
	var (
		transactionsPath = flag.String("transactions", "", "transaction log CSV (required)")
		catalogPath      = flag.String("catalog", "", "product catalog CSV (required)")
		minSupport       = flag.Float64("min-support", 0.01, "minimum itemset support")
		minConfidence    = flag.Float64("min-confidence", 0.3, "minimum rule confidence")
		maxItemsetSize   = flag.Int("max-itemset-size", 3, "largest itemset to mine")
		cfRank           = flag.Int("cf-rank", 3, "latent factor rank")
		topK             = flag.Int("top-k", 5, "recommendations per query")
		mbaWeight        = flag.Float64("mba-weight", 0.5, "market basket blend weight")
		cfWeight         = flag.Float64("cf-weight", 0.5, "collaborative blend weight")
		product          = flag.String("product", "", "print recommendations for this product id")
		basket           = flag.String("basket", "", "comma-separated product ids to evaluate as a basket")
		maxRules         = flag.Int("max-rules", 15, "association rules to print")
	)
	flag.Parse()

	logger := utils.InitLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	if *transactionsPath == "" || *catalogPath == "" {
		fmt.Fprintln(os.Stderr, "both -transactions and -catalog are required")
		flag.Usage()
		os.Exit(2)
	}

	catalog, err := txstore.LoadProductCatalogFile(*catalogPath)
	if err != nil {
		logger.Fatal("failed to load catalog", err, utils.Component("analyze"))
	}
	rows, err := txstore.LoadTransactionLogFile(*transactionsPath)
	if err != nil {
		logger.Fatal("failed to load transaction log", err, utils.Component("analyze"))
	}

	opts := recommend.Options{
		MinSupport:     *minSupport,
		MinConfidence:  *minConfidence,
		MaxItemsetSize: *maxItemsetSize,
		CFRank:         *cfRank,
		TopK:           *topK,
		Weights:        recommend.Weights{MBA: *mbaWeight, CF: *cfWeight},
		Aggregation:    recommend.AggregateSum,
	}
	snapshot, err := recommend.BuildSnapshot(catalog, rows, opts)
	if err != nil {
		logger.Fatal("failed to build snapshot", err, utils.Component("analyze"))
	}

	printSummary(snapshot)
	printRules(snapshot, *maxRules)
	printInsights(snapshot)

	if *product != "" {
		printRecommendations(snapshot, *product, *topK)
	}
	if *basket != "" {
		printBasketEvaluation(snapshot, strings.Split(*basket, ","), *topK)
	}
}

func printSummary(snapshot *recommend.Snapshot) {
	fmt.Printf("Snapshot %s\n\n", snapshot.ID)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Transactions", "Products", "Customers", "Itemsets", "Rules"})
	table.Append([]string{
		strconv.Itoa(snapshot.Store.NumTransactions()),
		strconv.Itoa(snapshot.Store.NumProducts()),
		strconv.Itoa(snapshot.Store.NumCustomers()),
		strconv.Itoa(len(snapshot.Basket.FrequentItemsets())),
		strconv.Itoa(len(snapshot.Basket.Rules())),
	})
	table.Render()
	fmt.Println()
}

func printRules(snapshot *recommend.Snapshot, max int) {
	rules := snapshot.Basket.Rules()
	if len(rules) == 0 {
		fmt.Println("No association rules above the configured thresholds.")
		fmt.Println()
		return
	}

	fmt.Println("Association rules")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Antecedent", "Consequent", "Support", "Confidence", "Lift"})
	for i, rule := range rules {
		if max > 0 && i >= max {
			break
		}
		table.Append([]string{
			strings.Join(rule.Antecedent, ", "),
			strings.Join(rule.Consequent, ", "),
			fmt.Sprintf("%.3f", rule.Support),
			fmt.Sprintf("%.3f", rule.Confidence),
			fmt.Sprintf("%.2f", rule.Lift),
		})
	}
	table.Render()
	fmt.Println()
}

func printInsights(snapshot *recommend.Snapshot) {
	analyzer := insights.NewAnalyzer(snapshot.Store)

	summary, err := analyzer.Summary()
	if err == nil {
		fmt.Println("Basket KPIs")
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Revenue", "Mean size", "Mean value", "Median value"})
		table.Append([]string{
			fmt.Sprintf("%.2f", summary.TotalRevenue),
			fmt.Sprintf("%.2f", summary.MeanBasketSize),
			fmt.Sprintf("%.2f", summary.MeanBasketValue),
			fmt.Sprintf("%.2f", summary.MedianBasketValue),
		})
		table.Render()
		fmt.Println()
	}

	top := analyzer.TopProducts(10)
	if len(top) > 0 {
		fmt.Println("Top products by revenue")
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Product", "Name", "Baskets", "Revenue"})
		for _, stat := range top {
			table.Append([]string{
				stat.ProductID,
				stat.Name,
				strconv.Itoa(stat.Baskets),
				fmt.Sprintf("%.2f", stat.Revenue),
			})
		}
		table.Render()
		fmt.Println()
	}
}

func printRecommendations(snapshot *recommend.Snapshot, productID string, topK int) {
	recs, err := snapshot.Recommend(productID, topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recommendation failed: %v\n", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Printf("No recommendations for %s.\n", productID)
		return
	}

	fmt.Printf("Recommendations for %s\n", productID)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Product", "Score", "Confidence", "Similarity", "Why"})
	for _, rec := range recs {
		table.Append([]string{
			rec.Product,
			fmt.Sprintf("%.3f", rec.Score),
			fmt.Sprintf("%.3f", rec.Confidence),
			fmt.Sprintf("%.3f", rec.Similarity),
			rec.Explanation,
		})
	}
	table.Render()
	fmt.Println()
}

func printBasketEvaluation(snapshot *recommend.Snapshot, basket []string, topK int) {
	for i := range basket {
		basket[i] = strings.TrimSpace(basket[i])
	}
	recs, report, err := snapshot.Evaluator.Evaluate(basket, topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "basket evaluation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Basket %s: combination strength %.3f (%d tested pairs, %d untested)\n",
		strings.Join(report.Products, ", "), report.CombinationStrength,
		report.TestedPairs, len(report.UntestedPairs))
	for _, pair := range report.UntestedPairs {
		fmt.Printf("  untested: %s with %s\n", pair.ProductA, pair.ProductB)
	}
	fmt.Println()

	if len(recs) == 0 {
		fmt.Println("No suggested additions.")
		return
	}
	fmt.Println("Suggested additions")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Product", "Score", "Why"})
	for _, rec := range recs {
		table.Append([]string{rec.Product, fmt.Sprintf("%.3f", rec.Score), rec.Explanation})
	}
	table.Render()
}
