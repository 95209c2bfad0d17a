package models

import "fmt"

// DataFormatError reports a malformed or incomplete transaction record.
// The load is aborted as a whole; there is no partial ingest.
type DataFormatError struct {
	Line   int    // 1-based input line, 0 when unknown
	Reason string
}

func (e *DataFormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid transaction record at line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("invalid transaction record: %s", e.Reason)
}

// UnknownProductError reports a query that references a product id
// absent from the catalog. Callers may recover; it is never swallowed
// into an empty result.
type UnknownProductError struct {
	ProductID string
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("unknown product %q", e.ProductID)
}

// InvalidWeightError reports hybrid blend weights that are negative or
// do not sum to 1.
type InvalidWeightError struct {
	MBA    float64
	CF     float64
	Reason string
}

func (e *InvalidWeightError) Error() string {
	return fmt.Sprintf("invalid hybrid weights (mba=%g, cf=%g): %s", e.MBA, e.CF, e.Reason)
}

// EmptyBasketError reports a basket evaluation request with no items.
type EmptyBasketError struct{}

func (e *EmptyBasketError) Error() string {
	return "basket is empty"
}
