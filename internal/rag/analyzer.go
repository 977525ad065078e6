package rag

import "strings"

// QueryKind distinguishes lookups about a single document from questions
// that aggregate over many.
type QueryKind string

const (
	KindLookup    QueryKind = "lookup"
	KindAggregate QueryKind = "aggregate"
)

var aggregateMarkers = []string{
	"total", "sum", "how much", "how many", "all ", "every ",
	"average", "overall", "combined", "spend", "spent", "across",
	"this month", "last month", "this year", "last year",
}

// Analyze classifies a question so retrieval can widen for aggregation.
func Analyze(query string) QueryKind {
	q := strings.ToLower(query)
	for _, marker := range aggregateMarkers {
		if strings.Contains(q, marker) {
			return KindAggregate
		}
	}
	return KindLookup
}
