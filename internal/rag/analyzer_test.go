package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		query string
		want  QueryKind
	}{
		{"what is the invoice from Globex?", KindLookup},
		{"show me the receipt from the coffee shop", KindLookup},
		{"how much did I spend this month?", KindAggregate},
		{"total amount across my invoices", KindAggregate},
		{"sum of purchases last year", KindAggregate},
		{"how many receipts do I have?", KindAggregate},
		{"average invoice value", KindAggregate},
		{"HOW MUCH did we pay Acme?", KindAggregate},
		{"", KindLookup},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Analyze(tt.query))
		})
	}
}
