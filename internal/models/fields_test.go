package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldMapUnmarshal(t *testing.T) {
	payload := `{
		"document_type": "invoice",
		"total_amount": 1250.50,
		"paid": true,
		"vendor_name": "Acme Corp",
		"line_items": [
			{"description": "Widget", "quantity": 2, "price": 625.25}
		],
		"weird": [1, "two", {"three": 3}]
	}`

	var fields FieldMap
	require.NoError(t, json.Unmarshal([]byte(payload), &fields))

	assert.Equal(t, "invoice", fields.String("document_type"))
	assert.Equal(t, "Acme Corp", fields.String("vendor_name"))

	amount, ok := fields.Number("total_amount")
	require.True(t, ok)
	assert.InDelta(t, 1250.50, amount, 0.001)

	assert.Equal(t, KindBool, fields["paid"].Kind)
	assert.True(t, fields["paid"].Bool)

	items := fields["line_items"]
	require.Equal(t, KindList, items.Kind)
	require.Len(t, items.List, 1)
	assert.Equal(t, "Widget", items.List[0].Object.String("description"))

	// Mixed-type lists still decode element by element.
	weird := fields["weird"]
	require.Equal(t, KindList, weird.Kind)
	assert.Equal(t, KindNumber, weird.List[0].Kind)
	assert.Equal(t, KindString, weird.List[1].Kind)
	assert.Equal(t, KindObject, weird.List[2].Kind)
}

func TestFieldValueUnknownRoundTrip(t *testing.T) {
	var v FieldValue
	require.NoError(t, json.Unmarshal([]byte(`null`), &v))
	assert.Equal(t, KindUnknown, v.Kind)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `null`, string(out))
}

func TestNullFieldIsNotCoercedToEmptyString(t *testing.T) {
	var fields FieldMap
	require.NoError(t, json.Unmarshal([]byte(`{"date": null, "vendor_name": "Acme"}`), &fields))

	require.Equal(t, KindUnknown, fields["date"].Kind)
	assert.Equal(t, "", fields.String("date"))
	assert.Equal(t, "Acme", fields.String("vendor_name"))

	out, err := json.Marshal(fields)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date": null, "vendor_name": "Acme"}`, string(out))
}

func TestFieldMapMarshalRoundTrip(t *testing.T) {
	fields := FieldMap{
		"document_type": String("receipt"),
		"total_amount":  Number(42.9),
		"items":         List(String("coffee"), String("bagel")),
		"store_info":    Object(FieldMap{"name": String("Corner Deli")}),
	}

	data, err := json.Marshal(fields)
	require.NoError(t, err)

	var decoded FieldMap
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "receipt", decoded.String("document_type"))

	v, ok := decoded.Nested("store_info", "name")
	require.True(t, ok)
	assert.Equal(t, "Corner Deli", v.AsString())
}

func TestNumberAcceptsQuotedAmounts(t *testing.T) {
	fields := FieldMap{"total_amount": String("199.99")}
	n, ok := fields.Number("total_amount")
	require.True(t, ok)
	assert.InDelta(t, 199.99, n, 0.001)

	_, ok = fields.Number("missing")
	assert.False(t, ok)
}

func TestAsStringFormatsNumbersForCells(t *testing.T) {
	assert.Equal(t, "1250.5", Number(1250.50).AsString())
	assert.Equal(t, "1000000", Number(1e6).AsString())
	assert.Equal(t, "true", Boolean(true).AsString())
	assert.Equal(t, "", List().AsString())
}

func TestFirstString(t *testing.T) {
	fields := FieldMap{
		"vendor_name": String(""),
		"store_name":  String("Corner Deli"),
	}
	assert.Equal(t, "Corner Deli", fields.FirstString("vendor_name", "store_name", "merchant_name"))
	assert.Equal(t, "", fields.FirstString("merchant_name"))
}
