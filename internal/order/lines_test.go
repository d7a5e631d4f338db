package order

import (
	"encoding/json"
	"testing"

	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/safar/go-shop-orders/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawLineSpellings(t *testing.T) {
	const id = "0b8c6c43-1f53-4b7e-9d0f-5b8f0e6d9a11"

	cases := []struct {
		name string
		body string
		want RawLine
	}{
		{
			name: "snake case",
			body: `{"product_id":"` + id + `","quantity":2,"selected_size":"M"}`,
			want: RawLine{ProductID: id, Quantity: 2, SelectedSize: "M"},
		},
		{
			name: "camel case with string quantity",
			body: `{"productId":"` + id + `","qty":"3","selectedVariant":"Red"}`,
			want: RawLine{ProductID: id, Quantity: 3, SelectedVariant: "Red"},
		},
		{
			name: "populated references",
			body: `{"product":{"_id":"` + id + `","name":"Mug"},"quantity":1,"variant":{"name":"Blue"},"size":{"size":"L"}}`,
			want: RawLine{ProductID: id, Quantity: 1, SelectedSize: "L", SelectedVariant: "Blue"},
		},
		{
			name: "null falls through to the next spelling",
			body: `{"product_id":null,"_id":"` + id + `","quantity":1}`,
			want: RawLine{ProductID: id, Quantity: 1},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got RawLine
			require.NoError(t, json.Unmarshal([]byte(tc.body), &got))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRawLinePODData(t *testing.T) {
	var list RawLine
	require.NoError(t, json.Unmarshal([]byte(`{"pod_data":[{"fieldName":"text","value":"Hi"},{"name":"lines","value":2}]}`), &list))
	assert.Equal(t, models.PODData{{FieldName: "text", Value: "Hi"}, {FieldName: "lines", Value: "2"}}, list.PODData)

	var obj RawLine
	require.NoError(t, json.Unmarshal([]byte(`{"customization":{"text":"Hi","color":"red"}}`), &obj))
	assert.Equal(t, models.PODData{{FieldName: "color", Value: "red"}, {FieldName: "text", Value: "Hi"}}, obj.PODData)

	var bad RawLine
	assert.Error(t, json.Unmarshal([]byte(`{"pod_data":[{"value":"x"}]}`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`{"quantity":"two"}`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &bad))
}

func TestNormalizeLines(t *testing.T) {
	_, err := normalizeLines([]RawLine{{ProductID: "not-a-uuid", Quantity: 1}})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidID))

	_, err = normalizeLines([]RawLine{{Quantity: 1}})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	lines, err := normalizeLines([]RawLine{{ProductID: "0b8c6c43-1f53-4b7e-9d0f-5b8f0e6d9a11", Quantity: 4, SelectedSize: "XL"}})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 4, lines[0].Quantity)
	assert.Equal(t, "XL", lines[0].SelectedSize)
}

func TestParsePaymentMethod(t *testing.T) {
	cases := map[string]models.PaymentMethod{
		"COD":              models.PaymentCOD,
		"cash_on_delivery": models.PaymentCOD,
		"Cash on Delivery": models.PaymentCOD,
		"card":             models.PaymentStripe,
		"STRIPE":           models.PaymentStripe,
		"upi":              models.PaymentRazorpay,
		" razorpay ":       models.PaymentRazorpay,
	}
	for in, want := range cases {
		got, err := ParsePaymentMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePaymentMethod("barter")
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}
