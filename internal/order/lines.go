package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/safar/go-shop-orders/internal/inventory"
	"github.com/safar/go-shop-orders/internal/models"
)

// RawLine is one requested line as clients send it. Storefront, mobile and
// cart payloads disagree on field names, so decoding accepts the known
// spellings of each field.
type RawLine struct {
	ProductID       string
	Quantity        int
	SelectedSize    string
	SelectedVariant string
	PODData         models.PODData
}

var (
	productKeys  = []string{"product_id", "productId", "product", "_id"}
	quantityKeys = []string{"quantity", "qty"}
	sizeKeys     = []string{"selected_size", "selectedSize", "size"}
	variantKeys  = []string{"selected_variant", "selectedVariant", "variant"}
	podKeys      = []string{"pod_data", "podData", "customization"}
)

func (l *RawLine) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return fmt.Errorf("order line must be an object: %w", err)
	}

	var err error
	if raw, ok := pick(fields, productKeys); ok {
		if l.ProductID, err = stringOrName(raw, "_id", "id"); err != nil {
			return fmt.Errorf("product id: %w", err)
		}
	}
	if raw, ok := pick(fields, quantityKeys); ok {
		if l.Quantity, err = intValue(raw); err != nil {
			return fmt.Errorf("quantity: %w", err)
		}
	}
	if raw, ok := pick(fields, sizeKeys); ok {
		if l.SelectedSize, err = stringOrName(raw, "size", "name"); err != nil {
			return fmt.Errorf("size: %w", err)
		}
	}
	if raw, ok := pick(fields, variantKeys); ok {
		if l.SelectedVariant, err = stringOrName(raw, "name"); err != nil {
			return fmt.Errorf("variant: %w", err)
		}
	}
	if raw, ok := pick(fields, podKeys); ok {
		if l.PODData, err = podValues(raw); err != nil {
			return fmt.Errorf("pod data: %w", err)
		}
	}
	return nil
}

func pick(fields map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := fields[k]; ok && !isNull(raw) {
			return raw, true
		}
	}
	return nil, false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// stringOrName reads a bare string or, for populated references, the first
// of keys found on an object.
func stringOrName(raw json.RawMessage, keys ...string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("expected string or object")
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			if err := json.Unmarshal(v, &s); err != nil {
				return "", fmt.Errorf("%s must be a string", k)
			}
			return strings.TrimSpace(s), nil
		}
	}
	return "", nil
}

func intValue(raw json.RawMessage) (int, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("expected a number")
		}
		n = json.Number(strings.TrimSpace(s))
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, fmt.Errorf("expected a whole number")
	}
	return v, nil
}

// podValues accepts either [{field_name|fieldName|name, value}] or a plain
// {name: value} object. Object keys are sorted so the result is stable.
func podValues(raw json.RawMessage) (models.PODData, error) {
	var list []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make(models.PODData, 0, len(list))
		for _, entry := range list {
			nameRaw, ok := pick(entry, []string{"field_name", "fieldName", "name"})
			if !ok {
				return nil, fmt.Errorf("entry without field name")
			}
			var name string
			if err := json.Unmarshal(nameRaw, &name); err != nil {
				return nil, fmt.Errorf("field name must be a string")
			}
			out = append(out, models.PODValue{FieldName: name, Value: scalar(entry["value"])})
		}
		return out, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("expected a list or an object")
	}
	names := make([]string, 0, len(obj))
	for k := range obj {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make(models.PODData, 0, len(obj))
	for _, k := range names {
		out = append(out, models.PODValue{FieldName: k, Value: scalar(obj[k])})
	}
	return out, nil
}

// scalar renders a JSON value as the string the POD checks work on.
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 || isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// normalizeLines validates raw lines and turns them into resolver input.
func normalizeLines(raw []RawLine) ([]inventory.Line, error) {
	lines := make([]inventory.Line, 0, len(raw))
	for i, r := range raw {
		if r.ProductID == "" {
			return nil, apperr.Validation("item %d: product id is required", i+1)
		}
		id, err := uuid.Parse(r.ProductID)
		if err != nil {
			return nil, apperr.Newf(apperr.KindValidation, apperr.CodeInvalidID,
				"item %d: %q is not a valid product id", i+1, r.ProductID)
		}
		if r.Quantity < 1 {
			return nil, apperr.Validation("item %d: quantity must be at least 1", i+1)
		}
		lines = append(lines, inventory.Line{
			ProductID:       id,
			Quantity:        r.Quantity,
			SelectedSize:    r.SelectedSize,
			SelectedVariant: r.SelectedVariant,
			PODData:         r.PODData,
		})
	}
	return lines, nil
}

func cartLines(cart []models.CartLine) []inventory.Line {
	lines := make([]inventory.Line, 0, len(cart))
	for _, c := range cart {
		lines = append(lines, inventory.Line{
			ProductID:       c.ProductID,
			Quantity:        c.Quantity,
			SelectedSize:    c.SelectedSize,
			SelectedVariant: c.SelectedVariant,
			PODData:         c.PODData,
		})
	}
	return lines
}

// ParsePaymentMethod maps the spellings clients use onto a PaymentMethod.
func ParsePaymentMethod(s string) (models.PaymentMethod, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", " ", "-", " ").Replace(key)

	switch key {
	case "cod", "cash on delivery", "cash":
		return models.PaymentCOD, nil
	case "stripe", "card", "credit card", "debit card", "online":
		return models.PaymentStripe, nil
	case "razorpay", "upi", "netbanking", "wallet":
		return models.PaymentRazorpay, nil
	case "":
		return "", apperr.Validation("payment method is required")
	default:
		return "", apperr.Validation("unsupported payment method %q", s)
	}
}
