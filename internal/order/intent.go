package order

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/safar/go-shop-orders/internal/inventory"
	"github.com/safar/go-shop-orders/internal/models"
	"github.com/shopspring/decimal"
)

const (
	IntentVersion = 1

	metaVersion = "intent_version"
	metaChunks  = "intent_chunks"
	metaUser    = "user_id"

	// Gateways cap metadata values at 500 characters and 50 keys.
	chunkSize = 500
	maxChunks = 45

	intentMaxAge = 48 * time.Hour
)

// Intent is the priced order a payment session stands for. It travels in
// the session metadata and is rebuilt into an order when the gateway
// reports the session paid.
type Intent struct {
	Version         int                   `json:"v"`
	UserID          uuid.UUID             `json:"u"`
	Items           []IntentItem          `json:"items"`
	ShippingAddress models.Address        `json:"addr"`
	PaymentMethod   models.PaymentMethod  `json:"pm"`
	Subtotal        decimal.Decimal       `json:"sub"`
	DeliveryCharge  decimal.Decimal       `json:"del"`
	DiscountAmount  decimal.Decimal       `json:"disc"`
	Total           decimal.Decimal       `json:"total"`
	Coupon          models.CouponSnapshot `json:"coupon,omitempty"`
	IssuedAt        time.Time             `json:"at"`
}

type IntentItem struct {
	ProductID uuid.UUID            `json:"p"`
	Kind      inventory.TargetKind `json:"k"`
	Name      string               `json:"n"`
	Image     string               `json:"img,omitempty"`
	UnitPrice decimal.Decimal      `json:"up"`
	Quantity  int                  `json:"q"`
	Size      string               `json:"s,omitempty"`
	Variant   string               `json:"va,omitempty"`
	PODData   models.PODData       `json:"pod,omitempty"`
}

func newIntent(userID uuid.UUID, d *draft, addr models.Address, method models.PaymentMethod, now time.Time) Intent {
	in := Intent{
		Version:         IntentVersion,
		UserID:          userID,
		ShippingAddress: addr,
		PaymentMethod:   method,
		Subtotal:        d.subtotal,
		DeliveryCharge:  d.delivery,
		DiscountAmount:  d.discount,
		Total:           d.total,
		Coupon:          d.coupon,
		IssuedAt:        now.UTC(),
	}
	for i, item := range d.items {
		in.Items = append(in.Items, IntentItem{
			ProductID: item.ProductID,
			Kind:      d.targets[i].Kind,
			Name:      item.Name,
			Image:     item.Image,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Size:      item.SelectedSize,
			Variant:   item.SelectedVariant,
			PODData:   item.PODData,
		})
	}
	return in
}

// Metadata splits the JSON encoding of in across numbered keys.
func (in Intent) Metadata() (map[string]string, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode intent: %w", err)
	}

	chunks := splitRunes(raw, chunkSize)
	if len(chunks) > maxChunks {
		return nil, apperr.Validation("order is too large to pay online, please split it")
	}

	meta := map[string]string{
		metaVersion: strconv.Itoa(in.Version),
		metaChunks:  strconv.Itoa(len(chunks)),
		metaUser:    in.UserID.String(),
	}
	for i, c := range chunks {
		meta[chunkKey(i)] = c
	}
	return meta, nil
}

// splitRunes cuts raw into pieces of at most size bytes without splitting a
// UTF-8 sequence, so every piece is valid text on its own.
func splitRunes(raw []byte, size int) []string {
	var out []string
	for start := 0; start < len(raw); {
		end := start + size
		if end >= len(raw) {
			out = append(out, string(raw[start:]))
			break
		}
		for end > start && !utf8.RuneStart(raw[end]) {
			end--
		}
		if end == start {
			_, w := utf8.DecodeRune(raw[start:])
			end = start + w
		}
		out = append(out, string(raw[start:end]))
		start = end
	}
	return out
}

func chunkKey(i int) string {
	return "intent_" + strconv.Itoa(i)
}

func stale(format string, args ...any) error {
	return apperr.Newf(apperr.KindValidation, apperr.CodeStaleIntent, format, args...)
}

// DecodeIntent rebuilds and validates an intent from session metadata. Any
// mismatch with what this build writes is reported as a stale intent.
func DecodeIntent(meta map[string]string, now time.Time) (Intent, error) {
	version, err := strconv.Atoi(meta[metaVersion])
	if err != nil || version != IntentVersion {
		return Intent{}, stale("payment session carries an unsupported order intent version %q", meta[metaVersion])
	}

	n, err := strconv.Atoi(meta[metaChunks])
	if err != nil || n < 1 || n > maxChunks {
		return Intent{}, stale("payment session order intent is incomplete")
	}

	var raw []byte
	for i := 0; i < n; i++ {
		chunk, ok := meta[chunkKey(i)]
		if !ok {
			return Intent{}, stale("payment session order intent is missing part %d", i)
		}
		raw = append(raw, chunk...)
	}

	var in Intent
	if err := json.Unmarshal(raw, &in); err != nil {
		return Intent{}, stale("payment session order intent is malformed")
	}
	if err := in.validate(now); err != nil {
		return Intent{}, err
	}
	return in, nil
}

func (in Intent) validate(now time.Time) error {
	if in.Version != IntentVersion {
		return stale("order intent version %d does not match its envelope", in.Version)
	}
	if in.UserID == uuid.Nil {
		return stale("order intent has no user")
	}
	if len(in.Items) == 0 {
		return stale("order intent has no items")
	}
	if in.IssuedAt.IsZero() || now.Sub(in.IssuedAt) > intentMaxAge {
		return stale("order intent has expired")
	}
	if in.Total.IsNegative() || in.Subtotal.IsNegative() {
		return stale("order intent has negative totals")
	}

	for i, item := range in.Items {
		if item.ProductID == uuid.Nil || item.Quantity < 1 || item.UnitPrice.IsNegative() {
			return stale("order intent item %d is invalid", i+1)
		}
		switch item.Kind {
		case inventory.TargetPlain:
		case inventory.TargetSize:
			if item.Size == "" {
				return stale("order intent item %d has no size", i+1)
			}
		case inventory.TargetVariant:
			if item.Variant == "" {
				return stale("order intent item %d has no variant", i+1)
			}
		default:
			return stale("order intent item %d has unknown stock kind %q", i+1, item.Kind)
		}
	}
	return nil
}

// draft turns a validated intent back into builder output, skipping the
// stock checks that already ran when the session was created.
func (in Intent) draft() *draft {
	d := &draft{
		subtotal: in.Subtotal,
		delivery: in.DeliveryCharge,
		discount: in.DiscountAmount,
		total:    in.Total,
		coupon:   in.Coupon,
	}
	for _, item := range in.Items {
		d.add(models.OrderItem{
			ProductID:       item.ProductID,
			Name:            item.Name,
			Image:           item.Image,
			UnitPrice:       item.UnitPrice,
			Quantity:        item.Quantity,
			SelectedSize:    item.Size,
			SelectedVariant: item.Variant,
			PODData:         item.PODData,
		}, item.Kind)
	}
	return d
}
