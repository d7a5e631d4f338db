package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB columns. Value marshals, Scan accepts the []byte lib/pq hands back.

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported jsonb source %T", src)
	}
}

func (a Address) Value() (driver.Value, error) { return json.Marshal(a) }
func (a *Address) Scan(src any) error { return scanJSON(src, a) }

func (c CouponSnapshot) Value() (driver.Value, error) { return json.Marshal(c) }
func (c *CouponSnapshot) Scan(src any) error { return scanJSON(src, c) }

func (p PaymentInfo) Value() (driver.Value, error) { return json.Marshal(p) }
func (p *PaymentInfo) Scan(src any) error { return scanJSON(src, p) }

func (f PODFields) Value() (driver.Value, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]PODField(f))
}
func (f *PODFields) Scan(src any) error { return scanJSON(src, (*[]PODField)(f)) }

func (d PODData) Value() (driver.Value, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]PODValue(d))
}
func (d *PODData) Scan(src any) error { return scanJSON(src, (*[]PODValue)(d)) }
