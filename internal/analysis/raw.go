// Package analysis turns the untrusted JSON produced by a receipt
// structurer into a NormalizedReceipt with a confidence rating.
package analysis

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind is the JSON type held by a Value.
type Kind int

const (
	KindAbsent Kind = iota
	KindNull
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

// Value is one scalar of the raw payload. The zero Value is absent.
// Decoding never fails for well-formed JSON, so a wrong type never aborts
// the surrounding object.
type Value struct {
	kind Kind
	str  string
	num  json.Number
	b    bool
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric Value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatFloat(f, 'f', -1, 64))}
}

// Null returns an explicit JSON null.
func Null() Value { return Value{kind: KindNull} }

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*v = Value{}
		return nil
	}
	switch data[0] {
	case 'n':
		*v = Value{kind: KindNull}
	case 't', 'f':
		*v = Value{kind: KindBool, b: data[0] == 't'}
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value{kind: KindString, str: s}
	case '{':
		*v = Value{kind: KindObject}
	case '[':
		*v = Value{kind: KindArray}
	default:
		*v = Value{kind: KindNumber, num: json.Number(data)}
	}
	return nil
}

// MarshalJSON implements json.Marshaler. Objects and arrays are not
// retained and encode as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return []byte(v.num), nil
	case KindBool:
		return json.Marshal(v.b)
	}
	return []byte("null"), nil
}

// Kind reports the JSON type of v.
func (v Value) Kind() Kind { return v.kind }

// Missing reports whether v is absent or null.
func (v Value) Missing() bool { return v.kind == KindAbsent || v.kind == KindNull }

// Text returns the textual form of a scalar. Objects, arrays and missing
// values have no text.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num.String()
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// Scalar returns the Go value of a scalar: string, json.Number or bool.
// Everything else is nil.
func (v Value) Scalar() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	}
	return nil
}

// RawMerchant is the merchant object of the payload.
type RawMerchant struct {
	Name    Value `json:"name"`
	Address Value `json:"address"`
	City    Value `json:"city"`
	State   Value `json:"state"`
	ZipCode Value `json:"zip_code"`
	Phone   Value `json:"phone"`
}

// RawTransaction is the transaction object of the payload.
type RawTransaction struct {
	Date          Value `json:"date"`
	Time          Value `json:"time"`
	Subtotal      Value `json:"subtotal"`
	TaxAmount     Value `json:"tax_amount"`
	TotalAmount   Value `json:"total_amount"`
	PaymentMethod Value `json:"payment_method"`
}

// RawItem is one element of the payload's items array.
type RawItem struct {
	ReceiptName  Value `json:"receipt_name"`
	StandardName Value `json:"standard_name"`
	Name         Value `json:"name"`
	Price        Value `json:"price"`
	Quantity     Value `json:"quantity"`
	Category     Value `json:"category"`
}

// RawAnalysis is the payload as received. A nil Merchant or Transaction
// means the key was missing or not an object. Items that were not objects
// are left out.
type RawAnalysis struct {
	Merchant    *RawMerchant
	Transaction *RawTransaction
	Items       []RawItem
}

// UnmarshalJSON implements json.Unmarshaler. Only a payload that is not a
// JSON object at all is an error.
func (r *RawAnalysis) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = RawAnalysis{}

	if b, ok := fields["merchant"]; ok && isObject(b) {
		var m RawMerchant
		if err := json.Unmarshal(b, &m); err == nil {
			r.Merchant = &m
		}
	}
	if b, ok := fields["transaction"]; ok && isObject(b) {
		var t RawTransaction
		if err := json.Unmarshal(b, &t); err == nil {
			r.Transaction = &t
		}
	}
	if b, ok := fields["items"]; ok && isArray(b) {
		var elems []json.RawMessage
		if err := json.Unmarshal(b, &elems); err == nil {
			for _, e := range elems {
				if !isObject(e) {
					continue
				}
				var it RawItem
				if err := json.Unmarshal(e, &it); err == nil {
					r.Items = append(r.Items, it)
				}
			}
		}
	}
	return nil
}

// DecodeRaw decodes a JSON payload into a RawAnalysis.
func DecodeRaw(data []byte) (RawAnalysis, error) {
	var r RawAnalysis
	if err := json.Unmarshal(data, &r); err != nil {
		return RawAnalysis{}, err
	}
	return r, nil
}

func isObject(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

func isArray(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '['
}
