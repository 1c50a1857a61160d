// Package export renders tabular reports as CSV, Excel 2003 XML, printable
// HTML and fixed-width text. Cell values are a closed tagged union so
// formatting stays exhaustive instead of switching on interface{} at every
// call site.
package export

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ValueKind discriminates the Value union.
type ValueKind string

const (
	KindText    ValueKind = "text"
	KindNumber  ValueKind = "number"
	KindMoney   ValueKind = "money"
	KindDate    ValueKind = "date"
	KindPercent ValueKind = "percent"
	KindBool    ValueKind = "bool"
)

// Value is one typed cell. The zero Value means "absent" and formats as the
// empty string, which is how field diffs represent a missing side.
type Value struct {
	Kind   ValueKind `json:"kind,omitempty"`
	Text   string    `json:"text,omitempty"`
	Number float64   `json:"number,omitempty"`
	Bool   bool      `json:"bool,omitempty"`
	Time   time.Time `json:"time,omitzero"`
}

func Text(s string) Value     { return Value{Kind: KindText, Text: s} }
func Number(f float64) Value  { return Value{Kind: KindNumber, Number: f} }
func Money(f float64) Value   { return Value{Kind: KindMoney, Number: f} }
func Percent(f float64) Value { return Value{Kind: KindPercent, Number: f} }
func Date(t time.Time) Value  { return Value{Kind: KindDate, Time: t} }
func Bool(b bool) Value       { return Value{Kind: KindBool, Bool: b} }

// IsAbsent reports whether the value is the zero "no value" marker.
func (v Value) IsAbsent() bool { return v.Kind == "" }

// Detect converts an untyped payload value into the union. Unknown shapes are
// serialized to JSON text so nothing is lost.
func Detect(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case string:
		return Text(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case time.Time:
		return Date(t)
	default:
		b, err := json.Marshal(raw)
		if err != nil {
			return Text(fmt.Sprintf("%v", raw))
		}
		return Text(string(b))
	}
}

// Format renders the value for human-facing output.
func (v Value) Format() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindMoney:
		return "$" + strconv.FormatFloat(v.Number, 'f', 2, 64)
	case KindPercent:
		return strconv.FormatFloat(v.Number, 'f', 2, 64) + "%"
	case KindDate:
		return v.Time.Format("02/01/2006 15:04")
	case KindBool:
		if v.Bool {
			return "Sí"
		}
		return "No"
	default:
		return ""
	}
}

// Equal compares two values structurally.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindText:
		return v.Text == o.Text
	case KindNumber, KindMoney, KindPercent:
		return v.Number == o.Number
	case KindDate:
		return v.Time.Equal(o.Time)
	case KindBool:
		return v.Bool == o.Bool
	default:
		return true
	}
}
