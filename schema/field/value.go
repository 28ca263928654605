package field

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sentinel is a reserved token standing in for a numeric value.
type Sentinel uint8

// List of sentinels.
const (
	NoSentinel Sentinel = iota
	Autosize
	Autocalculate
)

// String returns the canonical token of the sentinel.
func (s Sentinel) String() string {
	switch s {
	case Autosize:
		return "Autosize"
	case Autocalculate:
		return "Autocalculate"
	default:
		return ""
	}
}

// ParseSentinel returns the sentinel for the given token, case-insensitively.
func ParseSentinel(s string) (Sentinel, bool) {
	switch {
	case strings.EqualFold(s, "autosize"):
		return Autosize, true
	case strings.EqualFold(s, "autocalculate"):
		return Autocalculate, true
	default:
		return NoSentinel, false
	}
}

type valueKind uint8

const (
	unset valueKind = iota
	stringValue
	numberValue
	integerValue
	sentinelValue
)

// Value is a typed field value. The zero Value is unset.
type Value struct {
	k valueKind
	s string
	n float64
	i int64
	t Sentinel
}

// StringValue returns a string value.
func StringValue(s string) Value { return Value{k: stringValue, s: s} }

// NumberValue returns a real value.
func NumberValue(f float64) Value { return Value{k: numberValue, n: f} }

// IntegerValue returns an integer value.
func IntegerValue(i int64) Value { return Value{k: integerValue, i: i} }

// SentinelValue returns a sentinel value.
func SentinelValue(s Sentinel) Value { return Value{k: sentinelValue, t: s} }

// ValueOf converts a Go value into a Value. It accepts strings, Go numbers,
// Sentinels and Values.
func ValueOf(v any) (Value, error) {
	switch v := v.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return v, nil
	case string:
		return StringValue(v), nil
	case Sentinel:
		return SentinelValue(v), nil
	case float64:
		return NumberValue(v), nil
	case float32:
		return NumberValue(float64(v)), nil
	case int:
		return IntegerValue(int64(v)), nil
	case int32:
		return IntegerValue(int64(v)), nil
	case int64:
		return IntegerValue(v), nil
	case uint:
		return IntegerValue(int64(v)), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// IsSet reports if the value holds anything.
func (v Value) IsSet() bool { return v.k != unset }

// IsSentinel reports if the value is the given sentinel.
func (v Value) IsSentinel(s Sentinel) bool { return v.k == sentinelValue && v.t == s }

// Sentinel returns the sentinel held by the value, if any.
func (v Value) Sentinel() (Sentinel, bool) {
	return v.t, v.k == sentinelValue
}

// Str returns the string held by the value.
func (v Value) Str() (string, bool) {
	return v.s, v.k == stringValue
}

// Float returns the numeric value as a float64. Integers are converted.
func (v Value) Float() (float64, bool) {
	switch v.k {
	case numberValue:
		return v.n, true
	case integerValue:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// Int returns the numeric value as an int64. Reals with a fractional part
// or outside the int64 range are rejected.
func (v Value) Int() (int64, bool) {
	switch v.k {
	case integerValue:
		return v.i, true
	case numberValue:
		if v.n == math.Trunc(v.n) && v.n >= -1<<63 && v.n < 1<<63 {
			return int64(v.n), true
		}
	}
	return 0, false
}

// Any returns the value as a plain Go value (string, float64, int64 or Sentinel),
// or nil when unset.
func (v Value) Any() any {
	switch v.k {
	case stringValue:
		return v.s
	case numberValue:
		return v.n
	case integerValue:
		return v.i
	case sentinelValue:
		return v.t
	default:
		return nil
	}
}

// Equal reports if two values are the same. Numbers compare by magnitude
// regardless of integer or real representation.
func (v Value) Equal(o Value) bool {
	if a, ok := v.Float(); ok {
		b, ok := o.Float()
		return ok && a == b
	}
	return v == o
}

// String returns the flat text form of the value.
func (v Value) String() string {
	switch v.k {
	case stringValue:
		return v.s
	case numberValue:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case integerValue:
		return strconv.FormatInt(v.i, 10)
	case sentinelValue:
		return v.t.String()
	default:
		return ""
	}
}

// ErrSentinelNotAllowed is returned when a field does not accept a sentinel.
var ErrSentinelNotAllowed = errors.New("sentinel not allowed")

// ErrDelimiter is returned for text holding a character of the flat
// format syntax.
var ErrDelimiter = errors.New("text holds a delimiter")

// Delimiters are the characters a flat value cannot hold.
const Delimiters = ",;!\n\r"

// CheckText rejects text that would not survive a flat text round trip.
func CheckText(s string) error {
	if i := strings.IndexAny(s, Delimiters); i >= 0 {
		return fmt.Errorf("%w: %q in %q", ErrDelimiter, s[i], s)
	}
	return nil
}

// Normalize checks v against the descriptor and returns its canonical form:
// integers stored in real fields become reals, integral reals in integer
// fields become integers and choice keys take the declared spelling.
// Unset values are returned as is.
func (d *Descriptor) Normalize(v Value) (Value, error) {
	if !v.IsSet() {
		return v, nil
	}
	if s, ok := v.Sentinel(); ok {
		switch {
		case s == Autosize && d.Autosizable, s == Autocalculate && d.Autocalculatable:
			return v, nil
		default:
			return Value{}, fmt.Errorf("%w: %s for field %q", ErrSentinelNotAllowed, s, d.Name)
		}
	}
	switch d.Kind {
	case KindString, KindReference:
		s, ok := v.Str()
		if !ok {
			return Value{}, fmt.Errorf("field %q expects a %s value, got %v", d.Name, d.Kind, v.Any())
		}
		if err := CheckText(s); err != nil {
			return Value{}, fmt.Errorf("field %q: %w", d.Name, err)
		}
		if len(d.Choices) == 0 {
			return v, nil
		}
		for _, c := range d.Choices {
			if strings.EqualFold(c, s) {
				return StringValue(c), nil
			}
		}
		return Value{}, fmt.Errorf("field %q: %q is not one of %s", d.Name, s, strings.Join(d.Choices, ", "))
	case KindNumber:
		f, ok := v.Float()
		if !ok {
			return Value{}, fmt.Errorf("field %q expects a number, got %q", d.Name, v.String())
		}
		if err := d.checkBounds(f); err != nil {
			return Value{}, err
		}
		return NumberValue(f), nil
	case KindInteger:
		i, ok := v.Int()
		if !ok {
			return Value{}, fmt.Errorf("field %q expects an integer, got %q", d.Name, v.String())
		}
		if err := d.checkBounds(float64(i)); err != nil {
			return Value{}, err
		}
		return IntegerValue(i), nil
	default:
		return Value{}, fmt.Errorf("field %q: invalid kind %s", d.Name, d.Kind)
	}
}

func (d *Descriptor) checkBounds(f float64) error {
	if math.IsNaN(f) {
		return fmt.Errorf("field %q: value is NaN", d.Name)
	}
	if d.Min != nil {
		if f < *d.Min || (d.ExclusiveMin && f == *d.Min) {
			return fmt.Errorf("field %q: value %v below minimum %v", d.Name, f, *d.Min)
		}
	}
	if d.Max != nil {
		if f > *d.Max || (d.ExclusiveMax && f == *d.Max) {
			return fmt.Errorf("field %q: value %v above maximum %v", d.Name, f, *d.Max)
		}
	}
	return nil
}

// Encode returns the flat text form of v for this field.
func (d *Descriptor) Encode(v Value) string {
	if f, ok := v.Float(); ok && d.Kind == KindNumber {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return v.String()
}

// Decode parses the flat text form of a field value. Empty text yields an
// unset value. Sentinel tokens are recognized case-insensitively on
// numeric fields.
func (d *Descriptor) Decode(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}, nil
	}
	switch d.Kind {
	case KindNumber, KindInteger:
		if t, ok := ParseSentinel(s); ok {
			return d.Normalize(SentinelValue(t))
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("field %q: %q is not a number", d.Name, s)
		}
		return d.Normalize(NumberValue(f))
	default:
		return d.Normalize(StringValue(s))
	}
}
