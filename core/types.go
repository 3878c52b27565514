package core

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

const DateLayout = "2006-01-02"

// Date is a calendar date, serialized as "2006-01-02". The zero Date is null.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Date())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	pd, err := ParseDate(s)
	if err != nil {
		return errors.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	*d = pd
	return nil
}

func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = DateOf(v)
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into core.Date", src)
	}
	return nil
}

func (d *Date) scanString(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	pd, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = pd
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Format(DateLayout), nil
}

// Optional wraps a JSON field and remembers whether it was present in the decoded payload,
// so that an explicit null can be told apart from an absent field.
type Optional[T any] struct {
	Set   bool
	Value T
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	return json.Unmarshal(b, &o.Value)
}

// Assign copies the wrapped value to dst when it was present.
func (o Optional[T]) Assign(dst *T) {
	if o.Set {
		*dst = o.Value
	}
}

// Assign copies *src to dst when src is not nil.
func Assign[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Choices is an ordered set of allowed values with their display labels.
type Choices []Choice

func (cs Choices) Label(value string) string {
	for _, c := range cs {
		if c.Value == value {
			return c.Label
		}
	}
	return value
}

func (cs Choices) Has(value string) bool {
	for _, c := range cs {
		if c.Value == value {
			return true
		}
	}
	return false
}

func (cs Choices) Index(value string) int {
	for i, c := range cs {
		if c.Value == value {
			return i
		}
	}
	return len(cs)
}

// MergeJSON adds extra keys to a marshaled JSON object.
func MergeJSON(base []byte, extra map[string]interface{}) ([]byte, error) {
	obj := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &obj); err != nil {
		return nil, err
	}
	for k, v := range extra {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		obj[k] = raw
	}
	return json.Marshal(obj)
}

// StringList is a list of strings stored as a JSON array.
type StringList []string

func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l *StringList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into core.StringList", src)
	}
	var ss []string
	if err := json.Unmarshal(raw, &ss); err != nil {
		return err
	}
	if ss == nil {
		ss = []string{}
	}
	*l = ss
	return nil
}

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
