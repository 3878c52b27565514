package crm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core"
)

// criteria matching modes
const (
	MatchAll = "all"
	MatchAny = "any"
)

// ValueKind is the type expected for the value of a criteria field.
type ValueKind int

const (
	KindString ValueKind = iota
	KindUUID
	KindBool
	KindTime
	KindInt
)

// CriteriaFields lists the contact fields a segment can filter on.
var CriteriaFields = map[string]ValueKind{
	"first_name":    KindString,
	"last_name":     KindString,
	"title":         KindString,
	"email":         KindString,
	"phone":         KindString,
	"city":          KindString,
	"state":         KindString,
	"country":       KindString,
	"status":        KindString,
	"account":       KindUUID,
	"assigned_to":   KindUUID,
	"email_opt_out": KindBool,
	"phone_opt_out": KindBool,
	"created_at":    KindTime,
	"tag":           KindInt,
}

var criteriaOps = map[string]bool{
	"eq": true, "ne": true, "contains": true, "icontains": true, "startswith": true,
	"in": true, "gt": true, "gte": true, "lt": true, "lte": true, "isnull": true,
}

type Condition struct {
	Field string      `json:"field"`
	Op    string      `json:"op"`
	Value interface{} `json:"value"`
}

// Criteria is the JSON definition of a dynamic segment:
//
//	{"match": "all", "conditions": [{"field": "country", "op": "eq", "value": "Angola"}]}
//
// No conditions match every contact.
type Criteria struct {
	Match      string      `json:"match"`
	Conditions []Condition `json:"conditions"`
}

// ParseCriteria decodes and validates a criteria definition. Empty input yields empty criteria.
func ParseCriteria(raw []byte) (*Criteria, error) {
	c := new(Criteria)
	if len(raw) == 0 || string(raw) == "null" {
		c.Match = MatchAll
		return c, nil
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, core.NewFieldError("criteria", "criteria must be a JSON object with match and conditions")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Criteria) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return core.NewFieldError("criteria", fmt.Sprintf(format, args...))
	}

	if c.Match == "" {
		c.Match = MatchAll
	}
	if c.Match != MatchAll && c.Match != MatchAny {
		return invalid("match must be one of: all, any")
	}
	for i, cond := range c.Conditions {
		kind, ok := CriteriaFields[cond.Field]
		if !ok {
			return invalid("condition %d: unknown field %q", i, cond.Field)
		}
		if !criteriaOps[cond.Op] {
			return invalid("condition %d: unknown operator %q", i, cond.Op)
		}
		if err := checkConditionValue(kind, cond); err != nil {
			return invalid("condition %d: %v", i, err)
		}
	}
	return nil
}

func checkConditionValue(kind ValueKind, cond Condition) error {
	switch cond.Op {
	case "isnull":
		if _, ok := cond.Value.(bool); !ok {
			return errors.New("isnull expects a boolean value")
		}
		return nil
	case "in":
		values, ok := cond.Value.([]interface{})
		if !ok || len(values) == 0 {
			return errors.New("in expects a non-empty list")
		}
		for _, v := range values {
			if err := checkScalar(kind, v); err != nil {
				return err
			}
		}
		return nil
	case "contains", "icontains", "startswith":
		if kind != KindString {
			return errors.Errorf("%s only applies to text fields", cond.Op)
		}
	case "gt", "gte", "lt", "lte":
		if kind == KindBool || kind == KindUUID {
			return errors.Errorf("%s does not apply to %s", cond.Op, cond.Field)
		}
	}
	return checkScalar(kind, cond.Value)
}

func checkScalar(kind ValueKind, v interface{}) error {
	switch kind {
	case KindString:
		if _, ok := v.(string); !ok {
			return errors.New("expected a string value")
		}
	case KindUUID:
		s, ok := v.(string)
		if !ok {
			return errors.New("expected an id")
		}
		if _, err := uuid.Parse(s); err != nil {
			return errors.New("expected a valid UUID")
		}
	case KindBool:
		if _, ok := v.(bool); !ok {
			return errors.New("expected a boolean value")
		}
	case KindTime:
		s, ok := v.(string)
		if !ok {
			return errors.New("expected a date")
		}
		if _, err := ParseCriteriaTime(s); err != nil {
			return err
		}
	case KindInt:
		if _, err := CriteriaInt(v); err != nil {
			return err
		}
	}
	return nil
}

// ParseCriteriaTime accepts RFC 3339 timestamps and plain dates.
func ParseCriteriaTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		return time.Time{}, errors.New("expected a date (YYYY-MM-DD) or an RFC 3339 timestamp")
	}
	return t, nil
}

// CriteriaInt converts a decoded JSON number or numeric string to an int.
func CriteriaInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, errors.New("expected an integer")
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, errors.New("expected an integer")
		}
		return i, nil
	}
	return 0, errors.New("expected an integer")
}
