package sqlxrepos

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/crm"
)

var criteriaColumns = map[string]string{
	"account":     "account_id",
	"assigned_to": "assigned_to_id",
}

// criteriaSQL compiles segment criteria into a condition over the contact aliased as alias.
// It returns nil when the criteria have no conditions.
func criteriaSQL(c *crm.Criteria, alias string) (sq.Sqlizer, error) {
	if len(c.Conditions) == 0 {
		return nil, nil
	}
	conds := make([]sq.Sqlizer, 0, len(c.Conditions))
	for _, cond := range c.Conditions {
		s, err := conditionSQL(cond, alias)
		if err != nil {
			return nil, err
		}
		conds = append(conds, s)
	}
	if c.Match == crm.MatchAny {
		return sq.Or(conds), nil
	}
	return sq.And(conds), nil
}

func conditionSQL(cond crm.Condition, alias string) (sq.Sqlizer, error) {
	kind, ok := crm.CriteriaFields[cond.Field]
	if !ok {
		return nil, errors.Errorf("unknown criteria field %q", cond.Field)
	}
	if cond.Field == "tag" {
		return tagConditionSQL(cond, alias)
	}

	col, ok := criteriaColumns[cond.Field]
	if !ok {
		col = cond.Field
	}
	col = alias + "." + col

	if cond.Op == "isnull" {
		isNull, _ := cond.Value.(bool)
		// text columns are never NULL; blank stands for unset
		if kind == crm.KindString {
			if isNull {
				return sq.Eq{col: ""}, nil
			}
			return sq.NotEq{col: ""}, nil
		}
		if isNull {
			return sq.Eq{col: nil}, nil
		}
		return sq.NotEq{col: nil}, nil
	}

	if cond.Op == "in" {
		values, _ := cond.Value.([]interface{})
		args := make([]interface{}, 0, len(values))
		for _, v := range values {
			arg, err := criteriaArg(kind, v)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return sq.Eq{col: args}, nil
	}

	arg, err := criteriaArg(kind, cond.Value)
	if err != nil {
		return nil, err
	}
	switch cond.Op {
	case "eq":
		return sq.Eq{col: arg}, nil
	case "ne":
		return sq.NotEq{col: arg}, nil
	case "contains":
		return sq.Like{col: "%" + escapeLike(fmt.Sprint(arg)) + "%"}, nil
	case "icontains":
		return sq.ILike{col: "%" + escapeLike(fmt.Sprint(arg)) + "%"}, nil
	case "startswith":
		return sq.Like{col: escapeLike(fmt.Sprint(arg)) + "%"}, nil
	case "gt":
		return sq.Gt{col: arg}, nil
	case "gte":
		return sq.GtOrEq{col: arg}, nil
	case "lt":
		return sq.Lt{col: arg}, nil
	case "lte":
		return sq.LtOrEq{col: arg}, nil
	}
	return nil, errors.Errorf("unknown criteria operator %q", cond.Op)
}

func tagConditionSQL(cond crm.Condition, alias string) (sq.Sqlizer, error) {
	exists := fmt.Sprintf("EXISTS (SELECT 1 FROM contact_tags ct WHERE ct.contact_id = %s.id", alias)
	switch cond.Op {
	case "isnull":
		if isNull, _ := cond.Value.(bool); isNull {
			return sq.Expr("NOT " + exists + ")"), nil
		}
		return sq.Expr(exists + ")"), nil
	case "in":
		values, _ := cond.Value.([]interface{})
		ids := make([]int64, 0, len(values))
		for _, v := range values {
			id, err := crm.CriteriaInt(v)
			if err != nil {
				return nil, err
			}
			ids = append(ids, int64(id))
		}
		return sq.Expr(exists+" AND ct.tag_id = ANY(?))", pq.Array(ids)), nil
	}
	id, err := crm.CriteriaInt(cond.Value)
	if err != nil {
		return nil, err
	}
	switch cond.Op {
	case "eq":
		return sq.Expr(exists+" AND ct.tag_id = ?)", id), nil
	case "ne":
		return sq.Expr("NOT "+exists+" AND ct.tag_id = ?)", id), nil
	}
	return nil, core.NewFieldError("criteria", fmt.Sprintf("operator %q does not apply to tags", cond.Op))
}

func criteriaArg(kind crm.ValueKind, v interface{}) (interface{}, error) {
	switch kind {
	case crm.KindTime:
		s, _ := v.(string)
		return crm.ParseCriteriaTime(s)
	case crm.KindInt:
		return crm.CriteriaInt(v)
	}
	return v, nil
}
