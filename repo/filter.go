package repo

import (
	"fmt"
	"phishsim/pkg/goutil"
	"strings"
)

type LogicalOp string

const (
	And LogicalOp = "AND"
	Or  LogicalOp = "OR"
)

type Op string

const (
	OpEq    Op = "="
	OpNotEq Op = "!="
	OpGt    Op = ">"
	OpGte   Op = ">="
	OpLt    Op = "<"
	OpLte   Op = "<="
	OpLike  Op = "LIKE"
	OpIn    Op = "IN"
)

type Condition struct {
	Field string
	Op    Op
	Value interface{}
	// Group renders the nested conditions in parentheses instead of Field/Op/Value.
	Group []*Condition
	// NextLogicalOp joins this condition to the next one, AND when empty.
	NextLogicalOp LogicalOp
}

type Filter struct {
	Conditions []*Condition
	Pagination *Pagination
	Order      string
}

func (f *Filter) GetOrder() string {
	if f != nil && f.Order != "" {
		return f.Order
	}
	return "id DESC"
}

type Pagination struct {
	Page    *uint32 `json:"page,omitempty"`
	Limit   *uint32 `json:"limit,omitempty"`
	HasNext *bool   `json:"has_next,omitempty"`
	Total   *uint32 `json:"total,omitempty"`
}

func (p *Pagination) GetPage() uint32 {
	if p != nil && p.Page != nil {
		return *p.Page
	}
	return 0
}

func (p *Pagination) GetLimit() uint32 {
	if p != nil && p.Limit != nil {
		return *p.Limit
	}
	return 0
}

func ToSqlWithArgs(f *Filter) (string, []interface{}) {
	if f == nil {
		return "", nil
	}
	return conditionsToSql(f.Conditions)
}

func conditionsToSql(conditions []*Condition) (string, []interface{}) {
	var (
		sb   strings.Builder
		args []interface{}
		prev *Condition
	)

	for _, condition := range conditions {
		var (
			part     string
			partArgs []interface{}
		)

		if len(condition.Group) > 0 {
			groupSql, groupArgs := conditionsToSql(condition.Group)
			if groupSql == "" {
				continue
			}
			part, partArgs = fmt.Sprintf("(%s)", groupSql), groupArgs
		} else {
			if goutil.IsNil(condition.Value) {
				continue
			}
			switch condition.Op {
			case OpEq, OpNotEq, OpGt, OpGte, OpLt, OpLte, OpLike:
				part = fmt.Sprintf("%s %s ?", condition.Field, condition.Op)
			case OpIn:
				part = fmt.Sprintf("%s IN ?", condition.Field)
			default:
				continue
			}
			partArgs = []interface{}{condition.Value}
		}

		if prev != nil {
			op := prev.NextLogicalOp
			if op == "" {
				op = And
			}
			sb.WriteString(fmt.Sprintf(" %s ", op))
		}

		sb.WriteString(part)
		args = append(args, partArgs...)
		prev = condition
	}

	return sb.String(), args
}
