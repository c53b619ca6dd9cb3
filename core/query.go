package core

import (
	"context"
	"strconv"
	"strings"
)

// Condition is one equality constraint from a where document. Value is the
// typed form produced by field unserialization.
type Condition struct {
	Field string
	Value any
}

// ListQuery is a compiled list restriction: equality conditions, at most
// one ordering, and an optional positive limit. ReadableBy, when set,
// restricts results to records the principal holds a read grant on.
type ListQuery struct {
	Conditions []Condition
	Order      string
	Descending bool
	Limit      int
	ReadableBy string
}

// ListParams are the raw query-string inputs to a list operation.
type ListParams struct {
	Where string
	Order string
	Limit string
}

// CompileListQuery validates raw list parameters against an entity type.
// Where keys and order fields must name readable fields. Values that fail
// unserialization, including pointers at missing records, reject the whole
// query rather than matching nothing.
func (c *Codec) CompileListQuery(ctx context.Context, et *EntityType, params ListParams) (ListQuery, error) {
	q := ListQuery{}

	if where := strings.TrimSpace(params.Where); where != "" {
		doc, err := DecodeDocument([]byte(where))
		if err != nil {
			return q, err
		}
		for key, wire := range doc {
			if !et.IsReadable(key) {
				return q, ErrInvalidWhere()
			}
			value, err := c.UnserializeField(ctx, et, key, wire)
			if err != nil {
				return q, ErrInvalidWhere()
			}
			q.Conditions = append(q.Conditions, Condition{Field: key, Value: value})
		}
	}

	if order := strings.TrimSpace(params.Order); order != "" {
		field := order
		if strings.HasPrefix(order, "-") {
			q.Descending = true
			field = order[1:]
		}
		if !et.IsReadable(field) {
			return q, ErrInvalidOrder()
		}
		q.Order = field
	}

	if limit := strings.TrimSpace(params.Limit); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			return q, ErrInvalidLimit()
		}
		q.Limit = n
	}

	return q, nil
}
