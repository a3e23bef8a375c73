package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/noa10/mataresit-sub011/internal/db"
)

// Aggregate runs a single-stage GROUPBY/REDUCE pipeline via FT.AGGREGATE.
func (s *Store) Aggregate(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error) {
	args, err := buildAggregateArgs(q)
	if err != nil {
		return nil, err
	}

	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpAggregate, Err: err}
	}

	// [count, row1, row2, ...] where each row is a flat field/value array
	res := &db.AggregateResult{}
	for i := 1; i < len(raw); i++ {
		pairs, err := raw[i].ToArray()
		if err != nil {
			continue
		}
		res.Rows = append(res.Rows, parseFieldPairs(pairs))
	}
	return res, nil
}

func buildAggregateArgs(q *db.AggregateQuery) ([]string, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.GroupBy) == 0 {
		return nil, fmt.Errorf("at least one group-by field is required")
	}

	parts := make([]string, 0, 2)
	if filterStr := buildFilter(q.Filter); filterStr != "" {
		parts = append(parts, filterStr)
	}
	if q.Query != "" {
		parts = append(parts, q.Query)
	}
	queryStr := "*"
	if len(parts) > 0 {
		queryStr = strings.Join(parts, " ")
	}

	args := []string{q.IndexName, queryStr, "GROUPBY", strconv.Itoa(len(q.GroupBy))}
	for _, g := range q.GroupBy {
		args = append(args, "@"+g)
	}
	for _, r := range q.Reducers {
		fn := strings.ToUpper(r.Func)
		if fn == "COUNT" {
			args = append(args, "REDUCE", "COUNT", "0")
		} else {
			if r.Field == "" {
				return nil, fmt.Errorf("reducer %s requires a field", fn)
			}
			args = append(args, "REDUCE", fn, "1", "@"+r.Field)
		}
		if r.As != "" {
			args = append(args, "AS", r.As)
		}
	}
	if q.SortBy != "" {
		dir := "ASC"
		if q.SortDesc {
			dir = "DESC"
		}
		args = append(args, "SORTBY", "2", "@"+q.SortBy, dir)
	}
	if q.Limit > 0 {
		args = append(args, "LIMIT", "0", strconv.Itoa(q.Limit))
	}
	args = append(args, "DIALECT", "2")
	return args, nil
}
