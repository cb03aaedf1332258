package repository

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/provider-ingest/internal/common"
)

// Stats summarizes the providers table for operators.
type Stats struct {
	Total     int
	Verified  int
	BySource  map[string]int
	ByType    map[string]int
	ByGeocode map[string]int
}

func (s *providerStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		BySource:  map[string]int{},
		ByType:    map[string]int{},
		ByGeocode: map[string]int{},
	}
	groups := []struct {
		column string
		into   map[string]int
	}{
		{"source", st.BySource},
		{"type", st.ByType},
		{"geocode_status", st.ByGeocode},
	}
	for _, g := range groups {
		if err := s.countBy(ctx, g.column, g.into); err != nil {
			return nil, err
		}
	}
	for _, n := range st.BySource {
		st.Total += n
	}

	q, args := entsql.Dialect(s.db.Dialect).
		Select(entsql.Count("*")).
		From(entsql.Table(tableProviders)).
		Where(entsql.EQ("is_verified_by_gov", true)).
		Query()
	rows := &entsql.Rows{}
	if err := s.db.Driver.Query(ctx, q, args, rows); err != nil {
		return nil, fmt.Errorf("%w: count verified: %v", common.ErrDatabase, err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&st.Verified); err != nil {
			return nil, fmt.Errorf("%w: count verified: %v", common.ErrDatabase, err)
		}
	}
	return st, rows.Err()
}

func (s *providerStore) countBy(ctx context.Context, column string, into map[string]int) error {
	q, args := entsql.Dialect(s.db.Dialect).
		Select(column, entsql.Count("*")).
		From(entsql.Table(tableProviders)).
		GroupBy(column).
		Query()
	rows := &entsql.Rows{}
	if err := s.db.Driver.Query(ctx, q, args, rows); err != nil {
		return fmt.Errorf("%w: count by %s: %v", common.ErrDatabase, column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("%w: count by %s: %v", common.ErrDatabase, column, err)
		}
		into[key] = n
	}
	return rows.Err()
}
