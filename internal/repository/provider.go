package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joseph-ayodele/provider-ingest/constants"
	"github.com/joseph-ayodele/provider-ingest/internal/common"
	"github.com/joseph-ayodele/provider-ingest/internal/entity"
)

const tableProviders = "providers"

var providerColumns = []string{
	"id", "natural_key", "slug", "name", "address", "city", "state", "zip_code",
	"county", "borough", "phone", "email", "website", "description", "monthly_price",
	"type", "age_min_months", "age_max_months", "age_range_min", "age_range_max",
	"capacity", "license_number", "camp_id", "evaluation", "doh_inspection_year",
	"doh_report_url", "source", "source_url", "source_as_of_date", "geocode_status",
	"lat", "lng", "is_verified_by_gov", "is_profile_public", "created_at", "updated_at",
}

// ProviderStore reads providers and opens write transactions.
type ProviderStore interface {
	Begin(ctx context.Context) (ProviderTx, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.StoredProvider, error)
	GetByNaturalKey(ctx context.Context, key string) (*entity.StoredProvider, error)
	Stats(ctx context.Context) (*Stats, error)
}

// ProviderTx is one batch transaction. Lookups return nil, nil when nothing matches.
type ProviderTx interface {
	FindByNaturalKey(ctx context.Context, key entity.NaturalKey) (*entity.StoredProvider, error)
	FindByFallback(ctx context.Context, name, address, city string) ([]*entity.StoredProvider, error)
	SlugOwner(ctx context.Context, slug string) (uuid.UUID, bool, error)
	Insert(ctx context.Context, rec *entity.CanonicalRecord, now time.Time) (uuid.UUID, error)
	Update(ctx context.Context, current *entity.StoredProvider, rec *entity.CanonicalRecord, now time.Time) error
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error
	Commit() error
	Rollback() error
}

type providerStore struct {
	db     *DB
	logger *slog.Logger
}

func NewProviderStore(db *DB, logger *slog.Logger) ProviderStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &providerStore{db: db, logger: logger}
}

func (s *providerStore) Begin(ctx context.Context) (ProviderTx, error) {
	tx, err := s.db.Driver.Tx(ctx)
	if err != nil {
		s.logger.Error("failed to begin transaction", "error", err)
		return nil, fmt.Errorf("%w: begin: %v", common.ErrTransaction, err)
	}
	return &providerTx{tx: tx, dialect: s.db.Dialect, logger: s.logger}, nil
}

func (s *providerStore) Get(ctx context.Context, id uuid.UUID) (*entity.StoredProvider, error) {
	p, err := selectOne(ctx, s.db.Driver, s.db.Dialect, entsql.EQ("id", id.String()))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("provider %s: %w", id, common.ErrNotFound)
	}
	return p, nil
}

func (s *providerStore) GetByNaturalKey(ctx context.Context, key string) (*entity.StoredProvider, error) {
	p, err := selectOne(ctx, s.db.Driver, s.db.Dialect, entsql.EQ("natural_key", key))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("provider %q: %w", key, common.ErrNotFound)
	}
	return p, nil
}

type providerTx struct {
	tx      dialect.Tx
	dialect string
	logger  *slog.Logger
}

// FindByNaturalKey matches the stored natural key, or the license/camp column for
// rows first stored under a composite key.
func (t *providerTx) FindByNaturalKey(ctx context.Context, key entity.NaturalKey) (*entity.StoredProvider, error) {
	if key.IsZero() {
		return nil, nil
	}
	preds := []*entsql.Predicate{entsql.EQ("natural_key", key.String())}
	switch key.Kind {
	case entity.KeyLicense:
		preds = append(preds, entsql.EQ("license_number", key.Value))
	case entity.KeyCamp:
		preds = append(preds, entsql.EQ("camp_id", key.Value))
	}
	return selectOne(ctx, t.tx, t.dialect, entsql.Or(preds...))
}

func (t *providerTx) FindByFallback(ctx context.Context, name, address, city string) ([]*entity.StoredProvider, error) {
	if name == "" || address == "" || city == "" {
		return nil, nil
	}
	return selectMany(ctx, t.tx, t.dialect, entsql.And(
		entsql.EQ("name", name),
		entsql.EQ("address", address),
		entsql.EQ("city", city),
	))
}

func (t *providerTx) SlugOwner(ctx context.Context, slug string) (uuid.UUID, bool, error) {
	q, args := entsql.Dialect(t.dialect).
		Select("id").
		From(entsql.Table(tableProviders)).
		Where(entsql.EQ("slug", slug)).
		Limit(1).
		Query()
	rows := &entsql.Rows{}
	if err := t.tx.Query(ctx, q, args, rows); err != nil {
		return uuid.Nil, false, fmt.Errorf("%w: slug owner: %v", common.ErrDatabase, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return uuid.Nil, false, rows.Err()
	}
	var raw string
	if err := rows.Scan(&raw); err != nil {
		return uuid.Nil, false, fmt.Errorf("%w: scan slug owner: %v", common.ErrDatabase, err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("%w: stored id %q: %v", common.ErrDatabase, raw, err)
	}
	return id, true, nil
}

// Insert stores rec under a new id. Description, website and monthly price get
// their defaults when the source has none.
func (t *providerTx) Insert(ctx context.Context, rec *entity.CanonicalRecord, now time.Time) (uuid.UUID, error) {
	id := uuid.New()
	cols := insertColumns(id, rec, now.UTC())
	if err := checkColumns(cols); err != nil {
		return uuid.Nil, err
	}

	ins := entsql.Dialect(t.dialect).Insert(tableProviders)
	names := make([]string, len(cols))
	values := make([]any, len(cols))
	for i, c := range cols {
		names[i], values[i] = c.name, c.value
	}
	q, args := ins.Columns(names...).Values(values...).Query()
	if err := t.tx.Exec(ctx, q, args, nil); err != nil {
		return uuid.Nil, storeError("insert", err)
	}
	return id, nil
}

// Update writes only the fields rec actually carries; nothing stored is blanked.
// A row stored under a composite key takes over rec's license or camp key.
func (t *providerTx) Update(ctx context.Context, current *entity.StoredProvider, rec *entity.CanonicalRecord, now time.Time) error {
	cols := updateColumns(current, rec, now.UTC())
	if err := checkColumns(cols); err != nil {
		return err
	}

	upd := entsql.Dialect(t.dialect).Update(tableProviders)
	for _, c := range cols {
		upd.Set(c.name, c.value)
	}
	q, args := upd.Where(entsql.EQ("id", current.ID.String())).Query()
	var res sql.Result
	if err := t.tx.Exec(ctx, q, args, &res); err != nil {
		return storeError("update", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("provider %s: %w", current.ID, common.ErrNotFound)
	}
	return nil
}

func (t *providerTx) Savepoint(ctx context.Context, name string) error {
	return t.exec(ctx, "SAVEPOINT "+name)
}

func (t *providerTx) RollbackTo(ctx context.Context, name string) error {
	return t.exec(ctx, "ROLLBACK TO SAVEPOINT "+name)
}

func (t *providerTx) Release(ctx context.Context, name string) error {
	return t.exec(ctx, "RELEASE SAVEPOINT "+name)
}

func (t *providerTx) exec(ctx context.Context, stmt string) error {
	if err := t.tx.Exec(ctx, stmt, []any{}, nil); err != nil {
		t.logger.Error("transaction statement failed", "stmt", stmt, "error", err)
		return fmt.Errorf("%w: %s: %v", common.ErrTransaction, strings.ToLower(stmt), err)
	}
	return nil
}

func (t *providerTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrTransaction, err)
	}
	return nil
}

func (t *providerTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%w: rollback: %v", common.ErrTransaction, err)
	}
	return nil
}

// IsUniqueViolation reports a unique constraint failure from Postgres or SQLite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func storeError(op string, err error) error {
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s: %v", common.ErrConstraint, op, err)
	}
	return fmt.Errorf("%w: %s: %v", common.ErrDatabase, op, err)
}

type column struct {
	name  string
	value any
}

func insertColumns(id uuid.UUID, rec *entity.CanonicalRecord, now time.Time) []column {
	website, description, price := "", "", 0.0
	if rec.Website != nil {
		website = *rec.Website
	}
	if rec.Description != nil {
		description = *rec.Description
	}
	if rec.MonthlyPrice != nil {
		price = *rec.MonthlyPrice
	}
	status := rec.GeocodeStatus
	if status == "" {
		status = constants.GeocodeNone
	}
	return []column{
		{"id", id.String()},
		{"natural_key", rec.NaturalKey.String()},
		{"slug", rec.Slug},
		{"name", rec.Name},
		{"address", rec.Address},
		{"city", rec.City},
		{"state", rec.State},
		{"zip_code", deref(rec.ZipCode)},
		{"county", deref(rec.County)},
		{"borough", deref(rec.Borough)},
		{"phone", deref(rec.Phone)},
		{"email", deref(rec.Email)},
		{"website", website},
		{"description", description},
		{"monthly_price", price},
		{"type", string(rec.ProviderType)},
		{"age_min_months", deref(rec.AgeMinMonths)},
		{"age_max_months", deref(rec.AgeMaxMonths)},
		{"age_range_min", rec.AgeRangeMin},
		{"age_range_max", rec.AgeRangeMax},
		{"ages_served_raw", deref(rec.AgesServedRaw)},
		{"capacity", deref(rec.Capacity)},
		{"license_number", deref(rec.LicenseNumber)},
		{"camp_id", deref(rec.CampID)},
		{"camp_owner", deref(rec.CampOwner)},
		{"camp_director", deref(rec.CampDirector)},
		{"health_director", deref(rec.HealthDirector)},
		{"evaluation", deref(rec.Evaluation)},
		{"doh_inspection_year", deref(rec.InspectionYear)},
		{"doh_report_url", deref(rec.ReportURL)},
		{"source", string(rec.Source)},
		{"source_url", deref(rec.SourceURL)},
		{"source_as_of_date", deref(rec.SourceAsOfDate)},
		{"is_verified_by_gov", rec.IsVerifiedByGov},
		{"is_profile_public", rec.IsProfilePublic},
		{"lat", deref(rec.Lat)},
		{"lng", deref(rec.Lng)},
		{"geocode_status", string(status)},
		{"created_at", now},
		{"updated_at", now},
	}
}

func updateColumns(current *entity.StoredProvider, rec *entity.CanonicalRecord, now time.Time) []column {
	var cols []column
	setString := func(name, v string) {
		if v != "" {
			cols = append(cols, column{name, v})
		}
	}
	setPtr := func(name string, v *string) {
		if v != nil && *v != "" {
			cols = append(cols, column{name, *v})
		}
	}
	setInt := func(name string, v *int) {
		if v != nil {
			cols = append(cols, column{name, *v})
		}
	}

	if rec.NaturalKey.Strong() && current.KeyKind() == entity.KeyComposite {
		cols = append(cols, column{"natural_key", rec.NaturalKey.String()})
	}
	setString("name", rec.Name)
	setString("address", rec.Address)
	setString("city", rec.City)
	setString("state", rec.State)
	setPtr("zip_code", rec.ZipCode)
	setPtr("county", rec.County)
	setPtr("borough", rec.Borough)
	setPtr("phone", rec.Phone)
	setPtr("email", rec.Email)
	setPtr("website", rec.Website)
	setPtr("description", rec.Description)
	if rec.MonthlyPrice != nil {
		cols = append(cols, column{"monthly_price", *rec.MonthlyPrice})
	}
	if rec.TypeClassified {
		setString("type", string(rec.ProviderType))
	}
	setInt("age_min_months", rec.AgeMinMonths)
	setInt("age_max_months", rec.AgeMaxMonths)
	// the type fallback range never replaces a stored parsed range
	if rec.AgeMinMonths != nil && rec.AgeMaxMonths != nil {
		cols = append(cols, column{"age_range_min", rec.AgeRangeMin}, column{"age_range_max", rec.AgeRangeMax})
	}
	setPtr("ages_served_raw", rec.AgesServedRaw)
	setInt("capacity", rec.Capacity)
	setPtr("license_number", rec.LicenseNumber)
	setPtr("camp_id", rec.CampID)
	setPtr("camp_owner", rec.CampOwner)
	setPtr("camp_director", rec.CampDirector)
	setPtr("health_director", rec.HealthDirector)
	setPtr("evaluation", rec.Evaluation)
	setInt("doh_inspection_year", rec.InspectionYear)
	setPtr("doh_report_url", rec.ReportURL)
	setString("source", string(rec.Source))
	setPtr("source_url", rec.SourceURL)
	if rec.SourceAsOfDate != nil {
		cols = append(cols, column{"source_as_of_date", *rec.SourceAsOfDate})
	}
	if rec.IsVerifiedByGov {
		cols = append(cols, column{"is_verified_by_gov", true})
	}
	if rec.Lat != nil && rec.Lng != nil {
		cols = append(cols,
			column{"lat", *rec.Lat},
			column{"lng", *rec.Lng},
			column{"geocode_status", string(rec.GeocodeStatus)},
		)
	}
	cols = append(cols, column{"updated_at", now})
	return cols
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func selectOne(ctx context.Context, q dialect.ExecQuerier, dialectName string, where *entsql.Predicate) (*entity.StoredProvider, error) {
	list, err := selectProviders(ctx, q, dialectName, where, 1)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

func selectMany(ctx context.Context, q dialect.ExecQuerier, dialectName string, where *entsql.Predicate) ([]*entity.StoredProvider, error) {
	return selectProviders(ctx, q, dialectName, where, 0)
}

func selectProviders(ctx context.Context, q dialect.ExecQuerier, dialectName string, where *entsql.Predicate, limit int) ([]*entity.StoredProvider, error) {
	sel := entsql.Dialect(dialectName).
		Select(providerColumns...).
		From(entsql.Table(tableProviders)).
		Where(where).
		OrderBy("created_at", "id")
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("%w: select providers: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.StoredProvider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: select providers: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func scanProvider(rows *entsql.Rows) (*entity.StoredProvider, error) {
	var (
		p                                            entity.StoredProvider
		id                                           string
		zip, county, borough, phone, email           sql.NullString
		license, camp, evaluation, report, sourceURL sql.NullString
		ageMin, ageMax, capacity, inspectionYear     sql.NullInt64
		lat, lng                                     sql.NullFloat64
		asOf                                         sql.NullTime
	)
	err := rows.Scan(
		&id, &p.NaturalKey, &p.Slug, &p.Name, &p.Address, &p.City, &p.State, &zip,
		&county, &borough, &phone, &email, &p.Website, &p.Description, &p.MonthlyPrice,
		&p.ProviderType, &ageMin, &ageMax, &p.AgeRangeMin, &p.AgeRangeMax,
		&capacity, &license, &camp, &evaluation, &inspectionYear,
		&report, &p.Source, &sourceURL, &asOf, &p.GeocodeStatus,
		&lat, &lng, &p.IsVerifiedByGov, &p.IsProfilePublic, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: scan provider: %v", common.ErrDatabase, err)
	}
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: stored id %q: %v", common.ErrDatabase, id, err)
	}
	p.ZipCode = nullString(zip)
	p.County = nullString(county)
	p.Borough = nullString(borough)
	p.Phone = nullString(phone)
	p.Email = nullString(email)
	p.LicenseNumber = nullString(license)
	p.CampID = nullString(camp)
	p.Evaluation = nullString(evaluation)
	p.ReportURL = nullString(report)
	p.SourceURL = nullString(sourceURL)
	p.AgeMinMonths = nullInt(ageMin)
	p.AgeMaxMonths = nullInt(ageMax)
	p.Capacity = nullInt(capacity)
	p.InspectionYear = nullInt(inspectionYear)
	if lat.Valid {
		p.Lat = &lat.Float64
	}
	if lng.Valid {
		p.Lng = &lng.Float64
	}
	if asOf.Valid {
		p.SourceAsOfDate = &asOf.Time
	}
	return &p, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
