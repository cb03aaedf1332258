package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/provider-ingest/constants"
	"github.com/joseph-ayodele/provider-ingest/internal/common"
	"github.com/joseph-ayodele/provider-ingest/internal/entity"
	"github.com/joseph-ayodele/provider-ingest/internal/normalize"
	"github.com/joseph-ayodele/provider-ingest/internal/repository"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newStore(t *testing.T) repository.ProviderStore {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, "", quiet)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(quiet) })
	require.NoError(t, repository.EnsureSchema(ctx, db, quiet))
	return repository.NewProviderStore(db, quiet)
}

func dcf(license, name, address, city, phone string) entity.CanonicalRecord {
	return normalizeDCF(dcfRaw(license, name, address, city, phone))
}

func normalizeDCF(raw entity.RawRecord) entity.CanonicalRecord {
	return normalize.New(normalize.ProfileFor(constants.SourceNJDCF)).Normalize(raw)
}

func dcfRaw(license, name, address, city, phone string) entity.RawRecord {
	raw := entity.NewRawRecord(entity.Provenance{Document: "dcf.pdf"})
	raw.Set(entity.FieldLicenseNumber, license)
	raw.Set(entity.FieldName, name)
	raw.Set(entity.FieldAddress, address)
	raw.Set(entity.FieldCity, city)
	raw.Set(entity.FieldZip, "07102")
	raw.Set(entity.FieldPhone, phone)
	raw.Set(entity.FieldProviderType, "Child Care Center")
	raw.Set(entity.FieldAges, "2 1/2 - 6 Years")
	return raw
}

func run(t *testing.T, u *Upserter, recs ...entity.CanonicalRecord) *Result {
	t.Helper()
	res, err := u.RunBatch(context.Background(), recs)
	require.NoError(t, err)
	return res
}

func TestNewRecordsAreInserted(t *testing.T) {
	store := newStore(t)
	u := NewUpserter(store, Options{FallbackMatch: true}, quiet)

	res := run(t, u,
		dcf("NJ1", "Sunshine Center", "12 Main St", "Newark", "201-555-1234"),
		dcf("NJ2", "Acorn Academy", "9 Elm Ave", "Orange", ""),
	)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 0, res.Errors)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, constants.StateNew, res.Outcomes[0].State)
	assert.Equal(t, "license:NJ1", res.Outcomes[0].Key)

	got, err := store.Get(context.Background(), res.Outcomes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Sunshine Center", got.Name)
	assert.Equal(t, "+12015551234", *got.Phone)
	assert.Equal(t, 30, *got.AgeMinMonths)
	assert.Equal(t, 72, *got.AgeMaxMonths)
}

func TestRerunIsIdempotent(t *testing.T) {
	store := newStore(t)
	clock := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	u := NewUpserter(store, Options{FallbackMatch: true}, quiet).WithClock(func() time.Time { return clock })
	batch := func() []entity.CanonicalRecord {
		return []entity.CanonicalRecord{
			dcf("NJ1", "Sunshine Center", "12 Main St", "Newark", "201-555-1234"),
			dcf("", "Corner Kids", "3 Oak St", "Newark", ""),
		}
	}

	first := run(t, u, batch()...)
	assert.Equal(t, 2, first.Inserted)
	before := readAll(t, store, first)

	clock = clock.Add(24 * time.Hour)
	second := run(t, u, batch()...)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Updated)
	for i, out := range second.Outcomes {
		assert.Equal(t, constants.StateExisting, out.State)
		assert.Equal(t, first.Outcomes[i].ID, out.ID)
	}

	after := readAll(t, store, second)
	if diff := cmp.Diff(before, after, cmpopts.IgnoreFields(entity.StoredProvider{}, "UpdatedAt")); diff != "" {
		t.Errorf("stored rows changed on rerun (-before +after):\n%s", diff)
	}
	assert.True(t, after[0].UpdatedAt.After(before[0].UpdatedAt))

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
}

func readAll(t *testing.T, store repository.ProviderStore, res *Result) []*entity.StoredProvider {
	t.Helper()
	var out []*entity.StoredProvider
	for _, o := range res.Outcomes {
		p, err := store.Get(context.Background(), o.ID)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func TestUpdateDoesNotEraseFields(t *testing.T) {
	store := newStore(t)
	u := NewUpserter(store, Options{FallbackMatch: true}, quiet)
	first := run(t, u, dcf("NJ1", "Sunshine Center", "12 Main St", "Newark", "201-555-1234"))

	later := dcf("NJ1", "Sunshine Center", "12 Main St", "Newark", "")
	later.Email = ptr("office@sunshine.example")
	second := run(t, u, later)
	require.Equal(t, 1, second.Updated)

	got, err := store.Get(context.Background(), first.Outcomes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "+12015551234", *got.Phone)
	assert.Equal(t, "office@sunshine.example", *got.Email)
}

func TestUpdateKeepsAddressWhenOnlyPhoneChanges(t *testing.T) {
	store := newStore(t)
	u := NewUpserter(store, Options{FallbackMatch: true}, quiet)
	first := run(t, u, dcf("NJ1", "Sunshine Center", "12 Main St", "Newark", "201-555-1234"))

	second := run(t, u, dcf("NJ1", "Sunshine Center", "", "Newark", "201-555-9999"))
	require.Equal(t, 1, second.Updated)
	assert.Equal(t, first.Outcomes[0].ID, second.Outcomes[0].ID)

	got, err := store.Get(context.Background(), first.Outcomes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "12 Main Street", got.Address)
	assert.Equal(t, "+12015559999", *got.Phone)
}

func TestUpdateKeepsTypeWhenUnclassified(t *testing.T) {
	store := newStore(t)
	u := NewUpserter(store, Options{FallbackMatch: true}, quiet)

	raw := dcfRaw("NJ1", "Sunshine Center", "12 Main St", "Newark", "201-555-1234")
	raw.Set(entity.FieldProviderType, "Private School")
	first := run(t, u, normalizeDCF(raw))

	raw = dcfRaw("NJ1", "Sunshine Center", "12 Main St", "Newark", "201-555-9999")
	raw.SetNull(entity.FieldProviderType)
	later := normalizeDCF(raw)
	require.False(t, later.TypeClassified)
	run(t, u, later)

	got, err := store.Get(context.Background(), first.Outcomes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "school", got.ProviderType)
	assert.Equal(t, "+12015559999", *got.Phone)

	raw = dcfRaw("NJ1", "Sunshine Center", "12 Main St", "Newark", "")
	raw.Set(entity.FieldProviderType, "Before and After Care")
	run(t, u, normalizeDCF(raw))
	got, err = store.Get(context.Background(), first.Outcomes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "afterschool", got.ProviderType)
}

func TestPartialFailureCommitsTheRest(t *testing.T) {
	store := newStore(t)
	u := NewUpserter(store, Options{FallbackMatch: true}, quiet)

	seed := dcf("L0", "Seed Camp", "1 Lake Rd", "Denville", "")
	seed.CampID = ptr("C-dup")
	run(t, u, seed)

	var batch []entity.CanonicalRecord
	for i := 1; i <= 10; i++ {
		rec := dcf(fmt.Sprintf("L%d", i), fmt.Sprintf("Center %d", i), fmt.Sprintf("%d Main St", i), "Newark", "")
		if i == 5 {
			rec.CampID = ptr("C-dup")
		}
		batch = append(batch, rec)
	}

	res := run(t, u, batch...)
	assert.Equal(t, 9, res.Inserted)
	assert.Equal(t, 1, res.Errors)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0], "record 5 (license:L5)")
	assert.Equal(t, constants.StateError, res.Outcomes[4].State)
	assert.True(t, errors.Is(res.Outcomes[4].Err, common.ErrConstraint))

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, st.Total)
}

func TestFallbackMatch(t *testing.T) {
	store := newStore(t)
	u := NewUpserter(store, Options{FallbackMatch: true}, quiet)
	first := run(t, u, dcf("", "Corner Kids", "3 Oak St", "Newark", ""))

	// the licensed listing of the same provider is matched on name and address
	res := run(t, u, dcf("NJ77", "Corner Kids", "3 Oak St", "Newark", ""))
	require.Equal(t, 1, res.Updated)
	assert.Equal(t, first.Outcomes[0].ID, res.Outcomes[0].ID)

	got, err := store.Get(context.Background(), res.Outcomes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "license:NJ77", got.NaturalKey)

	// a different license at the same address is another provider
	other := run(t, u, dcf("NJ78", "Corner Kids", "3 Oak St", "Newark", ""))
	require.Equal(t, 1, other.Inserted)
	stored, err := store.Get(context.Background(), other.Outcomes[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, got.Slug, stored.Slug)
	assert.Contains(t, stored.Slug, got.Slug+"-")
}

func TestFallbackDisabledInserts(t *testing.T) {
	store := newStore(t)
	run(t, NewUpserter(store, Options{FallbackMatch: true}, quiet), dcf("", "Corner Kids", "3 Oak St", "Newark", ""))

	res := run(t, NewUpserter(store, Options{}, quiet), dcf("NJ77", "Corner Kids", "3 Oak St", "Newark", ""))
	assert.Equal(t, 1, res.Inserted)
	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
}

func TestSlugCollisionIsDeterministic(t *testing.T) {
	a := dcf("NJ1", "Little Learners", "1 First St", "Newark", "")
	b := dcf("NJ2", "Little Learners", "2 Second St", "Newark", "")
	require.Equal(t, a.Slug, b.Slug)

	slugs := func() []string {
		store := newStore(t)
		res := run(t, NewUpserter(store, Options{FallbackMatch: true}, quiet), a, b)
		require.Equal(t, 2, res.Inserted)
		var out []string
		for _, p := range readAll(t, store, res) {
			out = append(out, p.Slug)
		}
		return out
	}

	first, second := slugs(), slugs()
	assert.Equal(t, first, second)
	assert.NotEqual(t, first[0], first[1])
	assert.Equal(t, a.Slug, first[0])
}

func TestDryRunRollsBack(t *testing.T) {
	store := newStore(t)
	res := run(t, NewUpserter(store, Options{DryRun: true}, quiet), dcf("NJ1", "Sunshine Center", "12 Main St", "Newark", ""))
	assert.Equal(t, 1, res.Inserted)
	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, st.Total)
}

func TestEmptyBatch(t *testing.T) {
	res, err := NewUpserter(&fakeStore{}, Options{}, quiet).RunBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, &Result{Outcomes: []Outcome{}}, res)
}

func ptr[T any](v T) *T { return &v }

// fakeStore records transaction calls and fails on demand.
type fakeStore struct {
	tx *fakeTx
}

func (s *fakeStore) Begin(context.Context) (repository.ProviderTx, error) {
	if s.tx == nil {
		s.tx = &fakeTx{}
	}
	return s.tx, nil
}

func (s *fakeStore) Get(context.Context, uuid.UUID) (*entity.StoredProvider, error) {
	return nil, common.ErrNotFound
}

func (s *fakeStore) GetByNaturalKey(context.Context, string) (*entity.StoredProvider, error) {
	return nil, common.ErrNotFound
}

func (s *fakeStore) Stats(context.Context) (*repository.Stats, error) { return &repository.Stats{}, nil }

type fakeTx struct {
	failInsertAt int
	commitErr    error
	inserts      int
	rolledBack   bool
	committed    bool
	calls        []string
}

func (f *fakeTx) FindByNaturalKey(context.Context, entity.NaturalKey) (*entity.StoredProvider, error) {
	return nil, nil
}

func (f *fakeTx) FindByFallback(context.Context, string, string, string) ([]*entity.StoredProvider, error) {
	return nil, nil
}

func (f *fakeTx) SlugOwner(context.Context, string) (uuid.UUID, bool, error) {
	return uuid.Nil, false, nil
}

func (f *fakeTx) Insert(context.Context, *entity.CanonicalRecord, time.Time) (uuid.UUID, error) {
	f.inserts++
	f.calls = append(f.calls, "insert")
	if f.inserts == f.failInsertAt {
		return uuid.Nil, fmt.Errorf("%w: duplicate", common.ErrConstraint)
	}
	return uuid.New(), nil
}

func (f *fakeTx) Update(context.Context, *entity.StoredProvider, *entity.CanonicalRecord, time.Time) error {
	return nil
}

func (f *fakeTx) Savepoint(context.Context, string) error {
	f.calls = append(f.calls, "savepoint")
	return nil
}

func (f *fakeTx) RollbackTo(context.Context, string) error {
	f.calls = append(f.calls, "rollback_to")
	return nil
}

func (f *fakeTx) Release(context.Context, string) error {
	f.calls = append(f.calls, "release")
	return nil
}

func (f *fakeTx) Commit() error {
	f.calls = append(f.calls, "commit")
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback() error {
	f.calls = append(f.calls, "rollback")
	f.rolledBack = true
	return nil
}

func TestSavepointDiscipline(t *testing.T) {
	tx := &fakeTx{failInsertAt: 2}
	u := NewUpserter(&fakeStore{tx: tx}, Options{}, quiet)
	res, err := u.RunBatch(context.Background(), []entity.CanonicalRecord{
		dcf("NJ1", "A Center", "1 Main St", "Newark", ""),
		dcf("NJ2", "B Center", "2 Main St", "Newark", ""),
		dcf("NJ3", "C Center", "3 Main St", "Newark", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, []string{
		"savepoint", "insert", "release",
		"savepoint", "insert", "rollback_to", "release",
		"savepoint", "insert", "release",
		"commit",
	}, tx.calls)
}

func TestCommitFailureRollsBackBatch(t *testing.T) {
	tx := &fakeTx{commitErr: fmt.Errorf("%w: commit: connection reset", common.ErrTransaction)}
	u := NewUpserter(&fakeStore{tx: tx}, Options{}, quiet)
	res, err := u.RunBatch(context.Background(), []entity.CanonicalRecord{dcf("NJ1", "A Center", "1 Main St", "Newark", "")})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsTransactionError(err))
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

func TestCancelledContextRollsBackBatch(t *testing.T) {
	tx := &fakeTx{}
	u := NewUpserter(&fakeStore{tx: tx}, Options{}, quiet)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := u.RunBatch(ctx, []entity.CanonicalRecord{dcf("NJ1", "A Center", "1 Main St", "Newark", "")})
	require.Error(t, err)
	assert.True(t, IsTransactionError(err))
	assert.True(t, errors.Is(err, common.ErrTransaction))
	assert.Equal(t, []string{"rollback"}, tx.calls)
}
