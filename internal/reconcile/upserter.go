package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/provider-ingest/constants"
	"github.com/joseph-ayodele/provider-ingest/internal/common"
	"github.com/joseph-ayodele/provider-ingest/internal/entity"
	"github.com/joseph-ayodele/provider-ingest/internal/normalize"
	"github.com/joseph-ayodele/provider-ingest/internal/repository"
)

const savepoint = "provider_rec"

// Options controls matching and commit behavior of a batch.
type Options struct {
	// FallbackMatch matches on exact (name, address, city) when the natural key finds nothing.
	FallbackMatch bool
	// DryRun runs the batch and rolls it back instead of committing.
	DryRun bool
}

// Outcome is the terminal state of one record.
type Outcome struct {
	Index int
	Key   string
	State constants.UpsertState
	ID    uuid.UUID
	Err   error
}

// Result summarizes a batch.
type Result struct {
	Inserted int
	Updated  int
	Errors   int
	Messages []string
	Outcomes []Outcome
}

// Upserter reconciles canonical records against the row store, one transaction
// per batch and one savepoint per record.
type Upserter struct {
	store  repository.ProviderStore
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

func NewUpserter(store repository.ProviderStore, opts Options, logger *slog.Logger) *Upserter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Upserter{store: store, opts: opts, logger: logger, now: time.Now}
}

// WithClock replaces the timestamp source.
func (u *Upserter) WithClock(now func() time.Time) *Upserter {
	u.now = now
	return u
}

// RunBatch upserts recs in order. A failing record is rolled back to its savepoint
// and counted; the rest of the batch continues. A failure of the transaction itself
// rolls back the whole batch and is returned.
func (u *Upserter) RunBatch(ctx context.Context, recs []entity.CanonicalRecord) (*Result, error) {
	res := &Result{Outcomes: make([]Outcome, 0, len(recs))}
	if len(recs) == 0 {
		return res, nil
	}

	tx, err := u.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	abort := func(cause error) (*Result, error) {
		if rbErr := tx.Rollback(); rbErr != nil {
			u.logger.Error("rollback failed", "error", rbErr)
		}
		u.logger.Error("reconcile.batch.rolled_back", "records", len(recs), "error", cause)
		return nil, cause
	}

	for i := range recs {
		rec := &recs[i]
		if err := ctx.Err(); err != nil {
			return abort(fmt.Errorf("%w: %v", common.ErrTransaction, err))
		}
		if err := tx.Savepoint(ctx, savepoint); err != nil {
			return abort(err)
		}

		out := Outcome{Index: i, Key: rec.NaturalKey.String()}
		out.State, out.ID, out.Err = u.upsert(ctx, tx, rec)

		if out.Err != nil {
			if err := tx.RollbackTo(ctx, savepoint); err != nil {
				return abort(err)
			}
			out.State = constants.StateError
			res.Errors++
			msg := fmt.Sprintf("record %d (%s): %v", i+1, describe(rec), out.Err)
			res.Messages = append(res.Messages, msg)
			u.logger.Warn("reconcile.record.failed", "index", i, "key", out.Key, "error", out.Err)
		} else if out.State == constants.StateNew {
			res.Inserted++
		} else {
			res.Updated++
		}
		if err := tx.Release(ctx, savepoint); err != nil {
			return abort(err)
		}
		res.Outcomes = append(res.Outcomes, out)
	}

	if u.opts.DryRun {
		if err := tx.Rollback(); err != nil {
			return nil, err
		}
		u.logger.Info("reconcile.batch.dry_run", "inserted", res.Inserted, "updated", res.Updated, "errors", res.Errors)
		return res, nil
	}
	if err := tx.Commit(); err != nil {
		return abort(err)
	}
	u.logger.Info("reconcile.batch.ok", "inserted", res.Inserted, "updated", res.Updated, "errors", res.Errors)
	return res, nil
}

func (u *Upserter) upsert(ctx context.Context, tx repository.ProviderTx, rec *entity.CanonicalRecord) (constants.UpsertState, uuid.UUID, error) {
	current, err := u.lookup(ctx, tx, rec)
	if err != nil {
		return constants.StateError, uuid.Nil, err
	}
	now := u.now()

	if current != nil {
		if err := tx.Update(ctx, current, rec, now); err != nil {
			return constants.StateError, current.ID, err
		}
		return constants.StateExisting, current.ID, nil
	}

	if err := u.claimSlug(ctx, tx, rec); err != nil {
		return constants.StateError, uuid.Nil, err
	}
	id, err := tx.Insert(ctx, rec, now)
	if err != nil {
		return constants.StateError, uuid.Nil, err
	}
	return constants.StateNew, id, nil
}

// lookup finds the stored row for rec: natural key first, then the exact
// (name, address, city) fallback. A fallback candidate holding a different key of
// the same kind is another provider at the same address.
func (u *Upserter) lookup(ctx context.Context, tx repository.ProviderTx, rec *entity.CanonicalRecord) (*entity.StoredProvider, error) {
	if !rec.NaturalKey.IsZero() {
		found, err := tx.FindByNaturalKey(ctx, rec.NaturalKey)
		if err != nil || found != nil {
			return found, err
		}
	}
	if !u.opts.FallbackMatch {
		return nil, nil
	}

	cands, err := tx.FindByFallback(ctx, rec.Name, rec.Address, rec.City)
	if err != nil {
		return nil, err
	}
	for _, c := range cands {
		if rec.NaturalKey.Strong() && c.KeyKind() == rec.NaturalKey.Kind && c.NaturalKey != rec.NaturalKey.String() {
			continue
		}
		return c, nil
	}
	return nil, nil
}

// claimSlug keeps rec's slug unless another row owns it, in which case a second
// suffix derived from the natural key is appended.
func (u *Upserter) claimSlug(ctx context.Context, tx repository.ProviderTx, rec *entity.CanonicalRecord) error {
	_, taken, err := tx.SlugOwner(ctx, rec.Slug)
	if err != nil || !taken {
		return err
	}
	alt := rec.Slug + "-" + normalize.IdentityHash(rec.NaturalKey.String(), rec.Address)
	_, taken, err = tx.SlugOwner(ctx, alt)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: slug %q and %q are both taken", common.ErrConstraint, rec.Slug, alt)
	}
	u.logger.Debug("slug collision resolved", "slug", rec.Slug, "new_slug", alt)
	rec.Slug = alt
	return nil
}

func describe(rec *entity.CanonicalRecord) string {
	if k := rec.NaturalKey.String(); k != "" {
		return k
	}
	if rec.Name != "" {
		return rec.Name
	}
	return "unknown"
}

// IsTransactionError reports whether err aborted a whole batch.
func IsTransactionError(err error) bool {
	return errors.Is(err, common.ErrTransaction)
}
