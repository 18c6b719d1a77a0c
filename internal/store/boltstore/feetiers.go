package boltstore

import (
	"context"
	"sort"
	"time"

	"movierental/internal/errs"
	"movierental/internal/model"
)

type feeTierRepo struct{ *tx }

// Lock is a no-op; bolt write transactions are already exclusive.
func (r feeTierRepo) Lock(ctx context.Context) error { return nil }

func (r feeTierRepo) List(ctx context.Context) ([]model.FeeTier, error) {
	var out []model.FeeTier
	err := each(r.tx, bucketFeeTiers, func(rec *feeTierRecord) error {
		out = append(out, rec.toModel())
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysLateStart < out[j].DaysLateStart })
	return out, nil
}

func (r feeTierRepo) Get(ctx context.Context, id int64) (*model.FeeTier, error) {
	var rec feeTierRecord
	ok, err := r.get(bucketFeeTiers, id, &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrFeeTierNotFound
	}
	tier := rec.toModel()
	return &tier, nil
}

func (r feeTierRepo) Create(ctx context.Context, t *model.FeeTier) error {
	id, err := r.nextID(bucketFeeTiers)
	if err != nil {
		return err
	}
	t.ID = id
	t.CreatedAt = time.Now().UTC()
	return r.put(bucketFeeTiers, id, toFeeTierRecord(t))
}

func (r feeTierRepo) Update(ctx context.Context, t *model.FeeTier) error {
	current, err := r.Get(ctx, t.ID)
	if err != nil {
		return err
	}
	t.CreatedAt = current.CreatedAt
	return r.put(bucketFeeTiers, t.ID, toFeeTierRecord(t))
}

func (r feeTierRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	b, err := r.bucket(bucketFeeTiers)
	if err != nil {
		return err
	}
	return b.Delete(itob(id))
}
