package boltstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"movierental/internal/errs"
	"movierental/internal/model"
)

type catalogRepo struct{ *tx }

func (r catalogRepo) CreateTitle(ctx context.Context, t *model.Title) error {
	id, err := r.nextID(bucketTitles)
	if err != nil {
		return err
	}
	t.ID = id
	t.CreatedAt = time.Now().UTC()
	return r.put(bucketTitles, id, toTitleRecord(t))
}

func (r catalogRepo) GetTitle(ctx context.Context, id int64) (*model.Title, error) {
	rec, err := r.title(id)
	if err != nil {
		return nil, err
	}
	return rec.toModel(), nil
}

func (r catalogRepo) title(id int64) (*titleRecord, error) {
	var rec titleRecord
	ok, err := r.get(bucketTitles, id, &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrTitleNotFound
	}
	return &rec, nil
}

func (r catalogRepo) ListTitles(ctx context.Context) ([]*model.Title, error) {
	var out []*model.Title
	err := each(r.tx, bucketTitles, func(rec *titleRecord) error {
		out = append(out, rec.toModel())
		return nil
	})
	return out, err
}

func (r catalogRepo) UpdateTitle(ctx context.Context, id int64, name, genre string) error {
	rec, err := r.title(id)
	if err != nil {
		return err
	}
	rec.Name, rec.Genre = name, genre
	return r.put(bucketTitles, id, rec)
}

func (r catalogRepo) DeleteTitle(ctx context.Context, id int64) error {
	if _, err := r.title(id); err != nil {
		return err
	}
	b, err := r.bucket(bucketTitles)
	if err != nil {
		return err
	}
	return b.Delete(itob(id))
}

func (r catalogRepo) CreatePricingCategory(ctx context.Context, c *model.PricingCategory) error {
	names, err := r.bucket(bucketCatNames)
	if err != nil {
		return err
	}
	key := []byte(strings.ToLower(c.Name))
	if names.Get(key) != nil {
		return errs.ErrDuplicateCategory
	}
	id, err := r.nextID(bucketCategories)
	if err != nil {
		return err
	}
	c.ID = id
	c.CreatedAt = time.Now().UTC()
	rec := &categoryRecord{ID: c.ID, Name: c.Name, BasePrice: c.BasePrice, CreatedAt: c.CreatedAt}
	if err := r.put(bucketCategories, id, rec); err != nil {
		return err
	}
	return names.Put(key, itob(id))
}

func (r catalogRepo) GetPricingCategory(ctx context.Context, id int64) (*model.PricingCategory, error) {
	var rec categoryRecord
	ok, err := r.get(bucketCategories, id, &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrPricingCategoryNotFound
	}
	return rec.toModel(), nil
}

func (r catalogRepo) ListPricingCategories(ctx context.Context) ([]*model.PricingCategory, error) {
	var out []*model.PricingCategory
	err := each(r.tx, bucketCategories, func(rec *categoryRecord) error {
		out = append(out, rec.toModel())
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r catalogRepo) AssignPricing(ctx context.Context, titleID, categoryID int64) error {
	rec, err := r.title(titleID)
	if err != nil {
		return err
	}
	if _, err := r.GetPricingCategory(ctx, categoryID); err != nil {
		return err
	}
	rec.PricingCategoryID = categoryID
	return r.put(bucketTitles, titleID, rec)
}

func (r catalogRepo) PricingForTitle(ctx context.Context, titleID int64) (*model.PricingCategory, error) {
	rec, err := r.title(titleID)
	if err != nil {
		return nil, err
	}
	if rec.PricingCategoryID == 0 {
		return nil, errs.ErrNoPricingSet
	}
	c, err := r.GetPricingCategory(ctx, rec.PricingCategoryID)
	if errs.IsNotFound(err) {
		return nil, errs.ErrNoPricingSet
	}
	return c, err
}
