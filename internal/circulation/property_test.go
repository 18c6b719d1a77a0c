package circulation_test

import (
	"context"
	"errors"
	"testing"

	"pgregory.net/rapid"

	"movierental/internal/circulation"
	"movierental/internal/errs"
	"movierental/internal/store"
	"movierental/internal/store/storetest"
)

// Any sequence of checkouts and returns keeps
// 0 <= available and available + open rentals == total copies.
func TestInventoryConservation(t *testing.T) {
	s := newStore(t)
	engine := circulation.NewEngine(s)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		copies := rapid.IntRange(0, 3).Draw(rt, "copies")
		title := storetest.SeedTitle(t, s, copies, "1.00")
		var rented []int64

		rt.Repeat(map[string]func(*rapid.T){
			"checkout": func(rt *rapid.T) {
				user := rapid.Int64Range(1, 5).Draw(rt, "user")
				r, err := engine.Checkout(ctx, user, title.ID)
				switch {
				case err == nil:
					rented = append(rented, r.ID)
				case errors.Is(err, errs.ErrNoCopiesAvailable):
				default:
					rt.Fatalf("checkout: %v", err)
				}
			},
			"return": func(rt *rapid.T) {
				if len(rented) == 0 {
					rt.Skip("nothing rented")
				}
				id := rapid.SampledFrom(rented).Draw(rt, "rental")
				_, err := engine.Return(ctx, id)
				if err != nil && !errors.Is(err, errs.ErrAlreadyReturned) {
					rt.Fatalf("return: %v", err)
				}
			},
			"": func(rt *rapid.T) {
				var available, open int
				err := s.View(ctx, func(ctx context.Context, tx store.Tx) error {
					var err error
					if available, err = tx.Inventory().Available(ctx, title.ID); err != nil {
						return err
					}
					open, _, err = tx.Rentals().CountByTitle(ctx, title.ID)
					return err
				})
				if err != nil {
					rt.Fatalf("read state: %v", err)
				}
				if available < 0 {
					rt.Fatalf("available copies went negative: %d", available)
				}
				if available+open != copies {
					rt.Fatalf("available %d + open %d != total %d", available, open, copies)
				}
			},
		})
	})
}
