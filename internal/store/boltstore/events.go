package boltstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"movierental/internal/errs"
	"movierental/internal/model"
)

type eventLog struct{ *tx }

// eventKey orders a rental's events by version under a rental prefix.
func eventKey(rentalID int64, version int) []byte {
	return append(itob(rentalID), itob(int64(version))...)
}

func (l eventLog) Append(ctx context.Context, rentalID int64, expectedVersion int, events ...model.Event) error {
	b, err := l.bucket(bucketEvents)
	if err != nil {
		return err
	}
	current, err := l.currentVersion(rentalID)
	if err != nil {
		return err
	}
	if current != expectedVersion {
		return fmt.Errorf("%w: rental %d at version %d, expected %d",
			errs.ErrConcurrencyConflict, rentalID, current, expectedVersion)
	}
	for i, event := range events {
		event.AggregateID = rentalID
		event.Version = expectedVersion + i + 1
		raw, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		if err := b.Put(eventKey(rentalID, event.Version), raw); err != nil {
			return err
		}
	}
	return nil
}

func (l eventLog) Load(ctx context.Context, rentalID int64) ([]model.Event, error) {
	b, err := l.bucket(bucketEvents)
	if err != nil {
		return nil, err
	}
	prefix := itob(rentalID)
	var out []model.Event
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var event model.Event
		if err := json.Unmarshal(v, &event); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, event)
	}
	return out, nil
}

func (l eventLog) currentVersion(rentalID int64) (int, error) {
	b, err := l.bucket(bucketEvents)
	if err != nil {
		return 0, err
	}
	prefix := itob(rentalID)
	c := b.Cursor()
	// Seek past the last possible key for the prefix, then step back.
	k, _ := c.Seek(itob(rentalID + 1))
	if k == nil {
		k, _ = c.Last()
	} else {
		k, _ = c.Prev()
	}
	if k == nil || !bytes.HasPrefix(k, prefix) {
		return 0, nil
	}
	return int(btoi(k[8:])), nil
}
