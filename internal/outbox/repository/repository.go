package repository

import (
	"bytes"
	"database/sql"
	"sort"

	apperrors "github.com/nutrio/graphsync/internal/errors"
	"github.com/nutrio/graphsync/internal/outbox/domain"
)

// sortEventsByOccurrence orders events oldest-first, with the id as a
// tiebreaker so the order is total and stable across drivers.
func sortEventsByOccurrence(events []*domain.OutboxEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return bytes.Compare(events[i].ID[:], events[j].ID[:]) < 0
		}
		return events[i].OccurredAt.Before(events[j].OccurredAt)
	})
}

// checkClaimHeld translates a zero-row token-guarded update into ErrClaimLost.
func checkClaimHeld(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return apperrors.ErrClaimLost
	}
	return nil
}
