package usecases

import (
	"context"
	"fmt"
	"sort"
	"time"

	"keystock.backend/internal/domain/entities"
	"keystock.backend/internal/domain/repositories"
)

// HistoryUsecase builds read-only views across every key's history
type HistoryUsecase struct {
	keyRepo repositories.KeyRepository
}

func NewHistoryUsecase(keyRepo repositories.KeyRepository) *HistoryUsecase {
	return &HistoryUsecase{keyRepo: keyRepo}
}

// GlobalHistory flattens all events into one timeline, oldest first. Events
// with equal timestamps keep key order then per-key order.
func (u *HistoryUsecase) GlobalHistory(ctx context.Context) ([]entities.GlobalHistoryEntry, error) {
	keys, err := u.keyRepo.List(ctx, entities.KeyFilter{})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	entries := make([]entities.GlobalHistoryEntry, 0)
	for _, k := range keys {
		for _, ev := range k.History {
			entries = append(entries, entities.GlobalHistoryEntry{
				ID:           k.ID,
				Key:          k.Key,
				HistoryEvent: ev,
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// Stats counts inuse events per UTC day and per ISO week
func (u *HistoryUsecase) Stats(ctx context.Context) (*entities.KeyStats, error) {
	keys, err := u.keyRepo.List(ctx, entities.KeyFilter{})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	stats := &entities.KeyStats{
		PerDay:  make(map[string]int),
		PerWeek: make(map[string]int),
	}
	for _, k := range keys {
		for _, ev := range k.History {
			if ev.Action != entities.HistoryActionInUse {
				continue
			}
			stats.PerDay[dayBucket(ev.Timestamp)]++
			stats.PerWeek[weekBucket(ev.Timestamp)]++
		}
	}
	return stats, nil
}

// Summary returns key counts by state
func (u *HistoryUsecase) Summary(ctx context.Context) (*entities.KeySummary, error) {
	keys, err := u.keyRepo.List(ctx, entities.KeyFilter{})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	summary := &entities.KeySummary{Total: len(keys)}
	for _, k := range keys {
		switch {
		case k.Invalid:
			summary.Invalid++
		case k.InUse:
			summary.InUse++
		default:
			summary.Free++
		}
	}
	return summary, nil
}

func dayBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func weekBucket(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
