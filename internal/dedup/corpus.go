package dedup

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/thenotsodarkknight/based/internal/news"
	"github.com/thenotsodarkknight/based/internal/store"
)

// StoredItem pairs a decoded news item with the handle it was listed under.
// The handle is authoritative for deletion; it is never rebuilt from item
// fields.
type StoredItem struct {
	Item   news.Item
	Handle store.Handle
}

// loadCorpus snapshots the global namespace in listing order. Objects that
// cannot be fetched or parsed are logged and skipped so one bad object only
// degrades coverage; a listing failure fails the whole run.
func (s *Service) loadCorpus(ctx context.Context, logger zerolog.Logger, report *Report) ([]StoredItem, error) {
	handles, err := s.store.List(ctx, s.globalPrefix)
	if err != nil {
		return nil, fmt.Errorf("list global namespace %q: %w", s.globalPrefix, err)
	}

	items := make([]StoredItem, 0, len(handles))
	for _, handle := range handles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := s.store.Get(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			report.SkippedObjects++
			logger.Warn().Err(err).Str("key", handle.Key).Msg("skipping unreadable object")
			continue
		}

		item, err := news.DecodeItem(data)
		if err != nil {
			report.SkippedObjects++
			logger.Warn().Err(err).Str("key", handle.Key).Msg("skipping unparseable object")
			continue
		}

		items = append(items, StoredItem{Item: *item, Handle: handle})
	}

	report.Loaded = len(items)
	return items, nil
}
