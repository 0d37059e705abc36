package pagination

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/gamepasses-api/pkg/metrics"
	"github.com/Sternrassler/gamepasses-api/pkg/upstream"
)

var (
	pagesFetchedTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "gamepasses_pagination_pages_fetched_total",
		Help: "Total cursor pages fetched",
	})

	itemsSkippedTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "gamepasses_pagination_items_skipped_total",
		Help: "List entries that could not be decoded and were skipped",
	})
)

// FetchFunc fetches the page at path. (*upstream.Resolver).Resolve satisfies it.
type FetchFunc func(ctx context.Context, path string) (*upstream.Page, error)

// PathFunc builds the request path for cursor. The empty cursor means the first page.
type PathFunc func(cursor string) string

// Condition reports whether to keep paging after collected items have been gathered.
type Condition func(collected int) bool

// UntilCount keeps paging while fewer than n items have been collected.
func UntilCount(n int) Condition {
	return func(collected int) bool {
		return collected < n
	}
}

// Exhaust keeps paging until the upstream runs out of cursors.
func Exhaust(int) bool {
	return true
}

// Collect walks a cursor-paginated listing and decodes every entry into T.
// Entries that do not decode are skipped. Any fetch error aborts the walk and
// is returned as-is; no partial result is returned alongside it.
func Collect[T any](ctx context.Context, fetch FetchFunc, path PathFunc, while Condition) ([]T, error) {
	if while == nil {
		while = Exhaust
	}

	var items []T
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := fetch(ctx, path(cursor))
		if err != nil {
			return nil, err
		}
		pagesFetchedTotal.Inc()

		for _, raw := range page.Data {
			var item T
			if err := sonic.Unmarshal(raw, &item); err != nil {
				itemsSkippedTotal.Inc()
				log.Debug().Err(err).Msg("Skipping undecodable list entry")
				continue
			}
			items = append(items, item)
		}

		next := page.NextPageCursor
		if next == "" || !while(len(items)) {
			return items, nil
		}
		if next == cursor {
			return nil, fmt.Errorf("upstream repeated cursor %q", cursor)
		}
		cursor = next
	}
}
