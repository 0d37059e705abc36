package gamepass

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/gamepasses-api/pkg/logging"
	"github.com/Sternrassler/gamepasses-api/pkg/metrics"
	"github.com/Sternrassler/gamepasses-api/pkg/pagination"
	"github.com/Sternrassler/gamepasses-api/pkg/upstream"
)

// DefaultMaxGames caps how many of a user's games are scanned for passes.
const DefaultMaxGames = 10

// listingPageSize is the page size requested from both upstream listings.
const listingPageSize = 50

var (
	// ErrGamesFetch indicates the user's games could not be listed.
	ErrGamesFetch = errors.New("failed to fetch games")

	// ErrPassesFetch indicates at least one game's passes could not be listed.
	ErrPassesFetch = errors.New("failed to fetch game passes")
)

var (
	aggregationsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "gamepasses_aggregations_total",
		Help: "Aggregation runs by outcome",
	}, []string{"outcome"})

	aggregationDuration = promauto.With(metrics.Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "gamepasses_aggregation_duration_seconds",
		Help:    "Duration of full aggregation runs in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	})

	aggregatedPasses = promauto.With(metrics.Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "gamepasses_aggregated_passes",
		Help:    "Number of passes produced per successful aggregation",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

// Source resolves one listing page. *upstream.Resolver implements it.
type Source interface {
	Resolve(ctx context.Context, path string) (*upstream.Page, error)
}

// Config configures an Aggregator.
type Config struct {
	// MaxGames caps how many games are scanned (default DefaultMaxGames).
	MaxGames int

	// MaxConcurrency bounds concurrent per-game pass listings (default MaxGames).
	MaxConcurrency int
}

// DefaultConfig returns the default aggregator configuration.
func DefaultConfig() Config {
	return Config{
		MaxGames:       DefaultMaxGames,
		MaxConcurrency: DefaultMaxGames,
	}
}

// Aggregator builds the full, price-ordered pass list for a user.
type Aggregator struct {
	source Source
	config Config
	logger zerolog.Logger
}

// NewAggregator creates an aggregator reading from source.
func NewAggregator(source Source, cfg Config) *Aggregator {
	if source == nil {
		panic("gamepass source cannot be nil")
	}
	if cfg.MaxGames <= 0 {
		cfg.MaxGames = DefaultMaxGames
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = cfg.MaxGames
	}

	return &Aggregator{
		source: source,
		config: cfg,
		logger: logging.NewLogger("gamepass-aggregator"),
	}
}

// Aggregate lists up to MaxGames public games of userID, collects every
// purchasable pass of those games concurrently and returns them sorted by
// ascending price. Equal prices keep discovery order (game order, then page order).
//
// The run is all-or-nothing: a games failure is reported as ErrGamesFetch
// without touching any pass listing, and any failing game aborts the run with
// ErrPassesFetch.
func (a *Aggregator) Aggregate(ctx context.Context, userID string) ([]Pass, error) {
	startTime := time.Now()
	defer func() {
		aggregationDuration.Observe(time.Since(startTime).Seconds())
	}()

	games, err := a.fetchGames(ctx, userID)
	if err != nil {
		aggregationsTotal.WithLabelValues("games_failed").Inc()
		a.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch games")
		return nil, fmt.Errorf("%w: %w", ErrGamesFetch, err)
	}

	perGame := make([][]Pass, len(games))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.MaxConcurrency)
	for i, gameID := range games {
		g.Go(func() error {
			passes, err := a.fetchPasses(gctx, gameID)
			if err != nil {
				return fmt.Errorf("game %d: %w", gameID, err)
			}
			perGame[i] = passes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		aggregationsTotal.WithLabelValues("passes_failed").Inc()
		a.logger.Error().Err(err).Str("user_id", userID).Int("games", len(games)).Msg("Failed to fetch game passes")
		return nil, fmt.Errorf("%w: %w", ErrPassesFetch, err)
	}

	passes := make([]Pass, 0)
	for _, list := range perGame {
		passes = append(passes, list...)
	}
	slices.SortStableFunc(passes, func(x, y Pass) int {
		switch {
		case x.Price < y.Price:
			return -1
		case x.Price > y.Price:
			return 1
		default:
			return 0
		}
	})

	aggregationsTotal.WithLabelValues("success").Inc()
	aggregatedPasses.Observe(float64(len(passes)))
	a.logger.Info().
		Str("user_id", userID).
		Int("games", len(games)).
		Int("passes", len(passes)).
		Dur("duration", time.Since(startTime)).
		Msg("Aggregated game passes")

	return passes, nil
}

// fetchGames collects up to MaxGames game IDs. Paging stops once the cap is
// reached; a partial final page is truncated.
func (a *Aggregator) fetchGames(ctx context.Context, userID string) ([]int64, error) {
	games, err := pagination.Collect[game](ctx, a.source.Resolve, func(cursor string) string {
		return GamesPath(userID, cursor)
	}, pagination.UntilCount(a.config.MaxGames))
	if err != nil {
		return nil, err
	}

	if len(games) > a.config.MaxGames {
		games = games[:a.config.MaxGames]
	}

	ids := make([]int64, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}
	return ids, nil
}

// fetchPasses follows every page of a game's pass listing.
func (a *Aggregator) fetchPasses(ctx context.Context, gameID int64) ([]Pass, error) {
	raw, err := pagination.Collect[rawPass](ctx, a.source.Resolve, func(cursor string) string {
		return GamePassesPath(gameID, cursor)
	}, pagination.Exhaust)
	if err != nil {
		return nil, err
	}

	passes := make([]Pass, 0, len(raw))
	for _, p := range raw {
		if pass, ok := p.normalize(gameID); ok {
			passes = append(passes, pass)
		}
	}
	return passes, nil
}

// GamesPath returns the listing path for a user's public games at cursor.
func GamesPath(userID, cursor string) string {
	path := "/v2/users/" + url.PathEscape(userID) + "/games?accessFilter=Public&limit=" + strconv.Itoa(listingPageSize)
	return withCursor(path, cursor)
}

// GamePassesPath returns the listing path for a game's passes at cursor.
func GamePassesPath(gameID int64, cursor string) string {
	path := "/v1/games/" + strconv.FormatInt(gameID, 10) + "/game-passes?sortOrder=Asc&limit=" + strconv.Itoa(listingPageSize)
	return withCursor(path, cursor)
}

func withCursor(path, cursor string) string {
	if cursor == "" {
		return path
	}
	return path + "&cursor=" + url.QueryEscape(cursor)
}
