// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

// Package tmdb is the sole external-network surface of the engine. It
// wraps the metadata provider's discover and genre endpoints with rate
// limiting, exponential backoff with jitter, and a circuit breaker.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/reelswipe/reelswipe/internal/config"
	"github.com/reelswipe/reelswipe/internal/domain"
	"github.com/reelswipe/reelswipe/internal/logging"
	"github.com/reelswipe/reelswipe/internal/metrics"
	"github.com/reelswipe/reelswipe/internal/models"
)

// GenreMode selects how the genre expression constrains discovery.
type GenreMode int

const (
	// GenreNone applies no genre constraint.
	GenreNone GenreMode = iota
	// GenreAll requires every listed genre (CSV on the wire).
	GenreAll
	// GenreAny requires at least one listed genre (pipe on the wire).
	GenreAny
)

// DiscoverQuery is one page request against a discovery endpoint. The
// filter fields mirror the pool configuration; the quality gate
// re-checks them locally because provider-side filtering is advisory.
type DiscoverQuery struct {
	MediaType      models.MediaType
	Genres         []int
	Mode           GenreMode
	Page           int
	Languages      []string
	MinVoteCount   int
	MinReleaseDate string
}

// MetadataClient is the interface the pool builder consumes.
type MetadataClient interface {
	Discover(ctx context.Context, q DiscoverQuery) (*models.DiscoverPage, error)
	GenresFor(ctx context.Context, mediaType models.MediaType) ([]models.Genre, error)
}

// Client talks to the provider. One instance per process; the width-one
// semaphore plus the limiter keep traffic at roughly four requests per
// second regardless of caller concurrency.
type Client struct {
	cfg        config.TMDBConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	sem        chan struct{}
	breaker    *gobreaker.CircuitBreaker[*models.DiscoverPage]

	genreMu    sync.Mutex
	genreCache map[models.MediaType][]models.Genre
}

// New builds a client from configuration.
func New(cfg config.TMDBConfig) *Client {
	interval := time.Duration(cfg.RateLimitMsPerCall) * time.Millisecond
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.CallTimeout},
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		sem:        make(chan struct{}, 1),
		genreCache: make(map[models.MediaType][]models.Genre),
	}
	c.breaker = gobreaker.NewCircuitBreaker[*models.DiscoverPage](gobreaker.Settings{
		Name:        "tmdb",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Duration(cfg.CircuitResetMs) * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.CircuitFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("from", from.String()).Str("to", to.String()).Msg("TMDB circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	metrics.CircuitBreakerState.WithLabelValues("tmdb").Set(0)
	return c
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Discover fetches one page of candidates. The two media types map to
// two exclusive endpoints; callers never receive mixed results from a
// single query.
func (c *Client) Discover(ctx context.Context, q DiscoverQuery) (*models.DiscoverPage, error) {
	if !q.MediaType.Valid() {
		return nil, domain.E(domain.KindValidation, "unknown media type "+string(q.MediaType))
	}
	endpoint := "/discover/movie"
	if q.MediaType == models.MediaTV {
		endpoint = "/discover/tv"
	}

	page, err := c.breaker.Execute(func() (*models.DiscoverPage, error) {
		var out models.DiscoverPage
		if err := c.call(ctx, endpoint, c.discoverParams(q), &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.TMDBRequestsTotal.WithLabelValues(endpoint, "rejected").Inc()
			return nil, domain.Wrap(domain.KindUpstreamUnavailable, "tmdb circuit open", err)
		}
		metrics.TMDBRequestsTotal.WithLabelValues(endpoint, "failure").Inc()
		return nil, err
	}
	metrics.TMDBRequestsTotal.WithLabelValues(endpoint, "success").Inc()
	return page, nil
}

// GenresFor returns the authoritative genre list for a media type,
// cached per process (the lists change on provider release cadence, not
// at runtime).
func (c *Client) GenresFor(ctx context.Context, mediaType models.MediaType) ([]models.Genre, error) {
	if !mediaType.Valid() {
		return nil, domain.E(domain.KindValidation, "unknown media type "+string(mediaType))
	}
	c.genreMu.Lock()
	if cached, ok := c.genreCache[mediaType]; ok {
		c.genreMu.Unlock()
		return cached, nil
	}
	c.genreMu.Unlock()

	endpoint := "/genre/movie/list"
	if mediaType == models.MediaTV {
		endpoint = "/genre/tv/list"
	}
	var list models.GenreList
	if err := c.call(ctx, endpoint, url.Values{}, &list); err != nil {
		metrics.TMDBRequestsTotal.WithLabelValues(endpoint, "failure").Inc()
		return nil, err
	}
	metrics.TMDBRequestsTotal.WithLabelValues(endpoint, "success").Inc()

	c.genreMu.Lock()
	c.genreCache[mediaType] = list.Genres
	c.genreMu.Unlock()
	return list.Genres, nil
}

// discoverParams renders the fixed base filters plus the genre
// expression for one query.
func (c *Client) discoverParams(q DiscoverQuery) url.Values {
	params := url.Values{}
	params.Set("language", c.cfg.Language)
	params.Set("sort_by", "popularity.desc")
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("include_adult", "false")
	if len(q.Languages) > 0 {
		params.Set("with_original_language", strings.Join(q.Languages, "|"))
	}
	if q.MinVoteCount > 0 {
		params.Set("vote_count.gte", strconv.Itoa(q.MinVoteCount))
	}

	if q.MediaType == models.MediaTV {
		if q.MinReleaseDate != "" {
			params.Set("first_air_date.gte", q.MinReleaseDate)
		}
		// Returning Series, Ended, Canceled, In Production, Planned;
		// excludes pilots and rumored entries.
		params.Set("with_status", "0|2|3|4|5")
	} else {
		if q.MinReleaseDate != "" {
			params.Set("release_date.gte", q.MinReleaseDate)
		}
		params.Set("with_runtime.gte", strconv.Itoa(minRuntimeMinutes))
	}

	genres := q.Genres
	if q.MediaType == models.MediaTV {
		genres = NormalizeGenres(models.MediaTV, genres)
	}
	switch q.Mode {
	case GenreAll:
		if len(genres) > 0 {
			params.Set("with_genres", joinInts(genres, ","))
		}
	case GenreAny:
		if len(genres) > 0 {
			params.Set("with_genres", joinInts(genres, "|"))
		}
	case GenreNone:
	}
	return params
}

// minRuntimeMinutes keeps shorts and specials out of movie discovery.
// Runtime is not part of the swipe card, so it is filtered here only.
const minRuntimeMinutes = 60

// call performs one paced, retried HTTP GET and decodes into out.
func (c *Client) call(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return domain.Wrap(domain.KindTimeout, "tmdb "+endpoint, ctx.Err())
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			metrics.TMDBRetriesTotal.Inc()
			if err := c.sleepBackoff(ctx, attempt); err != nil {
				return err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.Wrap(domain.KindTimeout, "tmdb "+endpoint, err)
		}

		err := c.doRequest(ctx, endpoint, params, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if domain.KindOf(err) != domain.KindTransient {
			return err
		}
		logging.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempt+1).Msg("TMDB call failed, retrying")
	}
	return lastErr
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	params.Set("api_key", c.cfg.APIKey)
	reqURL := c.cfg.BaseURL + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.Wrap(domain.KindValidation, "build tmdb request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return domain.Wrap(domain.KindTimeout, "tmdb "+endpoint, err)
		}
		return domain.Wrap(domain.KindTransient, "tmdb "+endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return domain.Wrap(domain.KindTransient, "read tmdb response", err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return domain.Wrap(domain.KindTransient, "decode tmdb response", err)
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.E(domain.KindTransient, "tmdb rate limited")
	case resp.StatusCode >= 500:
		return domain.E(domain.KindTransient, fmt.Sprintf("tmdb %s returned %d", endpoint, resp.StatusCode))
	default:
		return domain.E(domain.KindValidation, fmt.Sprintf("tmdb %s returned %d", endpoint, resp.StatusCode))
	}
}

// sleepBackoff waits base*2^(attempt-1) capped at the configured max,
// plus up to 50% jitter.
func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	base := time.Duration(c.cfg.RetryBaseMs) * time.Millisecond
	maxWait := time.Duration(c.cfg.RetryMaxMs) * time.Millisecond
	backoff := base << (attempt - 1)
	if backoff > maxWait || backoff <= 0 {
		backoff = maxWait
	}
	//nolint:gosec // jitter does not need a cryptographic source
	backoff += time.Duration(rand.Int63n(int64(backoff)/2 + 1))

	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return domain.Wrap(domain.KindTimeout, "backoff interrupted", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func joinInts(values []int, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, sep)
}
