package pagination

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsis_pages_fetched_total",
		Help: "Total non-empty pages fetched by entity",
	}, []string{"entity"})

	recordsFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsis_records_fetched_total",
		Help: "Total records fetched through pagination by entity",
	}, []string{"entity"})
)

// DefaultStep is the window increment used by the DSIS scripts.
const DefaultStep = 100

// Config holds paginator configuration
type Config struct {
	// Step is added to both $skip and $top after every request
	Step int
	// Timeout per page fetch (0 disables the per-page deadline)
	Timeout time.Duration
}

// DefaultConfig returns the configuration matching the documented DSIS
// request sequence.
func DefaultConfig() Config {
	return Config{
		Step:    DefaultStep,
		Timeout: 2 * time.Minute,
	}
}

// PageFetcher is implemented by the DSIS client. It issues exactly one
// request for the given window and returns the records of the `value` array.
type PageFetcher interface {
	FetchPage(ctx context.Context, project, entity string, skip, top int) ([]map[string]any, error)
}

// Page is one window of a collection.
type Page struct {
	// Number is the 0-based request index
	Number  int
	Skip    int
	Top     int
	Records []map[string]any
}

// Window returns $skip and $top for request i.
func (c Config) Window(i int) (skip, top int) {
	return c.Step * i, c.Step * (i + 1)
}

// Query renders the OData query options for one page request.
func Query(skip, top int) string {
	return "$format=json&$skip=" + strconv.Itoa(skip) + "&$top=" + strconv.Itoa(top)
}

// Paginator drives sequential page fetches.
type Paginator struct {
	fetcher PageFetcher
	config  Config
}

// NewPaginator creates a new paginator
func NewPaginator(fetcher PageFetcher, config Config) *Paginator {
	if config.Step <= 0 {
		config.Step = DefaultStep
	}

	return &Paginator{
		fetcher: fetcher,
		config:  config,
	}
}

// Pages returns a lazy sequence over the pages of project/entity.
//
// Every call starts over from $skip=0. The sequence ends after the first
// page with zero records; that page is not yielded. A fetch error is yielded
// once as (Page{}, err) and ends the sequence.
func (p *Paginator) Pages(ctx context.Context, project, entity string) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		start := time.Now()
		total := 0

		for i := 0; ; i++ {
			if err := ctx.Err(); err != nil {
				yield(Page{}, fmt.Errorf("paginate %s/%s: %w", project, entity, err))
				return
			}

			skip, top := p.config.Window(i)
			records, err := p.fetch(ctx, project, entity, skip, top)
			if err != nil {
				log.Warn().
					Err(err).
					Str("project", project).
					Str("entity", entity).
					Int("page", i).
					Int("skip", skip).
					Int("top", top).
					Msg("Page fetch failed")
				yield(Page{}, fmt.Errorf("fetch page %d (skip=%d, top=%d): %w", i, skip, top, err))
				return
			}

			if len(records) == 0 {
				log.Info().
					Str("project", project).
					Str("entity", entity).
					Int("pages", i).
					Int("records", total).
					Dur("duration", time.Since(start)).
					Msg("Pagination complete")
				return
			}

			total += len(records)
			pagesFetchedTotal.WithLabelValues(entity).Inc()
			recordsFetchedTotal.WithLabelValues(entity).Add(float64(len(records)))

			log.Debug().
				Str("project", project).
				Str("entity", entity).
				Int("page", i).
				Int("skip", skip).
				Int("top", top).
				Int("records", len(records)).
				Msg("Fetched page")

			if !yield(Page{Number: i, Skip: skip, Top: top, Records: records}, nil) {
				log.Debug().
					Str("entity", entity).
					Int("page", i).
					Msg("Consumer stopped pagination")
				return
			}
		}
	}
}

func (p *Paginator) fetch(ctx context.Context, project, entity string, skip, top int) ([]map[string]any, error) {
	if p.config.Timeout <= 0 {
		return p.fetcher.FetchPage(ctx, project, entity, skip, top)
	}
	pageCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()
	return p.fetcher.FetchPage(pageCtx, project, entity, skip, top)
}

// Collect drains a page sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Page, error]) ([]Page, error) {
	var pages []Page
	for page, err := range seq {
		if err != nil {
			return pages, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}
