// Package export writes selected log header attributes of a DSIS project to
// a CSV file and optionally uploads the result to S3.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/dsis-recall-client/pkg/repository"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultAttributes is the attribute subset exported when none is given.
var DefaultAttributes = []string{
	"SOURCE FILE NAME",
	"SOURCE FILE DIR",
	"DATE LOGGED",
	"NAME",
	"LOGGING CONTRACTOR",
	"DATA TYPE",
	"LOG SERVICE",
	"LOG ACTIVITY",
	"LOG TYPE",
	"LOG JOB",
	"LOG RUN",
	"LOG PASS",
	"CASING SIZE MANUAL",
	"LOG SECTION SIZE",
	"STATION NUMBER",
	"STATION DEPTH",
	"MFC CORRECTION",
	"DATE STAMP",
}

// Config holds exporter options.
type Config struct {
	// Filter drops headers before projection (nil keeps all)
	Filter Filter

	// Atomic writes to a temporary file and renames it on success.
	// Without it a failed export leaves a partial file behind.
	Atomic bool
}

// Stats summarizes one export.
type Stats struct {
	Path     string
	Pages    int
	Headers  int
	Written  int
	Filtered int
	Duration time.Duration
}

// Exporter streams log headers from a repository into CSV files.
type Exporter struct {
	repo   repository.LogRepository
	config Config
	logger zerolog.Logger
}

// NewExporter creates an exporter reading from repo.
func NewExporter(repo repository.LogRepository, cfg Config) *Exporter {
	return &Exporter{
		repo:   repo,
		config: cfg,
		logger: log.With().Str("component", "exporter").Logger(),
	}
}

// Export writes one header line of attributes followed by one CSV record per
// log header of project. A header missing any attribute aborts the export
// with *AttributeNotFoundError. The sink is closed on every path.
func (e *Exporter) Export(ctx context.Context, attributes []string, project, sinkPath string) (stats Stats, err error) {
	startTime := time.Now()
	stats.Path = sinkPath

	if len(attributes) == 0 {
		return stats, fmt.Errorf("at least one attribute is required")
	}

	logger := e.logger.With().Str("project", project).Str("path", sinkPath).Logger()

	out, err := createSink(sinkPath, e.config.Atomic)
	if err != nil {
		exportFailuresTotal.WithLabelValues("write").Inc()
		return stats, err
	}
	defer func() {
		closeErr := out.close(err == nil)
		if err == nil && closeErr != nil {
			exportFailuresTotal.WithLabelValues("write").Inc()
			err = fmt.Errorf("close sink: %w", closeErr)
		}
		stats.Duration = time.Since(startTime)
	}()

	if err = out.write(attributes); err != nil {
		exportFailuresTotal.WithLabelValues("write").Inc()
		return stats, fmt.Errorf("write header line: %w", err)
	}

	for headers, pageErr := range e.repo.HeaderPages(ctx, project) {
		if pageErr != nil {
			exportFailuresTotal.WithLabelValues("fetch").Inc()
			logger.Error().Err(pageErr).Int("page", stats.Pages).Msg("Export aborted")
			return stats, pageErr
		}

		for i, h := range headers {
			stats.Headers++
			if e.config.Filter != nil && !e.config.Filter(h) {
				stats.Filtered++
				continue
			}

			row, projErr := Project(h, attributes)
			if projErr != nil {
				var notFound *AttributeNotFoundError
				if errors.As(projErr, &notFound) {
					notFound.Page = stats.Pages
					notFound.Record = i
				}
				exportFailuresTotal.WithLabelValues("attribute_not_found").Inc()
				logger.Error().Err(projErr).Msg("Export aborted")
				return stats, projErr
			}

			if err = out.write(row); err != nil {
				exportFailuresTotal.WithLabelValues("write").Inc()
				return stats, fmt.Errorf("write record: %w", err)
			}
			stats.Written++
			exportRecordsTotal.Inc()
		}

		stats.Pages++
		logger.Debug().
			Int("page", stats.Pages-1).
			Int("records", len(headers)).
			Msg("Page exported")
	}

	logger.Info().
		Int("pages", stats.Pages).
		Int("written", stats.Written).
		Int("filtered", stats.Filtered).
		Msg("Export complete")

	return stats, nil
}
