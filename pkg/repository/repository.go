// Package repository exposes DSIS log headers through a storage-neutral
// interface, so export code does not depend on the DSIS client directly.
package repository

import (
	"context"
	"fmt"
	"iter"

	"github.com/Sternrassler/dsis-recall-client/pkg/client"
	"github.com/Sternrassler/dsis-recall-client/pkg/header"
	"github.com/Sternrassler/dsis-recall-client/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogRepository gives access to log headers of a project.
type LogRepository interface {
	// HeaderPages lazily yields the headers of all logs in project, one
	// page at a time. Iteration stops after the first error.
	HeaderPages(ctx context.Context, project string) iter.Seq2[[]header.Header, error]

	// Header returns the header of a single log.
	Header(ctx context.Context, project, logID string) (header.Header, error)
}

// Source is the subset of *client.Client used by DSISLogs.
type Source interface {
	pagination.PageFetcher
	Entity(ctx context.Context, project string, kind client.EntityKind, id string) (map[string]any, error)
	Model() client.Model
}

var _ Source = (*client.Client)(nil)

// DSISLogs reads log headers from the LOG entity of a DSIS data model.
type DSISLogs struct {
	source    Source
	paginator *pagination.Paginator
	logger    zerolog.Logger
}

var _ LogRepository = (*DSISLogs)(nil)

// NewDSISLogs creates a repository on top of source.
func NewDSISLogs(source Source, cfg pagination.Config) *DSISLogs {
	return &DSISLogs{
		source:    source,
		paginator: pagination.NewPaginator(source, cfg),
		logger: log.With().
			Str("component", "log-repository").
			Str("model", source.Model().Name).
			Logger(),
	}
}

// HeaderPages implements LogRepository.
func (r *DSISLogs) HeaderPages(ctx context.Context, project string) iter.Seq2[[]header.Header, error] {
	entity := r.source.Model().Log

	return func(yield func([]header.Header, error) bool) {
		for page, err := range r.paginator.Pages(ctx, project, entity) {
			if err != nil {
				yield(nil, err)
				return
			}

			headers, err := header.NormalizeAll(page.Records)
			if err != nil {
				r.logger.Error().Err(err).
					Str("project", project).
					Int("page", page.Number).
					Msg("Malformed log record")
				yield(nil, fmt.Errorf("page %d of %s/%s: %w", page.Number, project, entity, err))
				return
			}

			if !yield(headers, nil) {
				return
			}
		}
	}
}

// Header implements LogRepository.
func (r *DSISLogs) Header(ctx context.Context, project, logID string) (header.Header, error) {
	record, err := r.source.Entity(ctx, project, client.KindLog, logID)
	if err != nil {
		return nil, err
	}
	h, err := header.Normalize(record)
	if err != nil {
		return nil, fmt.Errorf("log %s in %s: %w", logID, project, err)
	}
	return h, nil
}
