package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Sternrassler/dsis-recall-client/pkg/cache"
	"github.com/Sternrassler/dsis-recall-client/pkg/pagination"
)

const formatJSON = "$format=json"

var _ pagination.PageFetcher = (*Client)(nil)

// entityKeyLiteral renders id as the body of an OData string key literal.
// Single quotes are doubled and each path segment is escaped; slashes are
// kept because Recall well ids look like "2/1".
func entityKeyLiteral(id string) string {
	segments := strings.Split(strings.ReplaceAll(id, "'", "''"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func entityPath(project, entity, id string) string {
	return project + "/" + entity + "('" + entityKeyLiteral(id) + "')"
}

// FetchPage requests one window of project/entity and returns the records of
// its value array. It implements pagination.PageFetcher.
func (c *Client) FetchPage(ctx context.Context, project, entity string, skip, top int) ([]map[string]any, error) {
	body, err := c.get(ctx, "page", project+"/"+entity, pagination.Query(skip, top))
	if err != nil {
		return nil, err
	}
	recs, err := records(body)
	if err != nil {
		return nil, &RequestError{
			StatusCode: 200,
			ErrorClass: ErrorClassDecode,
			URL:        c.resourceURL(project+"/"+entity, pagination.Query(skip, top)),
			Message:    "unexpected collection shape",
			Err:        err,
		}
	}
	return recs, nil
}

// Entities lists a whole entity collection in one unpaginated request.
// Large collections should be read with a pagination.Paginator instead.
func (c *Client) Entities(ctx context.Context, project string, kind EntityKind) ([]map[string]any, error) {
	entity := c.config.Model.Entity(kind)
	body, err := c.get(ctx, "list_"+kind.String(), project+"/"+entity, formatJSON)
	if err != nil {
		return nil, err
	}
	recs, err := records(body)
	if err != nil {
		return nil, fmt.Errorf("list %s in %s: %w", entity, project, err)
	}
	return recs, nil
}

// Entity fetches the metadata of one entity by id.
func (c *Client) Entity(ctx context.Context, project string, kind EntityKind, id string) (map[string]any, error) {
	entity := c.config.Model.Entity(kind)
	key := c.cacheKey(project, entity, id, formatJSON)
	return c.cachedGet(ctx, "get_"+kind.String(), key, entityPath(project, entity, id), formatJSON)
}

// WellWithLogs fetches a well together with its expanded log entities.
func (c *Client) WellWithLogs(ctx context.Context, project, wellID string) (map[string]any, error) {
	m := c.config.Model
	query := formatJSON + "&$expand=" + m.Log
	key := c.cacheKey(project, m.Well, wellID, query)
	return c.cachedGet(ctx, "get_well_expanded", key, entityPath(project, m.Well, wellID), query)
}

// Projects lists the project names available under the service root.
func (c *Client) Projects(ctx context.Context) ([]string, error) {
	key := c.cacheKey("", "", "", formatJSON)
	body, err := c.cachedGet(ctx, "list_projects", key, "", formatJSON)
	if err != nil {
		return nil, err
	}
	recs, err := records(body)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	names := make([]string, 0, len(recs))
	for i, rec := range recs {
		name, ok := rec["ProjectName"].(string)
		if !ok {
			return nil, fmt.Errorf("list projects: %w: value[%d] has no ProjectName", ErrMalformedResponse, i)
		}
		names = append(names, name)
	}
	return names, nil
}

// cacheKey builds the response cache key for a lookup against this client's
// service root.
func (c *Client) cacheKey(project, entity, id, query string) cache.CacheKey {
	return cache.CacheKey{
		Model:   c.config.Model.Name,
		Root:    c.config.Model.BaseURL,
		Project: project,
		Entity:  entity,
		ID:      id,
		Query:   query,
	}
}

// cachedGet serves a lookup from the response cache when one is configured.
// Only bodies that decode are stored, and a hit is used only when it was
// fetched from the same URL.
func (c *Client) cachedGet(ctx context.Context, operation string, key cache.CacheKey, resourcePath, query string) (map[string]any, error) {
	u := c.resourceURL(resourcePath, query)

	if c.cache != nil {
		entry, err := c.cache.Get(ctx, key)
		switch {
		case err == nil && entry.URL != u:
			c.logger.Warn().Str("key", key.String()).Str("url", u).Msg("Ignoring cache entry fetched from another URL")
		case err == nil:
			c.logger.Debug().Str("operation", operation).Str("key", key.String()).Msg("Cache hit")
			if v, decodeErr := decodeLenient(entry.Data); decodeErr == nil {
				return v, nil
			}
			c.logger.Warn().Str("key", key.String()).Msg("Discarding undecodable cache entry")
		case errors.Is(err, cache.ErrCacheMiss):
			c.logger.Debug().Str("operation", operation).Str("key", key.String()).Msg("Cache miss")
		default:
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
		}
	}

	body, err := c.fetch(ctx, operation, u)
	if err != nil {
		return nil, err
	}
	v, err := c.decode(operation, u, body)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, cache.NewEntry(u, body, 0)); err != nil {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache response")
		}
	}
	return v, nil
}
