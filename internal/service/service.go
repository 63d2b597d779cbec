package service

import (
	"context"
	"mime/multipart"
	"net/url"
	"time"

	"easyrent/internal/domain"
	"easyrent/internal/media"
	"easyrent/internal/query"
	"easyrent/pkg/apperrors"
)

// Mailer is the part of notify.Notifier the services use.
type Mailer interface {
	Welcome(u *domain.User)
	PasswordReset(ctx context.Context, u *domain.User, resetURL string) error
}

// MediaProcessor stores uploaded listing images (media.Pipeline).
type MediaProcessor interface {
	Process(ctx context.Context, ownerID string, primary *multipart.FileHeader, secondary []*multipart.FileHeader) (media.Result, error)
	Discard(ctx context.Context, res media.Result)
}

// Cache is the read-through cache used for listing detail (cache.Cache).
type Cache interface {
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error)
	Generation(ctx context.Context, key string) (int64, error)
	Bump(ctx context.Context, key string) error
}

// Page is the list payload: projected items plus paging counters.
type Page struct {
	Items    []map[string]any `json:"items"`
	Results  int              `json:"results"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// listPage runs a parsed query through fetch and shapes the result.
func listPage[T any](ctx context.Context, q *query.Query, fetch func(context.Context, *query.Query) ([]T, int64, error)) (*Page, error) {
	items, total, err := fetch(ctx, q)
	if err != nil {
		return nil, apperrors.Upstream("Could not load records", err)
	}
	if err := query.CheckPage(q, total); err != nil {
		return nil, err
	}
	docs, err := query.ProjectAll(q, items)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &Page{Items: docs, Results: len(docs), Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

func parseQuery(values url.Values, schema query.Schema) (*query.Query, error) {
	if values == nil {
		values = url.Values{}
	}
	return query.Parse(values, schema)
}

func hasRole(u *domain.User, roles ...domain.Role) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

func isStaff(u *domain.User) bool { return hasRole(u, domain.RoleAdmin, domain.RoleDeveloper) }
