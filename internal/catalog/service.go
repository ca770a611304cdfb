package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/weiliu/h5client/internal/api"
	"github.com/weiliu/h5client/internal/models"
	"github.com/weiliu/h5client/internal/pager"
)

// DefaultPageSize is the catalog list page size.
const DefaultPageSize = 4

var (
	// ErrVideoNotFound indicates the backend returned no video for the id.
	ErrVideoNotFound = errors.New("video not found")
	// ErrInvalidVideoID indicates a non-positive video id.
	ErrInvalidVideoID = errors.New("invalid video id")
)

// Doer issues gateway requests. *api.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req api.Request, out any) api.Result
}

// DetailSource looks up a single catalog entry.
type DetailSource interface {
	Detail(ctx context.Context, id int64) (models.VideoSummary, error)
}

// Service reads the published catalog.
type Service struct {
	client Doer
}

// NewService constructs a catalog service on top of the gateway.
func NewService(client Doer) *Service {
	return &Service{client: client}
}

// List fetches one page of published videos, filtered by keyword when non-empty.
func (s *Service) List(ctx context.Context, pageNumber, pageSize int, keyword string) (models.Page[models.VideoSummary], error) {
	query := url.Values{
		"pageNum":  {strconv.Itoa(pageNumber)},
		"pageSize": {strconv.Itoa(pageSize)},
	}
	if keyword = strings.TrimSpace(keyword); keyword != "" {
		query.Set("keyword", keyword)
	}

	var data api.ListData[models.VideoSummary]
	res := s.client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/video/publishList", Query: query}, &data)
	if err := res.Err(); err != nil {
		return models.Page[models.VideoSummary]{}, err
	}
	return data.Page(pageNumber), nil
}

// Fetcher exposes List as a loader fetch function keyed by search keyword.
func (s *Service) Fetcher() pager.FetchFunc[models.VideoSummary, string] {
	return s.List
}

// Detail fetches one video.
func (s *Service) Detail(ctx context.Context, id int64) (models.VideoSummary, error) {
	if id <= 0 {
		return models.VideoSummary{}, ErrInvalidVideoID
	}

	var video *models.VideoSummary
	res := s.client.Do(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/video/detail",
		Query:  url.Values{"id": {strconv.FormatInt(id, 10)}},
	}, &video)
	if err := res.Err(); err != nil {
		return models.VideoSummary{}, err
	}
	if video == nil {
		return models.VideoSummary{}, ErrVideoNotFound
	}
	return *video, nil
}

var _ DetailSource = (*Service)(nil)
