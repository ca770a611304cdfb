package history

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/weiliu/h5client/internal/api"
	"github.com/weiliu/h5client/internal/models"
	"github.com/weiliu/h5client/internal/pager"
)

// DefaultPageSize is the watch history page size.
const DefaultPageSize = 5

// ErrInvalidVideoID indicates a non-positive video id.
var ErrInvalidVideoID = errors.New("invalid video id")

// Doer issues gateway requests. *api.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req api.Request, out any) api.Result
}

// Service reads and appends the signed-in viewer's watch history.
type Service struct {
	client Doer
}

// NewService constructs a history service on top of the gateway.
func NewService(client Doer) *Service {
	return &Service{client: client}
}

// List fetches one page of watch history. History has no filter, so the
// query parameter is ignored.
func (s *Service) List(ctx context.Context, pageNumber, pageSize int, _ struct{}) (models.Page[models.HistoryEntry], error) {
	query := url.Values{
		"pageNum":  {strconv.Itoa(pageNumber)},
		"pageSize": {strconv.Itoa(pageSize)},
	}

	var data api.ListData[models.HistoryEntry]
	res := s.client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/history/currenList", Query: query}, &data)
	if err := res.Err(); err != nil {
		return models.Page[models.HistoryEntry]{}, err
	}
	return data.Page(pageNumber), nil
}

// Fetcher exposes List as a loader fetch function.
func (s *Service) Fetcher() pager.FetchFunc[models.HistoryEntry, struct{}] {
	return s.List
}

// Add records that the viewer opened videoID.
func (s *Service) Add(ctx context.Context, videoID int64) error {
	if videoID <= 0 {
		return ErrInvalidVideoID
	}
	res := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/history/add",
		Body:   map[string]int64{"videoId": videoID},
	}, nil)
	return res.Err()
}
