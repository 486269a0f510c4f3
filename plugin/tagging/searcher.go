package tagging

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrQueryFailed is returned when a tag lookup could not be completed.
var ErrQueryFailed = errors.New("tag query failed")

// Searcher looks up tag candidates. Implementations make at most one remote call per
// invocation and neither cache nor retry.
type Searcher interface {
	Search(ctx context.Context, query string, kinds []TagKind, limit int) ([]TagCandidate, error)
}

// SearchPath is the endpoint path served by the tag API.
const SearchPath = "/api/v1/tags/search"

// HTTPSearcher queries the tag search endpoint over HTTP.
type HTTPSearcher struct {
	baseURL string
	client  *http.Client
}

// HTTPSearcherOption configures an HTTPSearcher.
type HTTPSearcherOption func(*HTTPSearcher)

// WithHTTPClient sets the client used for lookups. Its timeout is the lookup timeout.
func WithHTTPClient(client *http.Client) HTTPSearcherOption {
	return func(s *HTTPSearcher) {
		s.client = client
	}
}

// NewHTTPSearcher creates a searcher for the API rooted at baseURL.
func NewHTTPSearcher(baseURL string, opts ...HTTPSearcherOption) *HTTPSearcher {
	s := &HTTPSearcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type searchResponse struct {
	Results *[]TagCandidate `json:"results"`
}

// Search implements Searcher. Blank queries return no candidates without a request.
func (s *HTTPSearcher) Search(ctx context.Context, query string, kinds []TagKind, limit int) ([]TagCandidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", query)
	if len(kinds) > 0 {
		names := make([]string, 0, len(kinds))
		for _, k := range kinds {
			names = append(names, string(k))
		}
		params.Set("types", strings.Join(names, ","))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+SearchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(ErrQueryFailed, err.Error())
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(ErrQueryFailed, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, errors.Wrapf(ErrQueryFailed, "unexpected status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrapf(ErrQueryFailed, "decode response: %v", err)
	}
	if body.Results == nil {
		return nil, errors.Wrap(ErrQueryFailed, "response has no results")
	}
	return *body.Results, nil
}

var _ Searcher = (*HTTPSearcher)(nil)
