package headhunter

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/sources"
)

const (
	apiURL    = "https://api.hh.ru"
	userAgent = "spigell/job-matcher (spigelly@gmail.com)"
	// Max value for search per page.
	maxPerPage = 100

	contentType     = "application/json"
	contentEncoding = "gzip"
)

// Client is a read-only hh.ru API client.
type Client struct {
	source     string
	token      string
	logger     *zap.Logger
	limiter    *sources.Limiter
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func NewClient(source, token string, hc *http.Client, limiter *sources.Limiter, logger *zap.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		source:     source,
		token:      token,
		APIURL:     apiURL,
		HTTPClient: hc,
		limiter:    limiter,
		logger:     logger,
		UserAgent:  userAgent,
	}
}

type ItemResponse struct {
	Items   []Item
	Found   int
	Pages   int
	Page    int
	PerPage int `json:"per_page"`
}

type Item any

// GetItems makes GET requests to the API and collects items page by page
// until all pages are read or limit items are collected. limit <= 0 means all.
func (c *Client) GetItems(ctx context.Context, endpoint string, q url.Values, limit int) ([]Item, error) {
	var items []Item

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, sources.Unavailable(c.source, err)
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)
	req.URL.RawQuery = q.Encode()

	response, err := c.fetchPage(ctx, req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("got response from hh.ru",
		zap.Int("pages", response.Pages),
		zap.Int("found", response.Found),
		zap.Int("max items per page", response.PerPage),
	)

	items = append(items, response.Items...)

	for response.Page < (response.Pages-1) && (limit <= 0 || len(items) < limit) {
		c.logger.Debug("additional request needed", zap.String("reason", fmt.Sprintf(
			"current page (%d) < all page count (%d)", response.Page+1, response.Pages),
		))

		response, err = c.fetchPage(ctx, addPage(req, response.Page+1))
		if err != nil {
			return nil, err
		}

		items = append(items, response.Items...)
	}

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (c *Client) fetchPage(ctx context.Context, req *http.Request) (*ItemResponse, error) {
	if err := c.limiter.WaitURL(ctx, c.source, req.URL.String()); err != nil {
		return nil, err
	}

	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, sources.Wrap(c.source, err)
	}
	defer resp.Body.Close()

	return c.parseItemResponse(ctx, resp)
}

func (c *Client) parseItemResponse(ctx context.Context, resp *http.Response) (*ItemResponse, error) {
	if err := sources.CheckStatus(c.source, resp); err != nil {
		return nil, err
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, sources.Malformed(c.source, err)
		}
		defer gz.Close()
		body = gz
	}

	var response *ItemResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		if ctx.Err() != nil {
			return nil, sources.Timeout(c.source, ctx.Err())
		}
		return nil, sources.Malformed(c.source, err)
	}
	if response == nil {
		return nil, sources.Malformed(c.source, fmt.Errorf("empty response body"))
	}

	return response, nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

// addPage adds page parameter to request URL.
func addPage(req *http.Request, page int) *http.Request {
	q := req.URL.Query()
	q.Set("page", strconv.Itoa(page))
	req.URL.RawQuery = q.Encode()

	return req
}
