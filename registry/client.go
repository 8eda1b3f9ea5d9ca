package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client configuration defaults.
const (
	DefaultMaxIdleConns        = 50
	DefaultMaxIdleConnsPerHost = 20
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultRequestTimeout      = 15 * time.Second
	DefaultUserAgent           = "shadwell"

	// SimpleJSONMediaType is the PEP 691 content type for API version 1.
	SimpleJSONMediaType = "application/vnd.pypi.simple.v1+json"
)

// ErrProjectNotFound is matched by an *HTTPError carrying a 404.
var ErrProjectNotFound = errors.New("project not found")

// HTTPError reports a non-200 response.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// Is makes errors.Is(err, ErrProjectNotFound) true for 404 and 410 responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrProjectNotFound &&
		(e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone)
}

// Client fetches project listings from one package index.
type Client struct {
	baseURL   string
	client    *http.Client
	userAgent string
	cache     Cache

	// In-process cache of decoded documents
	projectCache sync.Map // map[string]*Project keyed by project name
	simpleCache  sync.Map // map[string]*SimpleProject keyed by project name

	// Options
	validateResponses bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithValidation enables or disables structural validation of responses.
func WithValidation(enabled bool) ClientOption {
	return func(c *Client) {
		c.validateResponses = enabled
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout sets a custom HTTP request timeout.
// Zero or negative values fall back to the default timeout (15 seconds).
// The timeout is set on a copy, so a client passed to WithHTTPClient is left
// unchanged.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout <= 0 {
			timeout = DefaultRequestTimeout
		}
		hc := *c.client
		hc.Timeout = timeout
		c.client = &hc
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithCache sets a response body cache shared across clients.
// A nil cache disables persistence.
func WithCache(cache Cache) ClientOption {
	return func(c *Client) {
		if cache == nil {
			cache = NoopCache{}
		}
		c.cache = cache
	}
}

// NewClient creates a client for the given index URL.
//
// For the JSON API the URL is the API root (https://pypi.org/pypi); for the
// simple API it is the simple root (https://pypi.org/simple).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   DefaultRequestTimeout,
			Transport: transport,
		},
		userAgent:         DefaultUserAgent,
		cache:             NoopCache{},
		validateResponses: true,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the index base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetProject fetches {base}/{name}/json from the PyPI JSON API.
// Results are cached by project name.
func (c *Client) GetProject(ctx context.Context, name string) (*Project, error) {
	if cached, ok := c.projectCache.Load(name); ok {
		return cached.(*Project), nil
	}

	url := fmt.Sprintf("%s/%s/json", c.baseURL, name)
	data, err := c.fetchCached(ctx, url, "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch project %s: %w", name, err)
	}

	var project Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to parse project %s: %w", name, err)
	}

	if c.validateResponses {
		if err := ValidateProject(&project); err != nil {
			return nil, fmt.Errorf("project validation failed for %s: %w", name, err)
		}
	}

	c.projectCache.Store(name, &project)
	return &project, nil
}

// GetSimpleProject fetches {base}/{name}/ from a PEP 691 simple index.
// Results are cached by project name.
func (c *Client) GetSimpleProject(ctx context.Context, name string) (*SimpleProject, error) {
	if cached, ok := c.simpleCache.Load(name); ok {
		return cached.(*SimpleProject), nil
	}

	url := fmt.Sprintf("%s/%s/", c.baseURL, name)
	data, err := c.fetchCached(ctx, url, SimpleJSONMediaType)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch simple page for %s: %w", name, err)
	}

	var project SimpleProject
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to parse simple page for %s: %w", name, err)
	}

	if c.validateResponses {
		if err := ValidateSimpleProject(&project); err != nil {
			return nil, fmt.Errorf("simple page validation failed for %s: %w", name, err)
		}
	}

	c.simpleCache.Store(name, &project)
	return &project, nil
}

func (c *Client) fetchCached(ctx context.Context, url, accept string) ([]byte, error) {
	if data, ok := c.cache.Get(url); ok {
		return data, nil
	}
	data, err := c.fetch(ctx, url, accept)
	if err != nil {
		return nil, err
	}
	c.cache.Put(url, data)
	return data, nil
}

// fetch performs an HTTP GET and returns the response body.
func (c *Client) fetch(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode}
	}

	return io.ReadAll(resp.Body)
}
