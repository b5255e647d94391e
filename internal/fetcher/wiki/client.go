package wiki

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-corpus/internal/crawler"
)

const (
	// DefaultAPIURL is the English Wikipedia Action API endpoint.
	DefaultAPIURL = "https://en.wikipedia.org/w/api.php"
	// maxLinkPages caps plcontinue round trips for a single article.
	maxLinkPages = 50
)

var errRateLimited = errors.New("rate limiter wait aborted")

// Config controls the API client.
type Config struct {
	APIURL    string
	UserAgent string
	Timeout   time.Duration
}

// Limiter paces outbound requests; *ratelimit.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Client talks to the MediaWiki Action API.
type Client struct {
	cfg           Config
	limiter       Limiter
	baseCollector *colly.Collector
	logger        *zap.Logger
}

var (
	_ crawler.PageFetcher  = (*Client)(nil)
	_ crawler.SeedResolver = (*Client)(nil)
)

// New builds a Client. limiter and logger may be nil.
func New(cfg Config, limiter Limiter, logger *zap.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	return &Client{
		cfg:           cfg,
		limiter:       limiter,
		baseCollector: c,
		logger:        logger.Named("wiki"),
	}
}

// Fetch loads pageName by exact title. Server-side redirects are followed once;
// a page that is still a redirect afterwards is reported as a redirect loop.
func (c *Client) Fetch(ctx context.Context, pageName string) (crawler.Page, error) {
	params := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"titles":        {pageName},
		"redirects":     {"1"},
		"prop":          {"extracts|revisions|info|pageprops|links"},
		"exintro":       {"1"},
		"rvprop":        {"ids"},
		"inprop":        {"url"},
		"ppprop":        {"disambiguation"},
		"plnamespace":   {"0"},
		"pllimit":       {"max"},
	}
	resp, err := c.query(ctx, params)
	if err != nil {
		return crawler.Page{}, crawler.NewFetchError(classify(err), pageName, err)
	}
	if len(resp.Query.Pages) == 0 {
		return crawler.Page{}, crawler.NewFetchError(crawler.FetchErrorNotFound, pageName, nil)
	}
	p := resp.Query.Pages[0]
	switch {
	case p.Missing || p.Invalid:
		return crawler.Page{}, crawler.NewFetchError(crawler.FetchErrorNotFound, pageName, nil)
	case p.Redirect:
		return crawler.Page{}, crawler.NewFetchError(crawler.FetchErrorRedirectLoop, pageName, nil)
	case p.disambiguation():
		return crawler.Page{}, crawler.NewFetchError(crawler.FetchErrorDisambiguation, pageName, nil)
	}

	summary, err := flattenExtract(p.Extract)
	if err != nil {
		return crawler.Page{}, crawler.NewFetchError(crawler.FetchErrorLookup, pageName, err)
	}
	page := crawler.Page{
		Title:   p.Title,
		Summary: summary,
		URL:     p.url(),
		Links:   appendLinks(nil, p.Links),
	}
	if len(p.Revisions) > 0 {
		page.RevisionID = strconv.FormatInt(p.Revisions[0].RevID, 10)
	}

	cont := resp.Continue
	for round := 0; cont["plcontinue"] != "" && round < maxLinkPages; round++ {
		more := url.Values{
			"action":        {"query"},
			"format":        {"json"},
			"formatversion": {"2"},
			"titles":        {p.Title},
			"prop":          {"links"},
			"plnamespace":   {"0"},
			"pllimit":       {"max"},
			"plcontinue":    {cont["plcontinue"]},
		}
		next, err := c.query(ctx, more)
		if err != nil {
			return crawler.Page{}, crawler.NewFetchError(classify(err), pageName, err)
		}
		for _, np := range next.Query.Pages {
			page.Links = appendLinks(page.Links, np.Links)
		}
		cont = next.Continue
	}
	if cont["plcontinue"] != "" {
		c.logger.Debug("link list truncated",
			zap.String("page", page.Title),
			zap.Int("links", len(page.Links)),
		)
	}
	return page, nil
}

// Resolve returns the title of the top search hit for keyword.
func (c *Client) Resolve(ctx context.Context, keyword string) (string, error) {
	params := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"list":          {"search"},
		"srsearch":      {keyword},
		"srlimit":       {"1"},
	}
	resp, err := c.query(ctx, params)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", keyword, err)
	}
	if len(resp.Query.Search) == 0 || resp.Query.Search[0].Title == "" {
		return "", fmt.Errorf("resolve %q: %w", keyword, crawler.ErrSeedUnresolved)
	}
	return resp.Query.Search[0].Title, nil
}

func appendLinks(dst []string, links []apiLink) []string {
	for _, l := range links {
		if l.NS == 0 && l.Title != "" {
			dst = append(dst, l.Title)
		}
	}
	return dst
}

func (c *Client) query(ctx context.Context, params url.Values) (apiResponse, error) {
	target := c.cfg.APIURL + "?" + params.Encode()
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, target); err != nil {
			return apiResponse{}, fmt.Errorf("%w: %w", errRateLimited, err)
		}
	}
	body, err := c.get(ctx, target)
	if err != nil {
		return apiResponse{}, err
	}
	return decodeResponse(body)
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	var (
		body     []byte
		fetchErr error
	)
	collector := c.baseCollector.Clone()
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
	})
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("api request canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("api request failed: %w", err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("api response failed: %w", fetchErr)
		}
		return body, nil
	}
}

// classify maps transport and API errors to fetch failure kinds.
func classify(err error) crawler.FetchErrorKind {
	if errors.Is(err, errRateLimited) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return crawler.FetchErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return crawler.FetchErrorTimeout
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Code == "missingtitle" {
		return crawler.FetchErrorNotFound
	}
	return crawler.FetchErrorLookup
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
}
