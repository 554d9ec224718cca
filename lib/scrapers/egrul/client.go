// Package egrul implements the registry provider for the government EGRUL
// portal: session-cookie management, the portal's two-step token search
// protocol, and download of official PDF excerpts. The portal exposes no
// detail pages, so the provider only supports search and excerpt download.
package egrul

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"registry-backend/lib/cache"
	"registry-backend/lib/registry"
	"registry-backend/lib/restyutil"
	"registry-backend/lib/telemetry"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("scrapers/egrul")

const (
	cookieTTL = time.Hour

	// searches and excerpts change rarely upstream, so both caches run much
	// longer than the commercial provider's defaults
	searchCacheTTL = 4 * time.Hour
	searchCacheCap = 20
	pdfCacheTTL    = 4 * time.Hour
	pdfCacheCap    = 20
)

type Client struct {
	http    *resty.Client
	caching *registry.Caching

	pdfMu    sync.Mutex
	pdfCache *cache.Cache[string, []byte]

	// lazily refreshed session credential; concurrent refreshes collapse
	// into one portal round trip
	cookieGroup   singleflight.Group
	cookieMu      sync.Mutex
	cookie        string
	cookieExpires time.Time

	now func() time.Time
}

type ClientOptions struct {
	// base url of the portal, e.g. "https://egrul.nalog.ru"
	PortalURL string
	Notifier  registry.Notifier
}

func NewClient(opts ClientOptions) (*Client, error) {
	if _, err := url.Parse(opts.PortalURL); err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.PortalURL)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetHeader("accept", "application/json, text/javascript, */*; q=0.01")
	client.SetTimeout(time.Second * 30)
	telemetry.InstrumentResty(client, "scrapers/egrul/http")

	return &Client{
		http: client,
		caching: registry.NewCaching(registry.CachingOptions{
			Notifier:        opts.Notifier,
			SearchCacheSize: searchCacheCap,
			SearchCacheTTL:  searchCacheTTL,
			RecordCacheSize: searchCacheCap,
			RecordCacheTTL:  searchCacheTTL,
		}),
		pdfCache: cache.New[string, []byte](pdfCacheCap, pdfCacheTTL),
		now:      time.Now,
	}, nil
}

// SetInstrumentOutput dumps full request transcripts, used by the CLI.
func (c *Client) SetInstrumentOutput(output restyutil.InstrumentOutput) {
	restyutil.InstrumentClient(c.http, output)
}

// ensureCookie returns the cached session cookie, fetching a fresh one from
// the portal index page when absent or past its TTL.
func (c *Client) ensureCookie(ctx context.Context) (string, error) {
	c.cookieMu.Lock()
	if c.cookie != "" && c.now().Before(c.cookieExpires) {
		cookie := c.cookie
		c.cookieMu.Unlock()
		return cookie, nil
	}
	c.cookieMu.Unlock()

	cookie, err, _ := c.cookieGroup.Do("session", func() (any, error) {
		cookie, err := c.fetchCookie(ctx)
		if err != nil {
			return "", err
		}
		c.cookieMu.Lock()
		c.cookie = cookie
		c.cookieExpires = c.now().Add(cookieTTL)
		c.cookieMu.Unlock()
		return cookie, nil
	})
	if err != nil {
		return "", err
	}
	return cookie.(string), nil
}

func (c *Client) fetchCookie(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "client:fetchCookie")
	defer span.End()

	res, err := c.http.R().SetContext(ctx).Get("/index.html")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		return "", fmt.Errorf("fetch session cookie: %w", err)
	}
	if res.StatusCode() != 200 {
		span.SetStatus(codes.Error, "unexpected status")
		return "", fmt.Errorf("fetch session cookie: status %d", res.StatusCode())
	}

	header := res.Header().Get("Set-Cookie")
	if header == "" {
		span.SetStatus(codes.Error, "no set-cookie header")
		return "", fmt.Errorf("portal index page set no session cookie")
	}
	// keep only the name=value pair, drop the attributes
	cookie, _, _ := strings.Cut(header, ";")
	return strings.TrimSpace(cookie), nil
}

// wire shapes of the portal responses

type tokenResponse struct {
	T string `json:"t"`
}

// a result row carries compact single-letter keys
type searchRow struct {
	ShortName  string `json:"c"`
	FullName   string `json:"n"`
	Head       string `json:"g"`
	Inn        string `json:"i"`
	Ogrn       string `json:"o"`
	Region     string `json:"rn"`
	Id         string `json:"t"`
	Terminated string `json:"e"`
}

type searchResult struct {
	Rows []searchRow `json:"rows"`
}

func (c *Client) Search(ctx context.Context, text string) ([]registry.Match, error) {
	return c.caching.Search(ctx, text, c.search)
}

// search runs the portal's two-step protocol: post the query form to obtain
// a server-side job token, then poll the result endpoint for that token.
func (c *Client) search(ctx context.Context, text string) ([]registry.Match, error) {
	ctx, span := tracer.Start(ctx, "client:search")
	defer span.End()

	cookie, err := c.ensureCookie(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no session cookie")
		return nil, err
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("cookie", cookie+"; uniI18nLang=RUS").
		SetHeader("content-type", "application/x-www-form-urlencoded; charset=UTF-8").
		SetBody("vyp3CaptchaToken=&page=&query=" + url.QueryEscape(text) + "&nameEq=on&region=&PreventChromeAutocomplete=").
		Post("/")
	if err != nil {
		span.SetStatus(codes.Error, "failed to post query")
		return nil, err
	}
	if res.StatusCode() != 200 {
		span.SetStatus(codes.Error, "unexpected status")
		return nil, fmt.Errorf("search query returned status %d", res.StatusCode())
	}

	var token tokenResponse
	err = json.Unmarshal(res.Body(), &token)
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse json")
		return nil, err
	}
	if token.T == "" {
		span.SetStatus(codes.Error, "no search token")
		return nil, fmt.Errorf("search query returned no token")
	}

	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	res, err = c.http.R().
		SetContext(ctx).
		SetHeader("cookie", cookie+"; uniI18nLang=RUS").
		SetQueryParams(map[string]string{"r": ts, "_": ts}).
		Get("/search-result/" + url.PathEscape(token.T))
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch results")
		return nil, err
	}
	if res.StatusCode() != 200 {
		span.SetStatus(codes.Error, "unexpected status")
		return nil, fmt.Errorf("search result returned status %d", res.StatusCode())
	}

	var result searchResult
	err = json.Unmarshal(res.Body(), &result)
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse json")
		return nil, err
	}

	matches := []registry.Match{}
	for _, row := range result.Rows {
		matches = append(matches, c.rowToMatch(row))
	}
	return matches, nil
}

// rowToMatch remaps the compact row keys to canonical field names and
// synthesizes the status pair from the termination-date marker.
func (c *Client) rowToMatch(row searchRow) registry.Match {
	status := "Действующая на " + c.now().Format("02.01.2006")
	active := true
	if row.Terminated != "" {
		status = "Прекратила деятельность " + row.Terminated
		active = false
	}

	details := registry.NewRecord()
	details.SetText(registry.KeyName, row.ShortName)
	details.SetText(registry.KeyFullName, row.FullName)
	details.SetText(registry.KeyHeadOfOrg, row.Head)
	details.SetText(registry.KeyTaxID, row.Inn)
	details.SetText(registry.KeyOGRN, row.Ogrn)
	details.SetText(registry.KeyRegion, row.Region)
	details.SetText(registry.KeyStatus, status)
	details.SetBool(registry.KeyStatusActive, active)

	return registry.Match{
		ID:        row.Id,
		ShortName: row.ShortName,
		FullName:  row.FullName,
		TaxID:     row.Inn,
		Active:    active,
		Details:   details,
	}
}

// DownloadExcerptByTaxID downloads the official excerpt for a tax id. The id
// must resolve to exactly one search hit; zero or multiple matches yield nil
// rather than guessing.
func (c *Client) DownloadExcerptByTaxID(ctx context.Context, taxID string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "client:DownloadExcerptByTaxID")
	defer span.End()

	matches, err := c.Search(ctx, taxID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}
	if len(matches) != 1 {
		return nil, nil
	}
	return c.DownloadExcerptByID(ctx, matches[0].ID)
}

// DownloadExcerptByID runs the portal's two-step download protocol: request
// generation of the excerpt for the entity id, then fetch the produced
// document by its token. A response that is not exactly a PDF is a soft
// failure and yields nil.
func (c *Client) DownloadExcerptByID(ctx context.Context, id string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "client:DownloadExcerptByID")
	defer span.End()

	c.pdfMu.Lock()
	cached, ok := c.pdfCache.Get(id)
	c.pdfMu.Unlock()
	if ok {
		span.SetStatus(codes.Ok, "CACHE HIT")
		return cached, nil
	}

	cookie, err := c.ensureCookie(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no session cookie")
		return nil, err
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("cookie", cookie+"; uniI18nLang=RUS").
		Get("/vyp-request/" + url.PathEscape(id))
	if err != nil {
		span.SetStatus(codes.Error, "failed to request excerpt")
		return nil, err
	}
	if res.StatusCode() != 200 {
		span.SetStatus(codes.Error, "unexpected status")
		return nil, fmt.Errorf("excerpt request returned status %d", res.StatusCode())
	}

	var token tokenResponse
	err = json.Unmarshal(res.Body(), &token)
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse json")
		return nil, err
	}
	if token.T == "" {
		// the portal declined to generate the document
		span.SetStatus(codes.Ok, "no download token")
		return nil, nil
	}

	res, err = c.http.R().
		SetContext(ctx).
		SetHeader("cookie", cookie+"; uniI18nLang=RUS").
		Get("/vyp-download/" + url.PathEscape(token.T))
	if err != nil {
		span.SetStatus(codes.Error, "failed to download excerpt")
		return nil, err
	}
	if res.StatusCode() != 200 {
		span.SetStatus(codes.Error, "unexpected status")
		return nil, fmt.Errorf("excerpt download returned status %d", res.StatusCode())
	}
	if res.Header().Get("Content-Type") != "application/pdf" {
		span.SetStatus(codes.Ok, "response is not a pdf")
		return nil, nil
	}

	body := res.Body()
	c.pdfMu.Lock()
	c.pdfCache.Set(id, body)
	c.pdfMu.Unlock()
	return body, nil
}

// The portal has no detail pages, linked-person data or branch listings.

func (c *Client) FetchByID(ctx context.Context, id string) (*registry.Record, error) {
	return nil, registry.ErrNotSupported
}

func (c *Client) HQForTaxID(ctx context.Context, taxID string) (*registry.Record, error) {
	return nil, registry.ErrNotSupported
}

func (c *Client) LinkedPersons(ctx context.Context, taxID string) ([]registry.Person, error) {
	return nil, registry.ErrNotSupported
}

func (c *Client) Branches(ctx context.Context, taxID string) ([]*registry.Record, error) {
	return nil, registry.ErrNotSupported
}
