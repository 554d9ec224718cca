// Package bir implements the registry provider for the commercial BIR web
// service: full-text search over its JSON API and scraping of company brief
// pages into structured records. The live search API endpoint is discovered
// through a remote runtime-config document because the upstream relocates it
// periodically.
package bir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"registry-backend/lib/registry"
	"registry-backend/lib/restyutil"
	"registry-backend/lib/telemetry"
	"registry-backend/lib/textutil"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("scrapers/bir")

// ErrConfigUnavailable is the only hard dependency failure of this provider:
// without the runtime config there is no search endpoint to fall back to.
var ErrConfigUnavailable = errors.New("registry runtime config unavailable")

const noticeConfigFailed = "Не удалось получить конфигурацию сервиса реестра."

type Client struct {
	http    *resty.Client
	caching *registry.Caching

	// resolves the live search API base url once; a failure is sticky for
	// the lifetime of the client, matching the upstream contract that a
	// missing config has no cached or default fallback
	searchBase func() (string, error)
}

type ClientOptions struct {
	// base url of the registry site, e.g. "https://site.birweb.1prime.ru"
	SiteURL  string
	Notifier registry.Notifier
}

func NewClient(opts ClientOptions) (*Client, error) {
	if _, err := url.Parse(opts.SiteURL); err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.SiteURL)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)
	telemetry.InstrumentResty(client, "scrapers/bir/http")

	c := &Client{
		http:    client,
		caching: registry.NewCaching(registry.CachingOptions{Notifier: opts.Notifier}),
	}
	c.searchBase = sync.OnceValues(c.fetchSearchBase)
	return c, nil
}

// SetInstrumentOutput dumps full request transcripts, used by the CLI.
func (c *Client) SetInstrumentOutput(output restyutil.InstrumentOutput) {
	restyutil.InstrumentClient(c.http, output)
}

type runtimeConfig struct {
	SearchApiUrl2 string `json:"searchApiUrl2"`
}

func (c *Client) fetchSearchBase() (string, error) {
	res, err := c.http.R().Get("/runtime-config.json")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
	}
	if res.StatusCode() != 200 {
		return "", fmt.Errorf("%w: status %d", ErrConfigUnavailable, res.StatusCode())
	}

	var config runtimeConfig
	err = json.Unmarshal(res.Body(), &config)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
	}
	if config.SearchApiUrl2 == "" {
		return "", fmt.Errorf("%w: no search api url in config", ErrConfigUnavailable)
	}
	return config.SearchApiUrl2, nil
}

func (c *Client) searchURL(ctx context.Context) (string, error) {
	base, err := c.searchBase()
	if err != nil {
		c.caching.Notify(ctx, noticeConfigFailed)
		return "", err
	}
	return base + "/v2/FullSearch", nil
}

// wire shapes of the FullSearch response

type searchLinkedCompany struct {
	CompanyId json.Number `json:"companyId"`
}

type searchLinkedPosition struct {
	Position        string                `json:"position"`
	LinkedCompanies []searchLinkedCompany `json:"linkedCompanies"`
}

type searchRow struct {
	Id              json.Number            `json:"id"`
	ShortName       string                 `json:"shortName"`
	FullName        string                 `json:"fullName"`
	Inn             string                 `json:"inn"`
	ObjectType      int                    `json:"objectType"`
	SuspendDate     string                 `json:"suspendDate"`
	LinkedPositions []searchLinkedPosition `json:"linkedPositions"`
}

func (c *Client) Search(ctx context.Context, text string) ([]registry.Match, error) {
	return c.caching.Search(ctx, text, c.search)
}

func (c *Client) search(ctx context.Context, text string) ([]registry.Match, error) {
	ctx, span := tracer.Start(ctx, "client:search")
	defer span.End()

	searchURL, err := c.searchURL(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no search endpoint")
		return nil, err
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"skip": "0",
			"take": "20",
			"term": text,
		}).
		Get(searchURL)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, err
	}
	if res.StatusCode() != 200 {
		span.SetStatus(codes.Error, "unexpected status")
		return nil, fmt.Errorf("search returned status %d", res.StatusCode())
	}

	var rows []searchRow
	err = json.Unmarshal(res.Body(), &rows)
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse json")
		return nil, err
	}

	matches := []registry.Match{}
	for _, row := range rows {
		// search results embed highlighting markup around matched substrings
		match := registry.Match{
			ID:          row.Id.String(),
			ShortName:   textutil.StripTags(row.ShortName),
			FullName:    textutil.StripTags(row.FullName),
			TaxID:       textutil.StripTags(row.Inn),
			ObjectType:  registry.ObjectType(row.ObjectType),
			Active:      row.SuspendDate == "",
			SuspendDate: textutil.StripTags(row.SuspendDate),
		}
		if match.TaxID == "" || (match.ShortName == "" && match.FullName == "") {
			continue
		}
		for _, pos := range row.LinkedPositions {
			linked := registry.LinkedPosition{Position: pos.Position}
			for _, lc := range pos.LinkedCompanies {
				linked.LinkedCompanies = append(linked.LinkedCompanies, registry.LinkedCompany{
					CompanyID: lc.CompanyId.String(),
				})
			}
			match.LinkedPositions = append(match.LinkedPositions, linked)
		}
		matches = append(matches, match)
	}
	return matches, nil
}

func (c *Client) FetchByID(ctx context.Context, id string) (*registry.Record, error) {
	return c.caching.FetchByID(ctx, id, c.fetchByID)
}

func (c *Client) fetchByID(ctx context.Context, id string) (*registry.Record, error) {
	ctx, span := tracer.Start(ctx, "client:fetchByID")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		Get("/company-brief/" + url.PathEscape(id))
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, err
	}
	if res.StatusCode() != 200 {
		span.SetStatus(codes.Error, "unexpected status")
		return nil, fmt.Errorf("company brief returned status %d", res.StatusCode())
	}

	record, err := parseBrief(res.Body())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse company brief")
		return nil, fmt.Errorf("parse company brief %s: %w", id, err)
	}
	return record, nil
}

// HQForTaxID resolves the single headquarters record for a tax id. Zero or
// multiple non-branch candidates is an ambiguous result and yields nil.
func (c *Client) HQForTaxID(ctx context.Context, taxID string) (*registry.Record, error) {
	ctx, span := tracer.Start(ctx, "client:HQForTaxID")
	defer span.End()

	matches, err := c.Search(ctx, taxID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}

	var candidates []registry.Match
	for _, m := range matches {
		if m.ObjectType == registry.ObjectCompany && m.TaxID == taxID {
			candidates = append(candidates, m)
		}
	}

	records, err := c.fetchAll(ctx, candidates)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "detail fetch failed")
		return nil, err
	}

	var found []*registry.Record
	for _, r := range records {
		if !registry.IsBranch(r) {
			found = append(found, r)
		}
	}
	if len(found) != 1 {
		return nil, nil
	}
	return found[0], nil
}

// fetchAll issues the detail fetches for all matches concurrently. One
// failed fetch fails the batch; a silently shorter list would corrupt the
// unique-parent checks layered on top.
func (c *Client) fetchAll(ctx context.Context, matches []registry.Match) ([]*registry.Record, error) {
	records := make([]*registry.Record, len(matches))
	group, ctx := errgroup.WithContext(ctx)
	for i, m := range matches {
		i, m := i, m
		group.Go(func() error {
			record, err := c.FetchByID(ctx, m.ID)
			if err != nil {
				return err
			}
			records[i] = record
			return nil
		})
	}
	err := group.Wait()
	if err != nil {
		return nil, err
	}
	return records, nil
}

// LinkedPersons returns the persons holding positions in companies
// registered under taxID. Two sequential searches resolve company ids first
// (a tax id may legitimately map to more than one company upstream), then
// person subjects; the second search is served from cache.
func (c *Client) LinkedPersons(ctx context.Context, taxID string) ([]registry.Person, error) {
	ctx, span := tracer.Start(ctx, "client:LinkedPersons")
	defer span.End()

	matches, err := c.Search(ctx, taxID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "company search failed")
		return nil, err
	}
	companyIDs := map[string]bool{}
	for _, m := range matches {
		if m.ObjectType == registry.ObjectCompany && m.TaxID == taxID {
			companyIDs[m.ID] = true
		}
	}
	if len(companyIDs) == 0 {
		return []registry.Person{}, nil
	}

	matches, err = c.Search(ctx, taxID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "person search failed")
		return nil, err
	}

	persons := []registry.Person{}
	for _, m := range matches {
		if m.ObjectType != registry.ObjectPerson || len(m.LinkedPositions) == 0 {
			continue
		}
		if !referencesAny(m.LinkedPositions, companyIDs) {
			continue
		}

		seen := map[string]bool{}
		var positions []string
		for _, pos := range m.LinkedPositions {
			if seen[pos.Position] {
				continue
			}
			seen[pos.Position] = true
			positions = append(positions, pos.Position)
		}
		persons = append(persons, registry.Person{
			FullName:  m.FullName,
			ID:        m.ID,
			TaxID:     m.TaxID,
			Positions: positions,
		})
	}
	return persons, nil
}

func referencesAny(positions []registry.LinkedPosition, companyIDs map[string]bool) bool {
	for _, pos := range positions {
		for _, lc := range pos.LinkedCompanies {
			if companyIDs[lc.CompanyID] {
				return true
			}
		}
	}
	return false
}

// Branches returns the branch records registered under taxID. A lone search
// match cannot have branches by construction. The parent headquarters record
// is attached to each branch only when it is unambiguous.
func (c *Client) Branches(ctx context.Context, taxID string) ([]*registry.Record, error) {
	ctx, span := tracer.Start(ctx, "client:Branches")
	defer span.End()

	matches, err := c.Search(ctx, taxID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}

	var candidates []registry.Match
	for _, m := range matches {
		if m.ObjectType == registry.ObjectCompany && m.TaxID == taxID {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) < 2 {
		return []*registry.Record{}, nil
	}

	records, err := c.fetchAll(ctx, candidates)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "detail fetch failed")
		return nil, err
	}

	var branches []*registry.Record
	var parents []*registry.Record
	for _, r := range records {
		if registry.IsBranch(r) {
			branches = append(branches, r)
		} else {
			parents = append(parents, r)
		}
	}

	if len(parents) == 1 {
		for i, b := range branches {
			withParent := b.Clone()
			withParent.Set(registry.KeyParentCompany, registry.NestedValue(parents[0]))
			branches[i] = withParent
		}
	}
	if branches == nil {
		branches = []*registry.Record{}
	}
	return branches, nil
}
