// Package paapi implements the signed batch item-lookup client for Amazon's
// Product Advertising API.
package paapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/curately/pricesync/apierr"
	"github.com/curately/pricesync/models"
	"github.com/curately/pricesync/secrets"
)

// MaxBatchSize is the upstream GetItems batch ceiling.
const MaxBatchSize = 10

const (
	getItemsPath   = "/paapi5/getitems"
	getItemsTarget = "com.amazon.paapi5.v1.ProductAdvertisingAPIv1.GetItems"
	serviceName    = "ProductAdvertisingAPI"
	contentType    = "application/json; charset=utf-8"
)

var itemResources = []string{
	"ItemInfo.Title",
	"Offers.Listings.Price",
	"Offers.Listings.Availability.Type",
	"Images.Primary.Large",
	"Images.Primary.Medium",
	"Images.Primary.Small",
}

// ParamNames are the four secret-store paths the client reads its
// credentials from.
type ParamNames struct {
	AccessKey   string
	SecretKey   string
	PartnerTag  string
	Marketplace string
}

func (p ParamNames) list() []string {
	return []string{p.AccessKey, p.SecretKey, p.PartnerTag, p.Marketplace}
}

// Credentials are the resolved PA-API secrets.
type Credentials struct {
	AccessKey   string
	SecretKey   string
	PartnerTag  string
	Marketplace string
}

type endpoint struct {
	host   string
	region string
}

// Marketplace identifiers to API hosts and signing regions.
var marketplaceEndpoints = map[string]endpoint{
	"www.amazon.com":    {host: "webservices.amazon.com", region: "us-east-1"},
	"www.amazon.co.uk":  {host: "webservices.amazon.co.uk", region: "eu-west-1"},
	"www.amazon.de":     {host: "webservices.amazon.de", region: "eu-west-1"},
	"www.amazon.fr":     {host: "webservices.amazon.fr", region: "eu-west-1"},
	"www.amazon.it":     {host: "webservices.amazon.it", region: "eu-west-1"},
	"www.amazon.es":     {host: "webservices.amazon.es", region: "eu-west-1"},
	"www.amazon.ca":     {host: "webservices.amazon.ca", region: "us-east-1"},
	"www.amazon.co.jp":  {host: "webservices.amazon.co.jp", region: "us-west-2"},
	"www.amazon.com.au": {host: "webservices.amazon.com.au", region: "us-west-2"},
}

var defaultEndpoint = endpoint{host: "webservices.amazon.com", region: "us-east-1"}

// Client issues signed GetItems lookups. Credentials are fetched lazily on
// first use and cached for the client's lifetime; a mid-run rotation is not
// observed until the process restarts.
type Client struct {
	provider secrets.Provider
	params   ParamNames
	http     *http.Client
	baseURL  string // test override; replaces the marketplace-derived host
	now      func() time.Time

	mu    sync.Mutex
	creds *Credentials
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBaseURL points the client at an alternate endpoint, e.g. a mock
// server in tests. The marketplace still drives the signing region.
func WithBaseURL(raw string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(raw, "/") }
}

// WithClock overrides the signing clock.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New builds a client reading its credentials from provider.
func New(provider secrets.Provider, params ParamNames, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		params:   params,
		now:      time.Now,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type getItemsRequest struct {
	ItemIds     []string `json:"ItemIds"`
	PartnerTag  string   `json:"PartnerTag"`
	PartnerType string   `json:"PartnerType"`
	Marketplace string   `json:"Marketplace"`
	Resources   []string `json:"Resources"`
}

type getItemsResponse struct {
	ItemsResult struct {
		Items []responseItem `json:"Items"`
	} `json:"ItemsResult"`
	Errors []responseError `json:"Errors"`
}

type responseError struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

type responseItem struct {
	ASIN     string `json:"ASIN"`
	ItemInfo struct {
		Title struct {
			DisplayValue string `json:"DisplayValue"`
		} `json:"Title"`
	} `json:"ItemInfo"`
	Images struct {
		Primary struct {
			Large  responseImage `json:"Large"`
			Medium responseImage `json:"Medium"`
			Small  responseImage `json:"Small"`
		} `json:"Primary"`
	} `json:"Images"`
	Offers struct {
		Listings []responseListing `json:"Listings"`
	} `json:"Offers"`
}

type responseImage struct {
	URL string `json:"URL"`
}

type responseListing struct {
	Price struct {
		Amount        float64 `json:"Amount"`
		Currency      string  `json:"Currency"`
		DisplayAmount string  `json:"DisplayAmount"`
	} `json:"Price"`
	Availability struct {
		Type string `json:"Type"`
	} `json:"Availability"`
}

// GetProductInfo looks up 1-10 ASINs in one signed GetItems call. An empty
// input returns an empty result without a network call; more than
// MaxBatchSize ASINs is a programmer error and fails before any I/O.
func (c *Client) GetProductInfo(ctx context.Context, asins []string) ([]models.ProductInfo, error) {
	if len(asins) == 0 {
		return []models.ProductInfo{}, nil
	}
	if len(asins) > MaxBatchSize {
		return nil, apierr.Fatal(
			fmt.Sprintf("batch of %d ASINs exceeds the GetItems limit of %d", len(asins), MaxBatchSize),
			"BatchTooLarge", nil)
	}

	creds, err := c.credentials(ctx)
	if err != nil {
		return nil, err
	}

	ep, ok := marketplaceEndpoints[creds.Marketplace]
	if !ok {
		ep = defaultEndpoint
	}

	body, err := json.Marshal(getItemsRequest{
		ItemIds:     asins,
		PartnerTag:  creds.PartnerTag,
		PartnerType: "Associates",
		Marketplace: creds.Marketplace,
		Resources:   itemResources,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal getitems request: %w", err)
	}

	url := "https://" + ep.host + getItemsPath
	if c.baseURL != "" {
		url = c.baseURL + getItemsPath
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build getitems request: %w", err)
	}
	req.Host = ep.host
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Amz-Target", getItemsTarget)

	s := signer{
		accessKey: creds.AccessKey,
		secretKey: creds.SecretKey,
		region:    ep.region,
		service:   serviceName,
	}
	s.sign(req, body, c.now())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apierr.Retryable("getitems request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Retryable("read getitems response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp, respBody)
	}

	var parsed getItemsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apierr.Fatal("unparseable getitems response", "", err)
	}

	// Item-level errors reported alongside a 2xx envelope are logged and
	// skipped; they must not fail the batch.
	for _, itemErr := range parsed.Errors {
		slog.Warn("getitems item error",
			slog.String("code", itemErr.Code),
			slog.String("message", itemErr.Message),
		)
	}

	out := make([]models.ProductInfo, 0, len(parsed.ItemsResult.Items))
	for _, item := range parsed.ItemsResult.Items {
		info, ok := parseItem(item)
		if !ok {
			slog.Warn("skipping unparseable item", slog.String("asin", item.ASIN))
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// credentials lazily fetches and caches the four PA-API secrets. The fetch
// is batched and fails closed unless all four parameters resolve.
func (c *Client) credentials(ctx context.Context) (*Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds != nil {
		return c.creds, nil
	}

	names := c.params.list()
	values, err := c.provider.GetParameters(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("fetch PA-API credentials: %w", err)
	}
	for _, name := range names {
		if values[name] == "" {
			return nil, apierr.Authentication(
				fmt.Sprintf("missing PA-API credential parameter %s", name), "MissingCredential")
		}
	}

	c.creds = &Credentials{
		AccessKey:   values[c.params.AccessKey],
		SecretKey:   values[c.params.SecretKey],
		PartnerTag:  values[c.params.PartnerTag],
		Marketplace: values[c.params.Marketplace],
	}
	slog.Debug("PA-API credentials cached", slog.String("marketplace", c.creds.Marketplace))
	return c.creds, nil
}

func classifyStatus(resp *http.Response, body []byte) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		msg, code := upstreamError(body, "PA-API authentication failed")
		return apierr.Authentication(msg, code)
	case http.StatusTooManyRequests:
		var retryAfter time.Duration
		if header := resp.Header.Get("Retry-After"); header != "" {
			if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		msg, _ := upstreamError(body, "PA-API rate limit exceeded")
		return apierr.RateLimit(msg, retryAfter)
	case http.StatusNotFound:
		msg, code := upstreamError(body, "PA-API resource not found")
		return apierr.NotFound(msg, code)
	}

	msg, code := upstreamError(body, fmt.Sprintf("http status %d: %s", resp.StatusCode, resp.Status))
	if resp.StatusCode >= 500 {
		err := apierr.Retryable(msg, nil)
		err.Code = code
		err.StatusCode = resp.StatusCode
		return err
	}
	err := apierr.Fatal(msg, code, nil)
	err.StatusCode = resp.StatusCode
	return err
}

// upstreamError pulls code/message out of a PA-API error envelope when the
// body is parseable JSON, else falls back to the supplied default.
func upstreamError(body []byte, fallback string) (message, code string) {
	var envelope struct {
		Errors []responseError `json:"Errors"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Errors) > 0 {
		first := envelope.Errors[0]
		if first.Message != "" {
			return first.Message, first.Code
		}
	}
	return fallback, ""
}

func parseItem(item responseItem) (models.ProductInfo, bool) {
	if item.ASIN == "" {
		return models.ProductInfo{}, false
	}

	info := models.ProductInfo{
		ASIN:     strings.ToUpper(item.ASIN),
		Currency: "USD",
		Title:    item.ItemInfo.Title.DisplayValue,
	}

	// Image fallback: large, then medium, then small.
	switch {
	case item.Images.Primary.Large.URL != "":
		info.ImageURL = item.Images.Primary.Large.URL
	case item.Images.Primary.Medium.URL != "":
		info.ImageURL = item.Images.Primary.Medium.URL
	default:
		info.ImageURL = item.Images.Primary.Small.URL
	}

	if len(item.Offers.Listings) > 0 {
		listing := item.Offers.Listings[0]
		if listing.Price.DisplayAmount != "" || listing.Price.Amount > 0 {
			price := listing.Price.DisplayAmount
			if price == "" {
				price = strconv.FormatFloat(listing.Price.Amount, 'f', 2, 64)
			}
			info.Price = &price
		}
		if listing.Price.Currency != "" {
			info.Currency = listing.Price.Currency
		}
		info.Available = listing.Availability.Type == "Now"
	}

	return info, true
}
