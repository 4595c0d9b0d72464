package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var ErrUnknownCurrency = errors.New("unknown currency")

// Conversion is an amount expressed in the target currency together with the
// rate used to produce it.
type Conversion struct {
	Amount int64 // Minor units of the target currency
	Rate   decimal.Decimal
}

type cachedRates struct {
	rates     map[string]decimal.Decimal
	fetchedAt time.Time
}

// Client converts amounts using an exchangerate-api compatible endpoint
// (GET {baseURL}/latest/{FROM}).
type Client struct {
	baseURL    string
	httpClient *http.Client
	ttl        time.Duration

	mu    sync.Mutex
	cache map[string]cachedRates
}

func NewClient(baseURL string, timeout, ttl time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		ttl:        ttl,
		cache:      make(map[string]cachedRates),
	}
}

// Convert converts amount from one currency to another, rounding to the
// nearest minor unit. Identical currencies convert at rate 1 without a lookup.
func (c *Client) Convert(ctx context.Context, amount int64, from, to string) (Conversion, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == "" || from == to {
		return Conversion{Amount: amount, Rate: decimal.NewFromInt(1)}, nil
	}

	rate, err := c.Rate(ctx, from, to)
	if err != nil {
		return Conversion{}, err
	}

	converted := decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()

	return Conversion{Amount: converted, Rate: rate}, nil
}

// Rate returns how many units of to one unit of from buys.
func (c *Client) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	rates, err := c.rates(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}

	rate, ok := rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}

	return rate, nil
}

func (c *Client) rates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	c.mu.Lock()
	cached, ok := c.cache[base]
	c.mu.Unlock()

	if ok && time.Since(cached.fetchedAt) < c.ttl {
		return cached.rates, nil
	}

	rates, err := c.fetch(ctx, base)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[base] = cachedRates{rates: rates, fetchedAt: time.Now()}
	c.mu.Unlock()

	return rates, nil
}

func (c *Client) fetch(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	endpoint := c.baseURL + "/latest/" + url.PathEscape(base)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building rate request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching rates for %s: %w", base, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCurrency, base)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetching rates for %s: unexpected status %d", base, resp.StatusCode)
	}

	var payload struct {
		Base  string                     `json:"base"`
		Rates map[string]decimal.Decimal `json:"rates"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding rates for %s: %w", base, err)
	}

	if len(payload.Rates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCurrency, base)
	}

	return payload.Rates, nil
}
