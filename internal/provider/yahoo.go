package provider

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stockwatch/internal/model"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// historyRange returns the pull window per interval. Weekly history pulls a
// slightly longer range to guarantee four years of coverage.
func historyRange(interval model.Interval) string {
	if interval == model.IntervalWeekly {
		return "5y"
	}
	return "4y"
}

// YahooClient fetches history and quotes from the Yahoo Finance chart API.
type YahooClient struct {
	rc *resty.Client
}

// YahooConfig configures the Yahoo client.
type YahooConfig struct {
	BaseURL string        // empty = public endpoint
	Timeout time.Duration // per-request timeout, 0 = 10s
}

// NewYahoo creates a Yahoo Finance client with retry on transient failures.
func NewYahoo(cfg YahooConfig) *YahooClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("User-Agent", "stockwatch/1.0").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() >= 500
		})
	return &YahooClient{rc: rc}
}

// chartResponse mirrors the v8 chart API payload, limited to what we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History fetches the price series for one symbol and interval.
func (y *YahooClient) History(ctx context.Context, symbol string, interval model.Interval) (model.Series, error) {
	sym := normalizeSymbol(symbol)
	if sym == "" {
		return model.Series{}, fmt.Errorf("symbol is required")
	}

	var body chartResponse
	resp, err := y.rc.R().
		SetContext(ctx).
		SetResult(&body).
		SetQueryParams(map[string]string{
			"interval": string(interval),
			"range":    historyRange(interval),
			"events":   "history",
		}).
		Get("/v8/finance/chart/" + sym)
	if err != nil {
		return model.Series{}, fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
	}
	if err := statusError(resp.StatusCode()); err != nil {
		return model.Series{}, err
	}
	if body.Chart.Error != nil {
		return model.Series{}, fmt.Errorf("%w: %s", model.ErrProviderUnavailable, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 {
		return model.NewSeries(sym, interval, nil), nil
	}

	result := body.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return model.NewSeries(sym, interval, nil), nil
	}
	quote := result.Indicators.Quote[0]

	points := make([]model.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closePx := deref(quote.Close, i)
		if closePx == 0 {
			// Bars with no close (holidays, partial data) are dropped.
			continue
		}
		points = append(points, model.PricePoint{
			TS:     time.Unix(ts, 0).UTC(),
			Open:   deref(quote.Open, i),
			High:   deref(quote.High, i),
			Low:    deref(quote.Low, i),
			Close:  closePx,
			Volume: deref(quote.Volume, i),
		})
	}
	return model.NewSeries(sym, interval, points), nil
}

// Quotes fetches the last price for each symbol via the chart meta block.
// Symbols that fail individually are skipped, not fatal for the batch.
func (y *YahooClient) Quotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(symbols))
	for _, raw := range symbols {
		sym := normalizeSymbol(raw)
		if sym == "" {
			continue
		}

		var body chartResponse
		resp, err := y.rc.R().
			SetContext(ctx).
			SetResult(&body).
			SetQueryParams(map[string]string{"interval": "1d", "range": "1d"}).
			Get("/v8/finance/chart/" + sym)
		if err != nil {
			return prices, fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
		}
		if err := statusError(resp.StatusCode()); err != nil {
			return prices, err
		}
		if body.Chart.Error != nil || len(body.Chart.Result) == 0 {
			log.Printf("[yahoo] no quote for %s", sym)
			continue
		}
		if p := body.Chart.Result[0].Meta.RegularMarketPrice; p > 0 {
			prices[sym] = p
		}
	}
	return prices, nil
}

func statusError(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return model.ErrRateLimited
	case code >= 400:
		return fmt.Errorf("%w: status %d", model.ErrProviderUnavailable, code)
	}
	return nil
}

func deref(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
