package openinterest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/raykavin/pumpwatch/core"
)

// Fetcher retrieves the current open interest of one symbol on one
// derivatives exchange.
type Fetcher interface {
	Platform() core.Platform
	OpenInterest(ctx context.Context, symbol string) (float64, error)
}

// ---------------------
// Binance
// ---------------------

// BinanceFetcher reads open interest from the USDⓈ-M futures REST API.
type BinanceFetcher struct {
	client *futures.Client
}

// NewBinanceFetcher creates a fetcher over the given futures client.
func NewBinanceFetcher(client *futures.Client) *BinanceFetcher {
	return &BinanceFetcher{client: client}
}

// Platform implements Fetcher.
func (f *BinanceFetcher) Platform() core.Platform {
	return core.PlatformBinance
}

// OpenInterest implements Fetcher.
func (f *BinanceFetcher) OpenInterest(ctx context.Context, symbol string) (float64, error) {
	result, err := f.client.NewGetOpenInterestService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance open interest for %s: %w", symbol, err)
	}

	value, err := strconv.ParseFloat(result.OpenInterest, 64)
	if err != nil {
		return 0, fmt.Errorf("binance open interest for %s: %w", symbol, err)
	}

	return value, nil
}

// ---------------------
// Bybit
// ---------------------

const bybitOpenInterestURL = "https://api.bybit.com/v5/market/open-interest"

// BybitFetcher reads open interest from the v5 market REST API.
type BybitFetcher struct {
	httpClient *http.Client
}

// NewBybitFetcher creates a fetcher with its own HTTP client.
func NewBybitFetcher() *BybitFetcher {
	return &BybitFetcher{httpClient: &http.Client{Timeout: 15 * time.Second}}
}

// Platform implements Fetcher.
func (f *BybitFetcher) Platform() core.Platform {
	return core.PlatformBybit
}

type bybitOpenInterestResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			OpenInterest string `json:"openInterest"`
			Timestamp    string `json:"timestamp"`
		} `json:"list"`
	} `json:"result"`
}

// OpenInterest implements Fetcher.
func (f *BybitFetcher) OpenInterest(ctx context.Context, symbol string) (float64, error) {
	url := fmt.Sprintf("%s?category=linear&symbol=%s&intervalTime=5min&limit=1", bybitOpenInterestURL, symbol)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	response, err := f.httpClient.Do(request)
	if err != nil {
		return 0, fmt.Errorf("bybit open interest for %s: %w", symbol, err)
	}
	defer response.Body.Close()

	var payload bybitOpenInterestResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("bybit open interest for %s: %w", symbol, err)
	}

	if payload.RetCode != 0 {
		return 0, fmt.Errorf("bybit open interest for %s: %s", symbol, payload.RetMsg)
	}
	if len(payload.Result.List) == 0 {
		return 0, fmt.Errorf("bybit open interest for %s: empty result", symbol)
	}

	value, err := strconv.ParseFloat(payload.Result.List[0].OpenInterest, 64)
	if err != nil {
		return 0, fmt.Errorf("bybit open interest for %s: %w", symbol, err)
	}

	return value, nil
}
