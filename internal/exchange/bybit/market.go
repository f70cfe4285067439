package bybit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/assist-by/chartdesk/internal/domain"
)

// GetServerTime은 서버 시간을 조회합니다
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	const endpoint = "/v5/market/time"
	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, nil, nil, false)
	if err != nil {
		return time.Time{}, err
	}

	var result struct {
		TimeSecond string `json:"timeSecond"`
		TimeNano   string `json:"timeNano"`
	}
	if err := decodeResult(endpoint, resp, &result); err != nil {
		return time.Time{}, err
	}

	nanos, err := strconv.ParseInt(result.TimeNano, 10, 64)
	if err != nil {
		return time.Time{}, domain.NewError(domain.ErrMalformedResponse, "", endpoint, fmt.Errorf("서버 시간 파싱 실패: %w", err))
	}
	return time.Unix(0, nanos), nil
}

// GetKlines는 캔들 데이터 원본 행을 조회합니다
// 바이비트는 최신 캔들부터 내림차순으로 반환합니다
func (c *Client) GetKlines(ctx context.Context, symbol string, interval domain.TimeInterval, limit int) ([]domain.KlineRow, error) {
	const endpoint = "/v5/market/kline"
	params := url.Values{}
	params.Add("category", categoryLinear)
	params.Add("symbol", symbol)
	params.Add("interval", string(interval))
	params.Add("limit", strconv.Itoa(limit))

	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, params, nil, false)
	if err != nil {
		return nil, err
	}

	var result struct {
		Symbol string              `json:"symbol"`
		List   [][]json.RawMessage `json:"list"`
	}
	if err := decodeResult(endpoint, resp, &result); err != nil {
		return nil, err
	}

	rows := make([]domain.KlineRow, len(result.List))
	for i, raw := range result.List {
		row := make(domain.KlineRow, len(raw))
		for j, field := range raw {
			row[j] = rawToString(field)
		}
		rows[i] = row
	}

	return rows, nil
}

// GetOrderBook은 호가 데이터를 조회합니다
func (c *Client) GetOrderBook(ctx context.Context, symbol string, depth int) (domain.RawOrderBook, error) {
	const endpoint = "/v5/market/orderbook"
	params := url.Values{}
	params.Add("category", categoryLinear)
	params.Add("symbol", symbol)
	params.Add("limit", strconv.Itoa(depth))

	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, params, nil, false)
	if err != nil {
		return domain.RawOrderBook{}, err
	}

	var result struct {
		Symbol string              `json:"s"`
		Asks   [][]json.RawMessage `json:"a"`
		Bids   [][]json.RawMessage `json:"b"`
		TS     int64               `json:"ts"`
	}
	if err := decodeResult(endpoint, resp, &result); err != nil {
		return domain.RawOrderBook{}, err
	}

	return domain.RawOrderBook{
		Symbol:    result.Symbol,
		Asks:      toBookRows(result.Asks),
		Bids:      toBookRows(result.Bids),
		Timestamp: result.TS,
	}, nil
}

func toBookRows(raw [][]json.RawMessage) []domain.BookRow {
	rows := make([]domain.BookRow, len(raw))
	for i, level := range raw {
		row := make(domain.BookRow, len(level))
		for j, field := range level {
			row[j] = rawToString(field)
		}
		rows[i] = row
	}
	return rows
}

type tickerItem struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	MarkPrice string `json:"markPrice"`
}

// GetTicker는 심볼의 티커(마크 가격 포함)를 조회합니다
func (c *Client) GetTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	const endpoint = "/v5/market/tickers"
	params := url.Values{}
	params.Add("category", categoryLinear)
	params.Add("symbol", symbol)

	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, params, nil, false)
	if err != nil {
		return domain.Ticker{}, err
	}

	var result struct {
		List []tickerItem `json:"list"`
	}
	if err := decodeResult(endpoint, resp, &result); err != nil {
		return domain.Ticker{}, err
	}
	if len(result.List) == 0 {
		return domain.Ticker{}, domain.NewError(domain.ErrDataUnavailable, symbol, endpoint, fmt.Errorf("티커 정보를 찾을 수 없음"))
	}

	t := result.List[0]
	return domain.Ticker{
		Symbol:    t.Symbol,
		MarkPrice: parseFloat(t.MarkPrice),
		LastPrice: parseFloat(t.LastPrice),
	}, nil
}

// GetSymbols는 USDT 무기한 선물 심볼 목록을 조회합니다 (USDC 마켓 제외)
func (c *Client) GetSymbols(ctx context.Context) ([]string, error) {
	const endpoint = "/v5/market/tickers"
	params := url.Values{}
	params.Add("category", categoryLinear)

	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, params, nil, false)
	if err != nil {
		return nil, fmt.Errorf("심볼 목록 조회 실패: %w", err)
	}

	var result struct {
		List []tickerItem `json:"list"`
	}
	if err := decodeResult(endpoint, resp, &result); err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(result.List))
	for _, t := range result.List {
		if strings.Contains(t.Symbol, "USDT") && !strings.Contains(t.Symbol, "USDC") {
			symbols = append(symbols, t.Symbol)
		}
	}
	return symbols, nil
}

// GetInstrumentInfo는 특정 심볼의 상품 정보를 조회합니다
func (c *Client) GetInstrumentInfo(ctx context.Context, symbol string) (domain.InstrumentInfo, error) {
	const endpoint = "/v5/market/instruments-info"
	params := url.Values{}
	params.Add("category", categoryLinear)
	params.Add("symbol", symbol)

	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, params, nil, false)
	if err != nil {
		return domain.InstrumentInfo{}, fmt.Errorf("심볼 정보 조회 실패: %w", err)
	}

	var result struct {
		List []struct {
			Symbol         string `json:"symbol"`
			Status         string `json:"status"`
			LeverageFilter struct {
				MaxLeverage string `json:"maxLeverage"`
			} `json:"leverageFilter"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
			LotSizeFilter struct {
				QtyStep     string `json:"qtyStep"`
				MinOrderQty string `json:"minOrderQty"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	}
	if err := decodeResult(endpoint, resp, &result); err != nil {
		return domain.InstrumentInfo{}, err
	}

	// 응답에 심볼 정보가 없는 경우
	if len(result.List) == 0 {
		return domain.InstrumentInfo{}, domain.NewError(domain.ErrMetadataUnavailable, symbol, endpoint,
			fmt.Errorf("심볼 정보를 찾을 수 없음: %s", symbol))
	}

	// 첫 번째(유일한) 심볼 정보 사용
	s := result.List[0]
	return domain.InstrumentInfo{
		Symbol:      s.Symbol,
		Status:      s.Status,
		TickSize:    s.PriceFilter.TickSize,
		QtyStep:     s.LotSizeFilter.QtyStep,
		MinOrderQty: s.LotSizeFilter.MinOrderQty,
		MaxLeverage: parseFloat(s.LeverageFilter.MaxLeverage),
	}, nil
}
