package bybit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/assist-by/chartdesk/internal/domain"
)

// GetBalance는 파생상품 계정의 USDT 잔고를 조회합니다
func (c *Client) GetBalance(ctx context.Context) (domain.Balance, error) {
	const endpoint = "/v5/account/wallet-balance"
	params := url.Values{}
	params.Add("accountType", "CONTRACT")
	params.Add("coin", "USDT")

	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, params, nil, true)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("잔고 조회 실패: %w", err)
	}

	var result struct {
		List []struct {
			Coin []struct {
				Coin                string `json:"coin"`
				WalletBalance       string `json:"walletBalance"`
				AvailableToWithdraw string `json:"availableToWithdraw"`
				UnrealisedPnl       string `json:"unrealisedPnl"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := decodeResult(endpoint, resp, &result); err != nil {
		return domain.Balance{}, err
	}
	if len(result.List) == 0 || len(result.List[0].Coin) == 0 {
		return domain.Balance{}, domain.NewError(domain.ErrDataUnavailable, "", endpoint, fmt.Errorf("USDT 잔고 정보가 없습니다"))
	}

	coin := result.List[0].Coin[0]
	return domain.Balance{
		Coin:             coin.Coin,
		WalletBalance:    parseFloat(coin.WalletBalance),
		Available:        parseFloat(coin.AvailableToWithdraw),
		UnrealizedProfit: parseFloat(coin.UnrealisedPnl),
	}, nil
}

// GetPositions는 현재 열린 포지션을 조회합니다
func (c *Client) GetPositions(ctx context.Context) ([]domain.Position, error) {
	const endpoint = "/v5/position/list"
	params := url.Values{}
	params.Add("category", categoryLinear)
	params.Add("settleCoin", "USDT")

	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, params, nil, true)
	if err != nil {
		return nil, fmt.Errorf("포지션 조회 실패: %w", err)
	}

	var result struct {
		List []struct {
			Symbol        string `json:"symbol"`
			Side          string `json:"side"`
			Size          string `json:"size"`
			AvgPrice      string `json:"avgPrice"`
			Leverage      string `json:"leverage"`
			MarkPrice     string `json:"markPrice"`
			UnrealisedPnl string `json:"unrealisedPnl"`
		} `json:"list"`
	}
	if err := decodeResult(endpoint, resp, &result); err != nil {
		return nil, err
	}

	// 활성 포지션만 필터링 (수량이 0이 아닌 포지션)
	var positions []domain.Position
	for _, p := range result.List {
		size := parseFloat(p.Size)
		if size == 0 {
			continue
		}
		side := domain.LongPosition
		if p.Side == string(domain.Sell) {
			side = domain.ShortPosition
		}
		leverage, _ := strconv.ParseFloat(p.Leverage, 64)
		positions = append(positions, domain.Position{
			Symbol:        p.Symbol,
			PositionSide:  side,
			Quantity:      size,
			EntryPrice:    parseFloat(p.AvgPrice),
			Leverage:      int(leverage),
			MarkPrice:     parseFloat(p.MarkPrice),
			UnrealizedPnL: parseFloat(p.UnrealisedPnl),
		})
	}

	return positions, nil
}

// GetClosedPnL은 최근 청산 손익 기록을 조회합니다
func (c *Client) GetClosedPnL(ctx context.Context, limit int) ([]domain.ClosedPnL, error) {
	const endpoint = "/v5/position/closed-pnl"
	params := url.Values{}
	params.Add("category", categoryLinear)
	params.Add("limit", strconv.Itoa(limit))

	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, params, nil, true)
	if err != nil {
		return nil, fmt.Errorf("청산 손익 조회 실패: %w", err)
	}

	var result struct {
		List []struct {
			Symbol      string `json:"symbol"`
			Side        string `json:"side"`
			ClosedPnl   string `json:"closedPnl"`
			UpdatedTime string `json:"updatedTime"`
		} `json:"list"`
	}
	if err := decodeResult(endpoint, resp, &result); err != nil {
		return nil, err
	}

	records := make([]domain.ClosedPnL, 0, len(result.List))
	for _, r := range result.List {
		updated, _ := strconv.ParseInt(r.UpdatedTime, 10, 64)
		records = append(records, domain.ClosedPnL{
			Symbol:    r.Symbol,
			Side:      domain.OrderSide(r.Side),
			ClosedPnL: parseFloat(r.ClosedPnl),
			UpdatedAt: updated,
		})
	}
	return records, nil
}
