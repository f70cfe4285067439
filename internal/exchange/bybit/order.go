package bybit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/assist-by/chartdesk/internal/domain"
)

// PlaceOrder는 새로운 주문을 생성합니다
// 익절/손절가는 0이 아닐 때만 포함되며 마크 가격 기준으로 발동합니다
func (c *Client) PlaceOrder(ctx context.Context, params domain.PlaceOrderParams) (domain.PlaceOrderResponse, error) {
	const endpoint = "/v5/order/create"

	orderType := params.Type
	if orderType == "" {
		orderType = domain.Market
	}

	body := map[string]string{
		"category":  categoryLinear,
		"symbol":    params.Symbol,
		"side":      string(params.Side),
		"orderType": string(orderType),
		"qty":       params.Quantity.StringFixed(int32(params.QtyDecimals)),
	}
	if !params.TakeProfit.IsZero() {
		body["takeProfit"] = params.TakeProfit.StringFixed(int32(params.PxDecimals))
		body["tpTriggerBy"] = "MarkPrice"
	}
	if !params.StopLoss.IsZero() {
		body["stopLoss"] = params.StopLoss.StringFixed(int32(params.PxDecimals))
		body["slTriggerBy"] = "MarkPrice"
	}
	if params.LinkID != "" {
		body["orderLinkId"] = params.LinkID
	}

	resp, err := c.doRequest(ctx, http.MethodPost, endpoint, nil, body, true)
	if err != nil {
		return domain.PlaceOrderResponse{}, fmt.Errorf("주문 실행 실패 [심볼: %s, 방향: %s, 수량: %s]: %w",
			params.Symbol, params.Side, body["qty"], err)
	}

	var result struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := decodeResult(endpoint, resp, &result); err != nil {
		return domain.PlaceOrderResponse{}, fmt.Errorf("주문 응답 파싱 실패: %w", err)
	}

	return domain.PlaceOrderResponse{
		OrderID: result.OrderID,
		LinkID:  result.OrderLinkID,
	}, nil
}

// SetMarginMode는 격리/교차 마진 모드와 레버리지를 함께 설정합니다
func (c *Client) SetMarginMode(ctx context.Context, symbol string, mode domain.MarginMode, leverage int) error {
	const endpoint = "/v5/position/switch-isolated"
	lev := strconv.Itoa(leverage)
	body := map[string]any{
		"category":     categoryLinear,
		"symbol":       symbol,
		"tradeMode":    mode.TradeMode(),
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}

	_, err := c.doRequest(ctx, http.MethodPost, endpoint, nil, body, true)
	if err != nil {
		// 이미 원하는 모드로 설정된 경우, 에러가 아님
		if isCode(err, codeMarginModeNotModified) {
			return nil
		}
		return fmt.Errorf("마진 모드 설정 실패: %w", err)
	}
	return nil
}

// SetLeverage는 레버리지를 설정합니다
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	const endpoint = "/v5/position/set-leverage"
	lev := strconv.Itoa(leverage)
	body := map[string]string{
		"category":     categoryLinear,
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}

	_, err := c.doRequest(ctx, http.MethodPost, endpoint, nil, body, true)
	if err != nil {
		if isCode(err, codeLeverageNotModified) {
			return nil
		}
		return fmt.Errorf("레버리지 설정 실패: %w", err)
	}
	return nil
}

func isCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
