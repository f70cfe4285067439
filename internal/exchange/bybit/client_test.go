package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/chartdesk/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", "test-secret", WithBaseURL(srv.URL))
}

func writeEnvelope(w http.ResponseWriter, code int, msg string, result any) {
	raw, _ := json.Marshal(result)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"retCode": code,
		"retMsg":  msg,
		"result":  json.RawMessage(raw),
	})
}

func TestGetKlines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/kline", r.URL.Path)
		assert.Equal(t, "linear", r.URL.Query().Get("category"))
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "15", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Empty(t, r.Header.Get("X-BAPI-SIGN"))

		_, _ = io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"symbol":"BTCUSDT","list":[
			["1700000900000","101","102","100","101.5","12","1200"],
			[1700000000000,"100","101","99","100.5","10","1000"]]}}`)
	})

	rows, err := client.GetKlines(context.Background(), "BTCUSDT", domain.Interval15m, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.KlineRow{"1700000900000", "101", "102", "100", "101.5", "12", "1200"}, rows[0])
	// 숫자로 온 타임스탬프도 문자열로 변환
	assert.Equal(t, "1700000000000", rows[1][0])
}

func TestDoRequestErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "봉투 retCode 실패",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, 10001, "params error", map[string]any{})
			},
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, 10001, apiErr.Code)
				assert.Equal(t, "params error", apiErr.Message)
			},
		},
		{
			name: "HTTP 상태 코드 실패",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrDataUnavailable)
			},
		},
		{
			name: "잘못된 JSON",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `<html>`)
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrMalformedResponse)
			},
		},
		{
			name: "결과 스키마 불일치",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":"oops"}}`)
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrMalformedResponse)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			_, err := client.GetKlines(context.Background(), "BTCUSDT", domain.Interval15m, 10)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGetInstrumentInfo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/instruments-info", r.URL.Path)
		writeEnvelope(w, 0, "OK", map[string]any{
			"list": []map[string]any{{
				"symbol":         "BTCUSDT",
				"status":         "Trading",
				"leverageFilter": map[string]string{"maxLeverage": "100.00"},
				"priceFilter":    map[string]string{"tickSize": "0.10"},
				"lotSizeFilter":  map[string]string{"qtyStep": "0.001", "minOrderQty": "0.001"},
			}},
		})
	})

	info, err := client.GetInstrumentInfo(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "0.10", info.TickSize)
	assert.Equal(t, "0.001", info.QtyStep)
	assert.Equal(t, 100.0, info.MaxLeverage)
}

func TestGetInstrumentInfoUnknownSymbol(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, "OK", map[string]any{"list": []any{}})
	})

	_, err := client.GetInstrumentInfo(context.Background(), "NOPEUSDT")
	assert.ErrorIs(t, err, domain.ErrMetadataUnavailable)
}

func TestGetSymbolsFiltersUSDC(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, "OK", map[string]any{
			"list": []map[string]string{
				{"symbol": "BTCUSDT"}, {"symbol": "ETHPERP"}, {"symbol": "USDCUSDT"}, {"symbol": "XRPUSDT"},
			},
		})
	})

	symbols, err := client.GetSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "XRPUSDT"}, symbols)
}

func TestPlaceOrderSignsBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v5/order/create", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		ts := r.Header.Get("X-BAPI-TIMESTAMP")
		assert.Equal(t, "test-key", r.Header.Get("X-BAPI-API-KEY"))
		assert.Equal(t, "5000", r.Header.Get("X-BAPI-RECV-WINDOW"))

		mac := hmac.New(sha256.New, []byte("test-secret"))
		mac.Write([]byte(ts + "test-key" + "5000" + string(body)))
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), r.Header.Get("X-BAPI-SIGN"))

		var req map[string]string
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "Buy", req["side"])
		assert.Equal(t, "Market", req["orderType"])
		assert.Equal(t, "0.001", req["qty"])
		assert.Equal(t, "65780.12", req["takeProfit"])
		assert.Equal(t, "MarkPrice", req["tpTriggerBy"])
		_, hasSL := req["stopLoss"]
		assert.False(t, hasSL)

		writeEnvelope(w, 0, "OK", map[string]string{"orderId": "abc-1", "orderLinkId": req["orderLinkId"]})
	})

	resp, err := client.PlaceOrder(context.Background(), domain.PlaceOrderParams{
		Symbol:      "BTCUSDT",
		Side:        domain.Buy,
		Quantity:    decimal.RequireFromString("0.001"),
		TakeProfit:  decimal.RequireFromString("65780.12"),
		QtyDecimals: 3,
		PxDecimals:  2,
		LinkID:      "link-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc-1", resp.OrderID)
	assert.Equal(t, "link-1", resp.LinkID)
}

func TestSetLeverageNotModified(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v5/position/set-leverage":
			writeEnvelope(w, codeLeverageNotModified, "leverage not modified", map[string]any{})
		case "/v5/position/switch-isolated":
			writeEnvelope(w, 110001, "order not exists", map[string]any{})
		}
	})

	assert.NoError(t, client.SetLeverage(context.Background(), "BTCUSDT", 10))
	assert.Error(t, client.SetMarginMode(context.Background(), "BTCUSDT", domain.MarginIsolated, 10))
}

func TestGetBalanceSigned(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CONTRACT", r.URL.Query().Get("accountType"))
		assert.NotEmpty(t, r.Header.Get("X-BAPI-SIGN"))
		writeEnvelope(w, 0, "OK", map[string]any{
			"list": []map[string]any{{
				"coin": []map[string]string{{"coin": "USDT", "walletBalance": "123.45", "availableToWithdraw": "100"}},
			}},
		})
	})

	bal, err := client.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 123.45, bal.WalletBalance)
	assert.Equal(t, 100.0, bal.Available)
}
