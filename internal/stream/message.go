package stream

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// 메시지 폐기 사유 (지표 라벨)
const (
	dropDecode      = "decode"
	dropEmpty       = "empty"
	dropNoSymbol    = "no_symbol"
	dropNoPrice     = "no_price"
	dropOtherSymbol = "other_symbol"
	dropStale       = "stale"
)

type envelope struct {
	Topic   string          `json:"topic"`
	Op      string          `json:"op"`
	Success *bool           `json:"success"`
	RetMsg  string          `json:"ret_msg"`
	Data    json.RawMessage `json:"data"`
}

type point struct {
	Symbol    string          `json:"symbol"`
	MarkPrice json.RawMessage `json:"markPrice"`
}

// subscribeRequest는 바이비트 구독 요청 메시지입니다
type subscribeRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

func topicFor(symbol string) string {
	return "tickers." + symbol
}

// decodePoints는 data 필드를 데이터 포인트 목록으로 변환합니다
// 바이비트 v5 티커는 객체 하나로 오므로 길이 1인 목록으로 취급합니다
func decodePoints(raw json.RawMessage) ([]point, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false
	}
	switch raw[0] {
	case '[':
		var pts []point
		if err := json.Unmarshal(raw, &pts); err != nil {
			return nil, false
		}
		return pts, true
	case '{':
		var p point
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, false
		}
		return []point{p}, true
	default:
		return nil, false
	}
}

// parsePrice는 문자열 또는 숫자로 온 가격을 변환합니다
func parsePrice(raw json.RawMessage) (float64, bool) {
	s := strings.Trim(string(bytes.TrimSpace(raw)), `"`)
	if s == "" || s == "null" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
