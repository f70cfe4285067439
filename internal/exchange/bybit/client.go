// internal/exchange/bybit/client.go
package bybit

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/assist-by/chartdesk/internal/domain"
)

const (
	mainnetURL = "https://api.bybit.com"
	testnetURL = "https://api-testnet.bybit.com"

	categoryLinear = "linear"
)

// 변경 사항이 없을 때 바이비트가 돌려주는 코드로, 에러로 취급하지 않습니다
const (
	codeLeverageNotModified   = 110043
	codeMarginModeNotModified = 110026
)

// APIError는 응답 봉투의 retCode가 0이 아닐 때 반환됩니다
type APIError struct {
	Code     int
	Message  string
	Endpoint string
}

// Error는 error 인터페이스를 구현합니다
func (e *APIError) Error() string {
	return fmt.Sprintf("API 에러(코드: %d, %s): %s", e.Code, e.Endpoint, e.Message)
}

// Client는 바이비트 v5 API 클라이언트를 구현합니다
type Client struct {
	apiKey           string
	secretKey        string
	baseURL          string
	recvWindow       string
	httpClient       *http.Client
	serverTimeOffset int64 // 서버 시간과의 차이를 저장
	mu               sync.RWMutex
}

// ClientOption은 클라이언트 생성 옵션을 정의합니다
type ClientOption func(*Client)

// WithTimeout은 HTTP 클라이언트의 타임아웃을 설정합니다
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithBaseURL은 기본 URL을 설정합니다
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithTestnet은 테스트넷 사용 여부를 설정합니다
func WithTestnet(useTestnet bool) ClientOption {
	return func(c *Client) {
		if useTestnet {
			c.baseURL = testnetURL
		} else {
			c.baseURL = mainnetURL
		}
	}
}

// WithRecvWindow는 서명 요청의 허용 시간 창(ms)을 설정합니다
func WithRecvWindow(ms int) ClientOption {
	return func(c *Client) {
		if ms > 0 {
			c.recvWindow = strconv.Itoa(ms)
		}
	}
}

// WithHTTPClient는 HTTP 클라이언트를 교체합니다
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient는 새로운 바이비트 API 클라이언트를 생성합니다
func NewClient(apiKey, secretKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    mainnetURL,
		recvWindow: "5000",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	// 옵션 적용
	for _, opt := range opts {
		opt(c)
	}

	return c
}

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

// doRequest는 HTTP 요청을 실행하고 봉투를 검증한 뒤 result 부분을 반환합니다
// GET은 쿼리 문자열, POST는 JSON 본문을 서명 대상으로 사용합니다
func (c *Client) doRequest(ctx context.Context, method, endpoint string, params url.Values, body any, needSign bool) (json.RawMessage, error) {
	if params == nil {
		params = url.Values{}
	}

	// URL 생성
	reqURL, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return nil, domain.NewError(domain.ErrDataUnavailable, "", endpoint, fmt.Errorf("URL 파싱 실패: %w", err))
	}
	query := params.Encode()
	reqURL.RawQuery = query

	payload := query
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("요청 본문 직렬화 실패: %w", err)
		}
		payload = string(raw)
		bodyReader = bytes.NewReader(raw)
	}

	// 요청 생성
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), bodyReader)
	if err != nil {
		return nil, domain.NewError(domain.ErrDataUnavailable, "", endpoint, fmt.Errorf("요청 생성 실패: %w", err))
	}

	// 헤더 설정
	req.Header.Set("Content-Type", "application/json")
	if needSign {
		timestamp := strconv.FormatInt(c.getServerTime(), 10)
		req.Header.Set("X-BAPI-API-KEY", c.apiKey)
		req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
		req.Header.Set("X-BAPI-RECV-WINDOW", c.recvWindow)
		req.Header.Set("X-BAPI-SIGN", c.sign(timestamp+c.apiKey+c.recvWindow+payload))
	}

	// 요청 실행
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.ErrDataUnavailable, "", endpoint, fmt.Errorf("API 요청 실패: %w", err))
	}
	defer resp.Body.Close()

	// 응답 읽기
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewError(domain.ErrDataUnavailable, "", endpoint, fmt.Errorf("응답 읽기 실패: %w", err))
	}

	// 상태 코드 확인
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewError(domain.ErrDataUnavailable, "", endpoint,
			fmt.Errorf("HTTP 에러(%d): %s", resp.StatusCode, truncate(respBody, 256)))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, domain.NewError(domain.ErrMalformedResponse, "", endpoint, fmt.Errorf("응답 봉투 파싱 실패: %w", err))
	}
	if env.RetCode != 0 {
		return nil, &APIError{Code: env.RetCode, Message: env.RetMsg, Endpoint: endpoint}
	}

	return env.Result, nil
}

// sign은 요청에 대한 서명을 생성합니다
func (c *Client) sign(payload string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// getServerTime은 현재 서버 시간을 반환합니다
func (c *Client) getServerTime() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().UnixMilli() + c.serverTimeOffset
}

// SyncTime은 바이비트 서버와 시간을 동기화합니다
func (c *Client) SyncTime(ctx context.Context) error {
	serverTime, err := c.GetServerTime(ctx)
	if err != nil {
		return fmt.Errorf("서버 시간 조회 실패: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverTimeOffset = serverTime.UnixMilli() - time.Now().UnixMilli()
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// decodeResult는 result를 구조체로 파싱하며 실패 시 ErrMalformedResponse로 분류합니다
func decodeResult(endpoint string, raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.NewError(domain.ErrMalformedResponse, "", endpoint, err)
	}
	return nil
}

// rawToString은 문자열 또는 숫자로 온 JSON 값을 문자열로 변환합니다
func rawToString(raw json.RawMessage) string {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
