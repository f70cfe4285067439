package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/assist-by/chartdesk/internal/domain"
)

type Config struct {
	// 바이비트 API 설정
	Bybit struct {
		APIKey     string `envconfig:"BYBIT_API_KEY"`
		SecretKey  string `envconfig:"BYBIT_SECRET_KEY"`
		Testnet    bool   `envconfig:"BYBIT_TESTNET" default:"false"`
		BaseURL    string `envconfig:"BYBIT_BASE_URL"`
		WSURL      string `envconfig:"BYBIT_WS_URL" default:"wss://stream.bybit.com/v5/public/linear"`
		RecvWindow int    `envconfig:"BYBIT_RECV_WINDOW" default:"5000"`
	}

	// 디스코드 웹훅 설정 (비어 있으면 전송하지 않음)
	Discord struct {
		TradeWebhook string `envconfig:"DISCORD_TRADE_WEBHOOK"`
		ErrorWebhook string `envconfig:"DISCORD_ERROR_WEBHOOK"`
		InfoWebhook  string `envconfig:"DISCORD_INFO_WEBHOOK"`
	}

	// 애플리케이션 설정
	App struct {
		Symbol           string              `envconfig:"SYMBOL" default:"BTCUSDT"`
		Interval         domain.TimeInterval `envconfig:"INTERVAL" default:"15"`
		CandleLimit      int                 `envconfig:"CANDLE_LIMIT" default:"50"`
		OrderBookDepth   int                 `envconfig:"ORDERBOOK_DEPTH" default:"25"`
		ChartRefresh     time.Duration       `envconfig:"CHART_REFRESH" default:"1s"`
		TickerRefresh    time.Duration       `envconfig:"TICKER_REFRESH" default:"5s"`
		OrderBookRefresh time.Duration       `envconfig:"ORDERBOOK_REFRESH" default:"500ms"`
		AccountRefresh   time.Duration       `envconfig:"ACCOUNT_REFRESH" default:"10s"`
		ResubscribeGrace time.Duration       `envconfig:"RESUBSCRIBE_GRACE" default:"500ms"`
		OrderWorkers     int                 `envconfig:"ORDER_WORKERS" default:"2"`
		MetricsAddr      string              `envconfig:"METRICS_ADDR"`
		LogLevel         string              `envconfig:"LOG_LEVEL" default:"info"`
		TracingEnabled   bool                `envconfig:"TRACING_ENABLED" default:"false"`
	}

	// 거래 설정
	Trading struct {
		Leverage      int               `envconfig:"LEVERAGE" default:"10"`
		MarginMode    domain.MarginMode `envconfig:"MARGIN_MODE" default:"isolated"`
		TakeProfitPct float64           `envconfig:"TAKE_PROFIT_PCT" default:"0.012"`
		StopLossPct   float64           `envconfig:"STOP_LOSS_PCT" default:"0.009"`
		OrderNotional float64           `envconfig:"ORDER_NOTIONAL" default:"50"`
	}
}

// HasCredentials는 서명 요청에 필요한 API 키가 있는지 확인합니다
func (c *Config) HasCredentials() bool {
	return c.Bybit.APIKey != "" && c.Bybit.SecretKey != ""
}

// ValidateConfig는 설정이 유효한지 확인합니다.
func ValidateConfig(cfg *Config) error {
	if cfg.Trading.Leverage < 1 || cfg.Trading.Leverage > 100 {
		return fmt.Errorf("레버리지는 1 이상 100 이하이어야 합니다")
	}

	if !cfg.Trading.MarginMode.Valid() {
		return fmt.Errorf("알 수 없는 MARGIN_MODE입니다: %q", cfg.Trading.MarginMode)
	}

	if cfg.Trading.TakeProfitPct < 0 || cfg.Trading.TakeProfitPct >= 1 {
		return fmt.Errorf("TAKE_PROFIT_PCT는 0 이상 1 미만이어야 합니다")
	}

	if cfg.Trading.StopLossPct < 0 || cfg.Trading.StopLossPct >= 1 {
		return fmt.Errorf("STOP_LOSS_PCT는 0 이상 1 미만이어야 합니다")
	}

	if cfg.Trading.OrderNotional <= 0 {
		return fmt.Errorf("ORDER_NOTIONAL은 0보다 커야 합니다")
	}

	if cfg.App.Symbol == "" {
		return fmt.Errorf("SYMBOL이 비어 있습니다")
	}

	if !cfg.App.Interval.Valid() {
		return fmt.Errorf("지원하지 않는 INTERVAL입니다: %q", cfg.App.Interval)
	}

	if cfg.App.CandleLimit < 1 || cfg.App.CandleLimit > 1000 {
		return fmt.Errorf("CANDLE_LIMIT은 1 이상 1000 이하이어야 합니다")
	}

	if cfg.App.OrderBookDepth < 1 || cfg.App.OrderBookDepth > 500 {
		return fmt.Errorf("ORDERBOOK_DEPTH는 1 이상 500 이하이어야 합니다")
	}

	refresh := map[string]time.Duration{
		"CHART_REFRESH":     cfg.App.ChartRefresh,
		"TICKER_REFRESH":    cfg.App.TickerRefresh,
		"ORDERBOOK_REFRESH": cfg.App.OrderBookRefresh,
		"ACCOUNT_REFRESH":   cfg.App.AccountRefresh,
	}
	for name, d := range refresh {
		if d <= 0 {
			return fmt.Errorf("%s는 0보다 커야 합니다", name)
		}
	}

	if cfg.App.ResubscribeGrace < 0 {
		return fmt.Errorf("RESUBSCRIBE_GRACE는 음수일 수 없습니다")
	}

	if cfg.App.OrderWorkers < 1 {
		return fmt.Errorf("ORDER_WORKERS는 1 이상이어야 합니다")
	}

	if cfg.Bybit.RecvWindow <= 0 {
		return fmt.Errorf("BYBIT_RECV_WINDOW는 0보다 커야 합니다")
	}

	return nil
}

// LoadConfig는 환경변수에서 설정을 로드합니다.
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (없으면 환경변수만 사용)
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env 파일 로드 실패: %w", err)
	}

	return load()
}

func load() (*Config, error) {
	var cfg Config
	// 환경변수를 구조체로 파싱
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("환경변수 처리 실패: %w", err)
	}

	// 설정값 검증
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("설정값 검증 실패: %w", err)
	}

	return &cfg, nil
}
