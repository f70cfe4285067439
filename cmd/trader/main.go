package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	osSignal "os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/assist-by/chartdesk/internal/config"
	"github.com/assist-by/chartdesk/internal/desk"
	"github.com/assist-by/chartdesk/internal/domain"
	eBybit "github.com/assist-by/chartdesk/internal/exchange/bybit"
	"github.com/assist-by/chartdesk/internal/exchange/exchangeobs"
	"github.com/assist-by/chartdesk/internal/instrument"
	"github.com/assist-by/chartdesk/internal/logger"
	"github.com/assist-by/chartdesk/internal/market"
	"github.com/assist-by/chartdesk/internal/metrics"
	"github.com/assist-by/chartdesk/internal/notification"
	"github.com/assist-by/chartdesk/internal/notification/discord"
	pBybit "github.com/assist-by/chartdesk/internal/position/bybit"
	"github.com/assist-by/chartdesk/internal/scheduler"
	"github.com/assist-by/chartdesk/internal/stream"
	"github.com/assist-by/chartdesk/internal/trace"
)

var version = "dev"

func main() {
	// 명령줄 플래그 정의
	longFlag := flag.Bool("long", false, "설정된 심볼로 롱 주문 한 번 실행 후 종료")
	shortFlag := flag.Bool("short", false, "설정된 심볼로 숏 주문 한 번 실행 후 종료")
	statusFlag := flag.Bool("status", false, "계좌 상태 출력 후 종료")
	symbolFlag := flag.String("symbol", "", "심볼 (SYMBOL 설정보다 우선)")
	intervalFlag := flag.String("interval", "", "차트 간격 (INTERVAL 설정보다 우선)")

	// 플래그 파싱
	flag.Parse()

	if err := run(*longFlag, *shortFlag, *statusFlag, *symbolFlag, *intervalFlag); err != nil {
		fmt.Fprintf(os.Stderr, "실행 실패: %v\n", err)
		os.Exit(1)
	}
}

func run(long, short, status bool, symbol, interval string) error {
	// 설정 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("설정 로드 실패: %w", err)
	}
	if symbol != "" {
		cfg.App.Symbol = symbol
	}
	if interval != "" {
		cfg.App.Interval = domain.TimeInterval(interval)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("설정값 검증 실패: %w", err)
	}

	// 로그 설정
	log, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		return fmt.Errorf("로거 생성 실패: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if err := trace.Init(cfg.App.TracingEnabled, version); err != nil {
		return fmt.Errorf("트레이싱 초기화 실패: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(ctx)
	}()

	if cfg.App.MetricsAddr != "" {
		srv := metrics.Serve(cfg.App.MetricsAddr)
		defer srv.Close()
		log.Info("지표 서버 시작", zap.String("addr", cfg.App.MetricsAddr))
	}

	// 컨텍스트 생성
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Discord 클라이언트 생성
	discordClient := discord.NewClient(
		cfg.Discord.TradeWebhook,
		cfg.Discord.ErrorWebhook,
		cfg.Discord.InfoWebhook,
		discord.WithTimeout(10*time.Second),
	)

	// 바이비트 클라이언트 생성
	bybitClient := eBybit.NewClient(
		cfg.Bybit.APIKey,
		cfg.Bybit.SecretKey,
		eBybit.WithTimeout(10*time.Second),
		eBybit.WithTestnet(cfg.Bybit.Testnet),
		eBybit.WithBaseURL(cfg.Bybit.BaseURL),
		eBybit.WithRecvWindow(cfg.Bybit.RecvWindow),
	)
	ex := exchangeobs.Wrap(bybitClient, log)

	// 바이비트 서버와 시간 동기화 (서명 요청에 필요)
	if err := ex.SyncTime(ctx); err != nil {
		if cfg.HasCredentials() {
			notifyError(log, discordClient, fmt.Errorf("바이비트 서버 시간 동기화 실패: %w", err))
			return err
		}
		log.Warn("바이비트 서버 시간 동기화 실패", zap.Error(err))
	}

	fetcherOpts := []market.Option{
		market.WithLogger(log),
		market.WithRetryConfig(market.RetryConfig{
			MaxRetries: 3,
			BaseDelay:  1 * time.Second,
			MaxDelay:   30 * time.Second,
			Factor:     2.0,
		}),
	}
	if cfg.HasCredentials() {
		fetcherOpts = append(fetcherOpts, market.WithAccount(ex))
	}
	fetcher := market.NewFetcher(ex, fetcherOpts...)
	resolver := instrument.NewResolver(ex, instrument.WithLogger(log))
	executor := pBybit.NewExecutor(ex, resolver, fetcher, pBybit.WithLogger(log))

	switch {
	case status:
		return runStatus(ctx, fetcher, resolver, cfg.App.Symbol)
	case long || short:
		side := domain.Buy
		if short {
			side = domain.Sell
		}
		return runSingleOrder(ctx, log, executor, discordClient, cfg, side)
	}

	return runDesk(ctx, cancel, log, cfg, fetcher, executor, discordClient)
}

// runDesk는 데스크와 콘솔 명령을 실행합니다
func runDesk(
	ctx context.Context,
	cancel context.CancelFunc,
	log *zap.Logger,
	cfg *config.Config,
	fetcher *market.Fetcher,
	executor *pBybit.Executor,
	notifier notification.Notifier,
) error {
	store := domain.NewSelectionStore(cfg.App.Symbol, cfg.App.Interval)
	sched := scheduler.NewScheduler(store, scheduler.WithLogger(log))

	if err := desk.RegisterStreams(sched, fetcher, desk.StreamConfig{
		CandleLimit:      cfg.App.CandleLimit,
		OrderBookDepth:   cfg.App.OrderBookDepth,
		ChartRefresh:     cfg.App.ChartRefresh,
		TickerRefresh:    cfg.App.TickerRefresh,
		OrderBookRefresh: cfg.App.OrderBookRefresh,
		AccountRefresh:   cfg.App.AccountRefresh,
		Timeout:          10 * time.Second,
		WithAccount:      cfg.HasCredentials(),
	}); err != nil {
		return fmt.Errorf("스트림 등록 실패: %w", err)
	}

	wsURL := cfg.Bybit.WSURL
	if cfg.Bybit.Testnet && wsURL == stream.DefaultURL {
		wsURL = stream.TestnetURL
	}
	prices := stream.NewManager(
		stream.WithURL(wsURL),
		stream.WithLogger(log),
		stream.WithGrace(cfg.App.ResubscribeGrace),
	)

	deskOpts := []desk.Option{
		desk.WithLogger(log),
		desk.WithNotifier(notifier),
	}
	if cfg.HasCredentials() {
		deskOpts = append(deskOpts, desk.WithExecutor(executor))
	} else {
		log.Warn("API 키가 없어 주문과 계좌 조회를 비활성화합니다")
	}

	d := desk.New(store, sched, prices, newConsoleDisplay(os.Stdout), desk.OrderConfig{
		NotionalUSDT:  cfg.Trading.OrderNotional,
		Leverage:      cfg.Trading.Leverage,
		MarginMode:    cfg.Trading.MarginMode,
		TakeProfitPct: cfg.Trading.TakeProfitPct,
		StopLossPct:   cfg.Trading.StopLossPct,
		Workers:       cfg.App.OrderWorkers,
	}, deskOpts...)

	// 시그널 처리
	sigChan := make(chan os.Signal, 1)
	osSignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer osSignal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("시스템 종료 신호 수신", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	go func() {
		runConsole(ctx, os.Stdin, os.Stdout, d)
		cancel()
	}()

	if err := notifier.SendInfo(fmt.Sprintf("🚀 차트 데스크 시작: %s / %s", cfg.App.Symbol, cfg.App.Interval)); err != nil {
		log.Warn("시작 알림 전송 실패", zap.Error(err))
	}

	log.Info("데스크 시작",
		zap.String("symbol", cfg.App.Symbol),
		zap.String("interval", string(cfg.App.Interval)),
		zap.Bool("testnet", cfg.Bybit.Testnet),
	)
	err := d.Run(ctx)

	if err := notifier.SendInfo("👋 차트 데스크가 정상적으로 종료되었습니다."); err != nil {
		log.Warn("종료 알림 전송 실패", zap.Error(err))
	}
	log.Info("프로그램을 종료합니다.")
	return err
}

// runStatus는 계좌와 심볼 정보를 출력합니다
func runStatus(ctx context.Context, fetcher *market.Fetcher, resolver *instrument.Resolver, symbol string) error {
	symbols, err := fetcher.Symbols(ctx)
	if err != nil {
		return fmt.Errorf("심볼 목록 조회 실패: %w", err)
	}
	fmt.Printf("USDT 무기한 심볼 %d개\n", len(symbols))

	prec, fallback := resolver.ResolveOrDefault(ctx, symbol)
	fmt.Printf("%s 가격 자릿수 %d, 수량 자릿수 %d, 최대 레버리지 %.0f (기본값 사용: %t)\n",
		symbol, prec.PricePrecision, prec.QtyPrecision, prec.MaxLeverage, fallback)

	acc, err := fetcher.FetchAccount(ctx)
	if err != nil {
		return fmt.Errorf("계좌 조회 실패: %w", err)
	}
	fmt.Printf("잔고: %.2f USDT, 최근 실현 손익 %.2f\n", acc.WalletBalance, acc.ClosedPnL)
	for _, p := range acc.Positions {
		fmt.Printf("  %s %s 수량 %.6f 진입가 %.4f 레버리지 %dx 미실현 %.2f\n",
			p.Symbol, p.PositionSide, p.Quantity, p.EntryPrice, p.Leverage, p.UnrealizedPnL)
	}
	return nil
}

// runSingleOrder는 주문 한 번을 실행하고 결과를 알립니다
func runSingleOrder(ctx context.Context, log *zap.Logger, executor *pBybit.Executor, notifier notification.Notifier, cfg *config.Config, side domain.OrderSide) error {
	if !cfg.HasCredentials() {
		return fmt.Errorf("주문에는 BYBIT_API_KEY와 BYBIT_SECRET_KEY가 필요합니다")
	}

	req := domain.OrderRequest{
		Symbol:        cfg.App.Symbol,
		Side:          side,
		NotionalUSDT:  cfg.Trading.OrderNotional,
		Leverage:      cfg.Trading.Leverage,
		MarginMode:    cfg.Trading.MarginMode,
		TakeProfitPct: cfg.Trading.TakeProfitPct,
		StopLossPct:   cfg.Trading.StopLossPct,
	}

	res, err := executor.Execute(ctx, req)
	if err != nil {
		notifyError(log, notifier, err)
		return err
	}

	if err := notifier.SendTradeInfo(notification.TradeInfoFrom(req, res)); err != nil {
		log.Warn("거래 정보 알림 전송 실패", zap.Error(err))
	}
	fmt.Printf("✅ %s %s 주문 접수 (ID: %s) 수량 %s TP %s SL %s\n",
		res.Symbol, res.Side, res.OrderID, res.Quantity, res.TakeProfit, res.StopLoss)
	return nil
}

func notifyError(log *zap.Logger, notifier notification.Notifier, err error) {
	log.Error("에러 발생", zap.Error(err))
	if sendErr := notifier.SendError(err); sendErr != nil {
		log.Warn("에러 알림 전송 실패", zap.Error(sendErr))
	}
}
