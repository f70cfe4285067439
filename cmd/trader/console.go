package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/assist-by/chartdesk/internal/desk"
	"github.com/assist-by/chartdesk/internal/domain"
)

// consoleDisplay는 터미널에 이벤트를 출력합니다
// 가격과 호가는 잦으므로 view 명령으로만 보여 줍니다
type consoleDisplay struct {
	mu         sync.Mutex
	out        io.Writer
	lastCandle time.Time
}

func newConsoleDisplay(out io.Writer) *consoleDisplay {
	return &consoleDisplay{out: out}
}

func (c *consoleDisplay) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *consoleDisplay) ShowCandles(sel domain.Selection, candles domain.CandleList) {
	last, ok := candles.GetLastCandle()
	if !ok || last.OpenTime.Equal(c.lastCandle) {
		return
	}
	c.lastCandle = last.OpenTime
	c.printf("📊 %s %s 새 캔들 %s O:%.4f H:%.4f L:%.4f C:%.4f (%d개)",
		sel.Symbol, sel.Interval, last.OpenTime.Format("01-02 15:04"),
		last.Open, last.High, last.Low, last.Close, len(candles))
}

func (c *consoleDisplay) ShowOrderBook(domain.OrderBook) {}

func (c *consoleDisplay) ShowPrice(domain.PriceTick) {}

func (c *consoleDisplay) ShowAccount(domain.AccountSnapshot) {}

func (c *consoleDisplay) ShowReady(symbol string) {
	c.printf("🟢 %s 실시간 가격 수신 시작", symbol)
}

func (c *consoleDisplay) ShowOrderResult(res domain.OrderResult) {
	if !res.Accepted {
		c.printf("❌ %s %s 주문 실패: %s", res.Symbol, res.Side, res.Error)
		return
	}
	c.printf("✅ %s %s 주문 접수 (ID: %s) 수량 %s TP %s SL %s",
		res.Symbol, res.Side, res.OrderID, res.Quantity, res.TakeProfit, res.StopLoss)
}

func (c *consoleDisplay) ShowError(source string, err error) {
	c.printf("⚠️ [%s] %v", source, err)
}

// printView는 데스크 상태를 요약해 출력합니다
func printView(out io.Writer, v desk.View) {
	fmt.Fprintf(out, "── %s / %s (v%d) 활성: %t 준비: %t\n",
		v.Selection.Symbol, v.Selection.Interval, v.Selection.Version, v.Active, v.Ready)
	if v.HasPrice {
		fmt.Fprintf(out, "마크 가격: %.4f (%s)\n", v.Price.MarkPrice, v.Price.ObservedAt.Format("15:04:05"))
	}
	if last, ok := v.Candles.GetLastCandle(); ok {
		fmt.Fprintf(out, "캔들 %d개, 마지막 종가 %.4f\n", len(v.Candles), last.Close)
	}
	if len(v.OrderBook.Asks) > 0 && len(v.OrderBook.Bids) > 0 {
		fmt.Fprintf(out, "호가: 매도 %.4f / 매수 %.4f\n", v.OrderBook.Asks[0].Price, v.OrderBook.Bids[0].Price)
	}
	fmt.Fprintf(out, "잔고: %.2f USDT, 포지션 %d개, 실현 손익 %.2f\n",
		v.Account.WalletBalance, len(v.Account.Positions), v.Account.ClosedPnL)
	for _, p := range v.Account.Positions {
		fmt.Fprintf(out, "  %s %s 수량 %.6f 진입가 %.4f 미실현 %.2f\n",
			p.Symbol, p.PositionSide, p.Quantity, p.EntryPrice, p.UnrealizedPnL)
	}
	for source, msg := range v.LastErrors {
		fmt.Fprintf(out, "  [%s] %s\n", source, msg)
	}
}

type commandName string

const (
	cmdSymbol   commandName = "symbol"
	cmdInterval commandName = "interval"
	cmdLong     commandName = "long"
	cmdShort    commandName = "short"
	cmdPause    commandName = "pause"
	cmdResume   commandName = "resume"
	cmdView     commandName = "view"
	cmdQuit     commandName = "quit"
)

type consoleCommand struct {
	name commandName
	arg  string
}

// parseCommand는 한 줄 입력을 명령으로 변환합니다
func parseCommand(line string) (consoleCommand, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return consoleCommand{}, fmt.Errorf("빈 명령")
	}

	name := commandName(strings.ToLower(fields[0]))
	switch name {
	case cmdSymbol, cmdInterval:
		if len(fields) != 2 {
			return consoleCommand{}, fmt.Errorf("사용법: %s <값>", name)
		}
		arg := fields[1]
		if name == cmdSymbol {
			arg = strings.ToUpper(arg)
		}
		return consoleCommand{name: name, arg: arg}, nil
	case cmdLong, cmdShort, cmdPause, cmdResume, cmdView, cmdQuit:
		return consoleCommand{name: name}, nil
	case "exit":
		return consoleCommand{name: cmdQuit}, nil
	default:
		return consoleCommand{}, fmt.Errorf("알 수 없는 명령: %s", fields[0])
	}
}

// runConsole은 quit 또는 입력 종료까지 명령을 처리합니다
func runConsole(ctx context.Context, in io.Reader, out io.Writer, d *desk.Desk) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(out, "명령: symbol X | interval N | long | short | pause | resume | view | quit")
	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return
		case line, ok = <-lines:
			if !ok {
				return
			}
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, err := parseCommand(line)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		if cmd.name == cmdQuit {
			return
		}
		if err := dispatch(d, cmd, out); err != nil {
			fmt.Fprintf(out, "명령 실패: %v\n", err)
		}
	}
}

func dispatch(d *desk.Desk, cmd consoleCommand, out io.Writer) error {
	switch cmd.name {
	case cmdSymbol:
		return d.SetSymbol(cmd.arg)
	case cmdInterval:
		return d.SetInterval(domain.TimeInterval(cmd.arg))
	case cmdLong:
		return d.PlaceOrder(domain.Buy)
	case cmdShort:
		return d.PlaceOrder(domain.Sell)
	case cmdPause:
		return d.SetActive(false)
	case cmdResume:
		return d.SetActive(true)
	case cmdView:
		printView(out, d.View())
	}
	return nil
}
