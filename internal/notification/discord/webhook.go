package discord

import (
	"fmt"
	"time"

	"github.com/assist-by/chartdesk/internal/notification"
)

const footer = "Assist by Chart Desk 📈"

// SendError는 에러 알림을 전송합니다
func (c *Client) SendError(err error) error {
	embed := NewEmbed().
		SetTitle("에러 발생").
		SetDescription(fmt.Sprintf("```%v```", err)).
		SetColor(ColorError).
		SetFooter(footer).
		SetTimestamp(time.Now())

	return c.sendToWebhook(c.errorWebhook, WebhookMessage{
		Embeds: []Embed{*embed},
	})
}

// SendInfo는 일반 정보 알림을 전송합니다
// 정보 웹훅이 없으면 거래 웹훅으로 보냅니다
func (c *Client) SendInfo(message string) error {
	embed := NewEmbed().
		SetDescription(message).
		SetColor(ColorInfo).
		SetFooter(footer).
		SetTimestamp(time.Now())

	webhook := c.infoWebhook
	if webhook == "" {
		webhook = c.tradeWebhook
	}
	return c.sendToWebhook(webhook, WebhookMessage{
		Embeds: []Embed{*embed},
	})
}

// SendTradeInfo는 거래 실행 정보를 전송합니다
func (c *Client) SendTradeInfo(info notification.TradeInfo) error {
	embed := NewEmbed().
		SetTitle(fmt.Sprintf("거래 실행: %s", info.Symbol)).
		SetDescription(fmt.Sprintf(
			"**포지션**: %s\n**수량**: %s\n**기준가**: $%.2f\n**명목 가치**: %.2f USDT\n**레버리지**: %dx",
			info.PositionType, info.Quantity.String(), info.MarkPrice, info.Notional, info.Leverage,
		)).
		SetColor(notification.GetColorForPosition(info.PositionType)).
		SetFooter(footer).
		SetTimestamp(time.Now())

	if !info.TakeProfit.IsZero() {
		embed.AddField("목표가", "$"+info.TakeProfit.String(), true)
	}
	if !info.StopLoss.IsZero() {
		embed.AddField("손절가", "$"+info.StopLoss.String(), true)
	}
	if info.OrderID != "" {
		embed.AddField("주문 ID", info.OrderID, false)
	}

	return c.sendToWebhook(c.tradeWebhook, WebhookMessage{
		Embeds: []Embed{*embed},
	})
}
