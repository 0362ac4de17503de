// FILE: notify.go
// Package main – Best-effort operator notifications.
//
// One event is emitted per executed action (never for Hold). Delivery is
// fire-and-forget: failures are logged and never roll back a decision that
// already persisted. Two sinks are supported, both optional:
//   • Slack incoming webhook (SLACK_WEBHOOK)
//   • Telegram sendMessage (TELEGRAM_BOT_TOKEN + TELEGRAM_CHAT_ID)

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"
)

// notifyAction formats and fans out one executed decision.
func notifyAction(d *Decision) {
	msg := fmt.Sprintf("%s %s at %.2f qty=%.8f reason=%s regime=%s",
		d.Action.String(), d.TickTime.UTC().Format(time.RFC3339), d.Price, d.Quantity, d.ReasonCode, d.Regime)
	if d.Rationale != "" {
		msg += " | " + d.Rationale
	}
	postSlack(msg)
	postTelegram(msg)
}

// postSlack sends a best-effort Slack webhook message if SLACK_WEBHOOK is set.
func postSlack(msg string) {
	hook := getEnv("SLACK_WEBHOOK", "")
	if hook == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	body := map[string]string{"text": msg}
	bs, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, "POST", hook, bytes.NewReader(bs))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("[WARN] notify: slack: %v", err)
		return
	}
	resp.Body.Close()
}

// postTelegram sends the message through the Bot API if the token and chat
// id are both set.
func postTelegram(msg string) {
	token := getEnv("TELEGRAM_BOT_TOKEN", "")
	chatID := getEnv("TELEGRAM_CHAT_ID", "")
	if token == "" || chatID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", msg)
	endpoint := "https://api.telegram.org/bot" + token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("[WARN] notify: telegram: %v", err)
		return
	}
	resp.Body.Close()
}
