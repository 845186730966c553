package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/f1re/watchdog/internal/logging"
	"github.com/f1re/watchdog/internal/types"
)

// ErrTelegramUnavailable is returned while the circuit breaker is open
var ErrTelegramUnavailable = errors.New("telegram unavailable (circuit open)")

// TelegramConfig configures the Telegram notifier
type TelegramConfig struct {
	BotToken string
	ChatID   string
	// APIURL defaults to https://api.telegram.org
	APIURL string
	// HTTPClient defaults to a client with a 30s timeout
	HTTPClient *http.Client
	// Limit and Burst throttle outgoing messages (default 1/s, burst 3)
	Limit rate.Limit
	Burst int
}

// sendMessageRequest is the Telegram sendMessage payload
type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

// apiResponse is the envelope of every Telegram Bot API reply
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Telegram posts reports to a chat through the Bot API
type Telegram struct {
	cfg     TelegramConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewTelegram creates a Telegram notifier
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram bot token and chat id are required")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.telegram.org"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Limit == 0 {
		cfg.Limit = rate.Every(time.Second)
	}
	if cfg.Burst == 0 {
		cfg.Burst = 3
	}

	log := logging.Component("telegram")
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "telegram",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("Telegram circuit breaker state changed")
		},
	})

	return &Telegram{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(cfg.Limit, cfg.Burst),
		breaker: breaker,
	}, nil
}

// Name implements Notifier
func (t *Telegram) Name() string {
	return "telegram"
}

// Send implements Notifier
func (t *Telegram) Send(ctx context.Context, r *types.RecoveryReport) error {
	return t.sendMessage(ctx, FormatHTML(r))
}

// Announce implements Announcer
func (t *Telegram) Announce(ctx context.Context, s Startup) error {
	return t.sendMessage(ctx, formatStartupHTML(s))
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit wait: %w", err)
	}

	_, err := t.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, t.post(ctx, text)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrTelegramUnavailable
	}
	return err
}

func (t *Telegram) post(ctx context.Context, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                t.cfg.ChatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.APIURL, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// the URL carries the bot token; keep it out of logs
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return fmt.Errorf("telegram returned HTTP %d: unparseable response", resp.StatusCode)
	}
	if !apiResp.OK {
		return fmt.Errorf("telegram error %d: %s", apiResp.ErrorCode, apiResp.Description)
	}
	return nil
}
