/*
Package push delivers "people are waiting" notifications through the Expo push API.

Tokens are sent in batches of at most 100, several batches at a time, behind a circuit
breaker so an Expo outage does not turn every join into a slow failing request. Ticket
results feed back into the token store: accepted tokens are marked as notified and
tokens Expo reports as unregistered are deleted. Failures are logged, never returned.
*/
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"strangerchat/internal/pkg/logx"
)

const (
	// MaxBatchSize is the largest number of messages Expo accepts per request.
	MaxBatchSize = 100

	defaultConcurrency = 4
	defaultTitle       = "Stranger Chat"

	errDeviceNotRegistered = "DeviceNotRegistered"
)

// Recorder receives the outcome of each push ticket.
type Recorder interface {
	MarkSent(ctx context.Context, tokens []string) error
	DeleteToken(ctx context.Context, token string) (bool, error)
}

// Config tunes the Expo client. Zero values select the defaults.
type Config struct {
	URL         string
	BatchSize   int
	Concurrency int
	Title       string
	HTTPClient  *http.Client
}

// Expo sends push notifications to Expo push tokens.
type Expo struct {
	url         string
	title       string
	batchSize   int
	concurrency int

	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	recorder Recorder
	logger   zerolog.Logger
}

type message struct {
	To        string      `json:"to"`
	Sound     string      `json:"sound"`
	Title     string      `json:"title"`
	Body      string      `json:"body"`
	Priority  string      `json:"priority"`
	ChannelID string      `json:"channelId"`
	Data      messageData `json:"data"`
}

type messageData struct {
	PoolSize int `json:"pool_size"`
}

type ticket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details"`
}

type sendResponse struct {
	Data []ticket `json:"data"`
}

// NewExpo creates a dispatcher that reports ticket outcomes to recorder.
func NewExpo(recorder Recorder, cfg Config) *Expo {
	if cfg.URL == "" {
		cfg.URL = "https://exp.host/--/api/v2/push/send"
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Title == "" {
		cfg.Title = defaultTitle
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	logger := logx.Component("push")

	return &Expo{
		url:         cfg.URL,
		title:       cfg.Title,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		client:      cfg.HTTPClient,
		recorder:    recorder,
		logger:      logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "expo-push",
			MaxRequests: 1,
			Timeout:     time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Push circuit breaker changed state.")
			},
		}),
	}
}

// IsExpoToken reports whether token looks like an Expo push token.
func IsExpoToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken") || strings.HasPrefix(token, "ExpoPushToken")
}

// Body is the notification text for poolSize waiting users.
func Body(poolSize int) string {
	if poolSize > 1 {
		return fmt.Sprintf("🔥 %d people are waiting to chat!", poolSize)
	}
	return "🔥 someone is waiting to chat!"
}

// Send notifies tokens that poolSize users are waiting. It blocks until every batch
// has been attempted; errors are logged.
func (e *Expo) Send(ctx context.Context, tokens []string, poolSize int) {
	body := Body(poolSize)

	messages := make([]message, 0, len(tokens))
	for _, t := range tokens {
		if !IsExpoToken(t) {
			e.logger.Debug().Str("token", t).Msg("Skipping non-Expo token.")
			continue
		}
		messages = append(messages, message{
			To:        t,
			Sound:     "default",
			Title:     e.title,
			Body:      body,
			Priority:  "high",
			ChannelID: "default",
			Data:      messageData{PoolSize: poolSize},
		})
	}
	if len(messages) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for start := 0; start < len(messages); start += e.batchSize {
		batch := messages[start:min(start+e.batchSize, len(messages))]
		g.Go(func() error {
			e.sendBatch(ctx, batch)
			return nil
		})
	}

	_ = g.Wait()
}

func (e *Expo) sendBatch(ctx context.Context, batch []message) {
	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.post(ctx, batch)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			e.logger.Warn().Int("batch", len(batch)).Msg("Push batch dropped: circuit breaker open.")
			return
		}
		e.logger.Error().Err(err).Int("batch", len(batch)).Msg("Push batch failed.")
		return
	}

	e.handleTickets(ctx, batch, result.([]ticket))
}

func (e *Expo) post(ctx context.Context, batch []message) ([]ticket, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	res, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("push API returned %d: %s", res.StatusCode, bytes.TrimSpace(snippet))
	}

	var decoded sendResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode push response: %w", err)
	}
	return decoded.Data, nil
}

// handleTickets matches tickets to the batch by position.
func (e *Expo) handleTickets(ctx context.Context, batch []message, tickets []ticket) {
	if len(tickets) != len(batch) {
		e.logger.Warn().Int("batch", len(batch)).Int("tickets", len(tickets)).Msg("Push ticket count mismatch.")
	}

	var (
		sent    []string
		invalid []string
	)
	for i, t := range tickets {
		if i >= len(batch) {
			break
		}
		token := batch[i].To

		switch t.Status {
		case "ok":
			sent = append(sent, token)
		case "error":
			e.logger.Warn().Str("token", token).Str("error", t.Details.Error).Str("message", t.Message).Msg("Push rejected.")
			if t.Details.Error == errDeviceNotRegistered {
				invalid = append(invalid, token)
			}
		}
	}

	if len(sent) > 0 {
		if err := e.recorder.MarkSent(ctx, sent); err != nil {
			e.logger.Error().Err(err).Int("tokens", len(sent)).Msg("Failed to record sent pushes.")
		}
	}

	for _, token := range invalid {
		if _, err := e.recorder.DeleteToken(ctx, token); err != nil {
			e.logger.Error().Err(err).Str("token", token).Msg("Failed to remove unregistered token.")
			continue
		}
		e.logger.Info().Str("token", token).Msg("Removed unregistered push token.")
	}

	e.logger.Info().Int("sent", len(sent)).Int("invalid", len(invalid)).Msg("Push batch delivered.")
}
