package ask

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/webhelpdesk/helpdesk/internal/observability"
	"github.com/webhelpdesk/helpdesk/internal/resilience"
)

// FallbackAnswer 服务端没有给出有效 answer 时展示的固定回复。
const FallbackAnswer = "Sorry, I couldn't understand."

const maxResponseBytes = 1 << 20

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrMalformedBody = errors.New("malformed answer body")
)

// StatusError 表示问答服务返回了非 2xx 状态码。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ask service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("ask service returned status %d: %s", e.StatusCode, e.Body)
}

// Options configures Client.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
	HTTPClient    *http.Client
	Logger        *zerolog.Logger
}

// Client 调用远端问答服务的 POST /ask 接口。
type Client struct {
	endpoint   string
	httpClient *http.Client
	retry      *resilience.RetryConfig
	logger     zerolog.Logger
}

type askRequest struct {
	Question string `json:"question"`
}

// NewClient 创建问答客户端。
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("ask base url is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	attempts := opts.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	logger := observability.Component("ask")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Client{
		endpoint:   base + "/ask",
		httpClient: httpClient,
		retry: &resilience.RetryConfig{
			MaxAttempts:       attempts,
			InitialBackoff:    opts.RetryBackoff,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		logger: logger,
	}, nil
}

// Endpoint 返回完整的 /ask 地址。
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Ask 发送一个问题并返回答案。没有 answer 或 answer 为假值时返回 FallbackAnswer。
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	payload, err := json.Marshal(askRequest{Question: question})
	if err != nil {
		return "", fmt.Errorf("encode question: %w", err)
	}

	start := time.Now()
	var answer string
	err = resilience.Retry(ctx, func(ctx context.Context) error {
		var attemptErr error
		answer, attemptErr = c.post(ctx, payload)
		return attemptErr
	}, c.retry, isTransient)

	latency := time.Since(start)
	switch {
	case err != nil:
		observability.RecordQuestion(observability.StatusError, latency)
		c.logger.Warn().Err(err).Dur("latency", latency).Msg("ask request failed")
		return "", err
	case answer == FallbackAnswer:
		observability.RecordQuestion(observability.StatusFallback, latency)
	default:
		observability.RecordQuestion(observability.StatusSuccess, latency)
	}

	c.logger.Debug().Dur("latency", latency).Int("answer_len", len(answer)).Msg("ask request completed")
	return answer, nil
}

func (c *Client) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build ask request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send ask request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read ask response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if resp.StatusCode >= 500 {
			return "", resilience.NewRetryableError(statusErr)
		}
		return "", statusErr
	}

	return ParseAnswer(body)
}

// ParseAnswer 解析 /ask 响应体。
func ParseAnswer(body []byte) (string, error) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	object, ok := decoded.(map[string]any)
	if !ok {
		return FallbackAnswer, nil
	}

	value, ok := object["answer"]
	if !ok {
		return FallbackAnswer, nil
	}

	switch v := value.(type) {
	case nil:
		return FallbackAnswer, nil
	case string:
		if v == "" {
			return FallbackAnswer, nil
		}
		return v, nil
	case bool:
		if !v {
			return FallbackAnswer, nil
		}
		return "true", nil
	case float64:
		if v == 0 {
			return FallbackAnswer, nil
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		// 对象和数组都按 JSON 文本展示
		raw, err := json.Marshal(v)
		if err != nil {
			return FallbackAnswer, nil
		}
		return string(raw), nil
	}
}

func isTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && !resilience.IsRetryable(err) {
		return false
	}
	if errors.Is(err, ErrMalformedBody) {
		return false
	}
	return resilience.IsRetryableNetworkError(err)
}
