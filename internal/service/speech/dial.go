package speech

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	speechmodel "github.com/webhelpdesk/helpdesk/internal/model/speech"
	"github.com/webhelpdesk/helpdesk/internal/resilience"
)

// ErrNotConfigured 缺少语音凭证。
var ErrNotConfigured = errors.New("speech credentials are not configured")

type credentials struct {
	appID string
	token string
}

// resolveCredentials 返回规范化后的 AppID 与 AccessToken。
func resolveCredentials(cfg *speechmodel.SpeechConfig) (credentials, error) {
	if cfg == nil {
		return credentials{}, ErrNotConfigured
	}

	creds := credentials{
		appID: strings.TrimSpace(cfg.AppID),
		token: strings.TrimSpace(cfg.AccessToken),
	}
	if creds.token == "" {
		creds.token = strings.TrimSpace(cfg.APIKey)
	}
	if creds.appID == "" || creds.token == "" {
		return credentials{}, fmt.Errorf("%w: app id or access token missing", ErrNotConfigured)
	}
	return creds, nil
}

func (c credentials) header(resourceID, connectID string) http.Header {
	h := http.Header{}
	h.Set("X-Api-App-Key", c.appID)
	h.Set("X-Api-Access-Key", c.token)
	h.Set("X-Api-Resource-Id", resourceID)
	h.Set("X-Api-Connect-Id", connectID)
	return h
}

// wsDialer 建立到语音服务的 WebSocket 连接，握手失败时按配置重试。
type wsDialer struct {
	dialer *websocket.Dialer
	retry  *resilience.RetryConfig
	logger zerolog.Logger
}

func newWSDialer(cfg *speechmodel.SpeechConfig, logger zerolog.Logger) *wsDialer {
	timeout := 30 * time.Second
	attempts := 1
	if cfg != nil {
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
		if cfg.DialRetries > 0 {
			attempts += cfg.DialRetries
		}
	}

	return &wsDialer{
		dialer: &websocket.Dialer{HandshakeTimeout: timeout},
		retry: &resilience.RetryConfig{
			MaxAttempts:       attempts,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        3 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		logger: logger,
	}
}

func (d *wsDialer) dial(ctx context.Context, url string, header http.Header) (*websocket.Conn, error) {
	var conn *websocket.Conn
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		c, resp, err := d.dialer.DialContext(ctx, url, header)
		if err != nil {
			if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
				// 鉴权或参数错误，重试无意义
				return fmt.Errorf("handshake rejected with status %d: %w", resp.StatusCode, err)
			}
			return resilience.NewRetryableError(err)
		}
		if resp != nil {
			if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
				d.logger.Debug().Str("logid", logid).Str("url", url).Msg("speech websocket connected")
			}
		}
		conn = c
		return nil
	}, d.retry, resilience.IsRetryable)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

func writeFrame(conn *websocket.Conn, f *Frame) error {
	data, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}
