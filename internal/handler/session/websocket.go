// Package session 把浏览器 WebSocket 连接绑定到一个聊天控制器。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/webhelpdesk/helpdesk/internal/controller"
	"github.com/webhelpdesk/helpdesk/internal/model/chat"
	"github.com/webhelpdesk/helpdesk/internal/observability"
	chatService "github.com/webhelpdesk/helpdesk/internal/service/chat"
	speechService "github.com/webhelpdesk/helpdesk/internal/service/speech"
)

const (
	writeWait    = 10 * time.Second
	readDeadline = 60 * time.Second
	pingInterval = 54 * time.Second
)

// SpeechBackend 会话使用的识别与合成能力。
type SpeechBackend interface {
	speechService.Transcriber
	speechService.Synthesizer
	Available() bool
}

// VoiceOptions 每个连接的语音参数。
type VoiceOptions struct {
	Locale       string
	SpeakDefault bool
	SampleRate   int
	VAD          speechService.VADConfig
	MaxRecording time.Duration
	TTSVoice     string
}

// WebSocketHandler 浏览器会话处理器
type WebSocketHandler struct {
	chatSvc  *chatService.Service
	asker    controller.Asker
	speech   SpeechBackend
	voice    VoiceOptions
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建会话处理器。speech 为 nil 时连接不具备语音能力。
func NewWebSocketHandler(chatSvc *chatService.Service, asker controller.Asker, speech SpeechBackend, voice VoiceOptions, logger zerolog.Logger) *WebSocketHandler {
	if voice.Locale == "" {
		voice.Locale = controller.DefaultLocale
	}
	if voice.SampleRate <= 0 {
		voice.SampleRate = 16000
	}
	return &WebSocketHandler{
		chatSvc: chatSvc,
		asker:   asker,
		speech:  speech,
		voice:   voice,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type textPayload struct {
	Text string `json:"text"`
}

type audioPayload struct {
	AudioData []byte `json:"audioData"`
	Format    string `json:"format"`
}

type speakPayload struct {
	Enabled bool `json:"enabled"`
}

// connection 串行化对同一个连接的写入。
type connection struct {
	conn      *websocket.Conn
	sessionID string
	logger    zerolog.Logger

	mu sync.Mutex
}

func (c *connection) send(msgType string, data any) error {
	msg := outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug().Err(err).Str("type", msgType).Msg("websocket write failed")
		return err
	}
	return nil
}

func (c *connection) sendError(message string) {
	_ = c.send("error", map[string]string{"message": message})
}

func (c *connection) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// view 把控制器的界面操作转成推送消息。
type view struct {
	conn *connection

	mu       sync.Mutex
	micLabel string
}

func (v *view) AppendMessage(msg chat.Message) {
	_ = v.conn.send("message", msg)
}

func (v *view) SetInput(text string) {
	_ = v.conn.send("input", textPayload{Text: text})
}

func (v *view) SetRecording(recording bool) {
	_ = v.conn.send("recording", map[string]bool{"active": recording})
}

// SetVoiceInput 只在控制器创建时调用，结果随 ready 消息下发。
func (v *view) SetVoiceInput(enabled bool, label string) {
	if enabled {
		label = ""
	}
	v.mu.Lock()
	v.micLabel = label
	v.mu.Unlock()
}

func (v *view) label() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.micLabel
}

// sink 把合成音频推给浏览器播放。
type sink struct {
	conn *connection
}

func (s *sink) Play(ctx context.Context, audio []byte, format string, sampleRate int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.conn.send("speech", map[string]any{
		"audioData":  audio,
		"format":     format,
		"sampleRate": sampleRate,
	})
}

func (s *sink) Stop() {
	_ = s.conn.send("speech_cancel", nil)
}

// handleWebSocket 每个连接一个会话和一个控制器。
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.chatSvc == nil || h.asker == nil {
		http.Error(w, "chat service unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := h.chatSvc.CreateSession(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("create session failed")
		return
	}
	defer func() {
		if err := h.chatSvc.CloseSession(context.Background(), session.ID); err != nil {
			h.logger.Debug().Err(err).Msg("close session failed")
		}
	}()

	logger := observability.WithSession(h.logger, session.ID)
	wsConn := &connection{conn: conn, sessionID: session.ID, logger: logger}
	ui := &view{conn: wsConn}

	var (
		rec     controller.Recognizer
		synth   controller.Synthesizer
		source  *speechService.ChunkSource
		speaker *speechService.Speaker
	)
	if h.speech != nil && h.speech.Available() {
		source = speechService.NewChunkSource("pcm", h.voice.SampleRate)
		rec = speechService.NewRecognizer(speechService.RecognizerOptions{
			Transcriber:  h.speech,
			Source:       source,
			VAD:          h.voice.VAD,
			MaxRecording: h.voice.MaxRecording,
			Logger:       &logger,
		})
		speaker = speechService.NewSpeaker(speechService.SpeakerOptions{
			Synthesizer: h.speech,
			Sink:        &sink{conn: wsConn},
			Voice:       h.voice.TTSVoice,
			Format:      "mp3",
			Logger:      &logger,
		})
		synth = speaker
	}

	ctrl, err := controller.New(controller.Options{
		View:         ui,
		Asker:        h.asker,
		Recognizer:   rec,
		Synthesizer:  synth,
		Capabilities: controller.Probe(rec, synth),
		Locale:       h.voice.Locale,
		SpeakEnabled: h.voice.SpeakDefault,
		Transcript:   session.Transcript(),
		Logger:       &logger,
	})
	if err != nil {
		logger.Error().Err(err).Msg("create controller failed")
		return
	}
	defer func() {
		ctrl.StopVoiceCapture()
		if speaker != nil {
			speaker.Cancel()
		}
	}()

	logger.Info().Msg("websocket session opened")
	defer logger.Info().Msg("websocket session closed")

	caps := ctrl.Capabilities()
	if err := wsConn.send("ready", map[string]any{
		"sessionId":    session.ID,
		"voiceInput":   caps.VoiceInput,
		"voiceOutput":  caps.VoiceOutput,
		"micLabel":     ui.label(),
		"speakEnabled": ctrl.SpeakEnabled(),
		"locale":       ctrl.Locale(),
	}); err != nil {
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	go h.pingLoop(ctx, wsConn)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))

		if msg.SessionID != "" && msg.SessionID != session.ID {
			wsConn.sendError("session mismatch")
			continue
		}

		h.handleMessage(ctx, wsConn, ctrl, source, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *connection, ctrl *controller.Controller, source *speechService.ChunkSource, msg *inboundMessage) {
	switch msg.Type {
	case "input":
		var payload textPayload
		if err := decodeData(msg.Data, &payload); err != nil {
			conn.sendError("invalid input payload")
			return
		}
		ctrl.UpdateInput(payload.Text)

	case "send":
		var payload textPayload
		if err := decodeData(msg.Data, &payload); err != nil {
			conn.sendError("invalid send payload")
			return
		}
		if payload.Text != "" {
			ctrl.UpdateInput(payload.Text)
		}
		// 请求期间继续读取，允许重叠发送
		go func() {
			if err := ctrl.HandleSend(ctx); err != nil && !errors.Is(err, context.Canceled) {
				conn.sendError(err.Error())
			}
		}()

	case "mic_start":
		if err := ctrl.StartVoiceCapture(ctx); err != nil {
			conn.sendError(err.Error())
		}

	case "mic_stop":
		ctrl.StopVoiceCapture()

	case "audio":
		if source == nil {
			return
		}
		var payload audioPayload
		if err := decodeData(msg.Data, &payload); err != nil {
			conn.sendError("invalid audio payload")
			return
		}
		if payload.Format != "" && payload.Format != source.Format() {
			conn.sendError("unsupported audio format: " + payload.Format)
			return
		}
		if !source.Push(payload.AudioData) && source.Capturing() {
			conn.logger.Debug().Int("bytes", len(payload.AudioData)).Msg("audio chunk dropped")
		}

	case "speak":
		var payload speakPayload
		if err := decodeData(msg.Data, &payload); err != nil {
			conn.sendError("invalid speak payload")
			return
		}
		ctrl.SetSpeakEnabled(payload.Enabled)

	default:
		conn.sendError("unsupported message type: " + msg.Type)
	}
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
