package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/webhelpdesk/helpdesk/internal/controller"
	speechmodel "github.com/webhelpdesk/helpdesk/internal/model/speech"
	chatservice "github.com/webhelpdesk/helpdesk/internal/service/chat"
)

type fakeAsker struct {
	answer string
	err    error
}

func (f *fakeAsker) Ask(_ context.Context, question string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.answer != "" {
		return f.answer, nil
	}
	return "echo: " + question, nil
}

type fakeSpeech struct {
	mu    sync.Mutex
	audio []byte
	text  string
}

func (f *fakeSpeech) Available() bool { return true }

func (f *fakeSpeech) TranscribeAudio(_ context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	data, _ := io.ReadAll(req.AudioData)
	f.mu.Lock()
	f.audio = data
	f.mu.Unlock()
	return &speechmodel.ASRResponse{SessionID: req.SessionID, Text: f.text}, nil
}

func (f *fakeSpeech) SynthesizeSpeech(_ context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	return &speechmodel.TTSResponse{SessionID: req.SessionID, AudioData: []byte("mp3:" + req.Text), Format: "mp3"}, nil
}

type envelope struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

func startServer(t *testing.T, asker controller.Asker, speech SpeechBackend, voice VoiceOptions) (*websocket.Conn, *chatservice.Service) {
	t.Helper()

	chatSvc := chatservice.NewService()
	handler := NewWebSocketHandler(chatSvc, asker, speech, voice, zerolog.Nop())

	r := chi.NewRouter()
	handler.RegisterWebSocketRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, chatSvc
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read err: %v", err)
	}
	return env
}

// readUntil 读取直到收到 n 条指定类型的消息。
func readUntil(t *testing.T, conn *websocket.Conn, msgType string, n int) []envelope {
	t.Helper()
	var matched []envelope
	for len(matched) < n {
		env := readEnvelope(t, conn)
		if env.Type == msgType {
			matched = append(matched, env)
		}
	}
	return matched
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	payload := map[string]any{"type": msgType}
	if data != nil {
		payload["data"] = data
	}
	if err := conn.WriteJSON(payload); err != nil {
		t.Fatalf("write err: %v", err)
	}
}

type readyData struct {
	SessionID    string `json:"sessionId"`
	VoiceInput   bool   `json:"voiceInput"`
	VoiceOutput  bool   `json:"voiceOutput"`
	MicLabel     string `json:"micLabel"`
	SpeakEnabled bool   `json:"speakEnabled"`
}

type messageData struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

func TestReadyWithoutSpeech(t *testing.T) {
	conn, chatSvc := startServer(t, &fakeAsker{}, nil, VoiceOptions{})

	env := readEnvelope(t, conn)
	if env.Type != "ready" {
		t.Fatalf("expected ready, got %s", env.Type)
	}

	var ready readyData
	if err := json.Unmarshal(env.Data, &ready); err != nil {
		t.Fatalf("decode ready: %v", err)
	}
	if ready.VoiceInput || ready.VoiceOutput {
		t.Fatalf("expected voice disabled, got %+v", ready)
	}
	if ready.MicLabel != controller.VoiceUnsupportedLabel {
		t.Fatalf("unexpected mic label %q", ready.MicLabel)
	}
	if _, err := chatSvc.GetSession(context.Background(), ready.SessionID); err != nil {
		t.Fatalf("session not registered: %v", err)
	}
}

func TestSendRendersQuestionAndAnswer(t *testing.T) {
	conn, chatSvc := startServer(t, &fakeAsker{answer: "Hello"}, nil, VoiceOptions{})
	ready := readEnvelope(t, conn)

	send(t, conn, "input", map[string]string{"text": "  hi there  "})
	send(t, conn, "send", nil)

	messages := readUntil(t, conn, "message", 2)

	var user, bot messageData
	_ = json.Unmarshal(messages[0].Data, &user)
	_ = json.Unmarshal(messages[1].Data, &bot)
	if user.Author != "user" || user.Text != "hi there" {
		t.Fatalf("unexpected user message %+v", user)
	}
	if bot.Author != "bot" || bot.Text != "Hello" {
		t.Fatalf("unexpected bot message %+v", bot)
	}

	transcript, err := chatSvc.LoadTranscript(context.Background(), ready.SessionID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(transcript) != 2 {
		t.Fatalf("expected 2 transcript entries, got %d", len(transcript))
	}
}

func TestSendFailureRendersErrorReply(t *testing.T) {
	conn, _ := startServer(t, &fakeAsker{err: errors.New("connection refused")}, nil, VoiceOptions{})
	readEnvelope(t, conn)

	send(t, conn, "send", map[string]string{"text": "hello"})

	messages := readUntil(t, conn, "message", 2)
	var bot messageData
	_ = json.Unmarshal(messages[1].Data, &bot)
	if bot.Text != controller.ErrorReply {
		t.Fatalf("expected error reply, got %q", bot.Text)
	}
	readUntil(t, conn, "error", 1)
}

func TestMicStartWithoutSpeechReportsError(t *testing.T) {
	conn, _ := startServer(t, &fakeAsker{}, nil, VoiceOptions{})
	readEnvelope(t, conn)

	send(t, conn, "mic_start", nil)

	env := readUntil(t, conn, "error", 1)[0]
	if !strings.Contains(string(env.Data), "not supported") {
		t.Fatalf("unexpected error payload %s", env.Data)
	}
}

func TestUnknownMessageType(t *testing.T) {
	conn, _ := startServer(t, &fakeAsker{}, nil, VoiceOptions{})
	readEnvelope(t, conn)

	send(t, conn, "bogus", nil)
	readUntil(t, conn, "error", 1)
}

func TestPushToTalkFlow(t *testing.T) {
	speech := &fakeSpeech{text: "reset my password"}
	conn, _ := startServer(t, &fakeAsker{answer: "Visit the account page."}, speech, VoiceOptions{SpeakDefault: true})

	var ready readyData
	_ = json.Unmarshal(readEnvelope(t, conn).Data, &ready)
	if !ready.VoiceInput || !ready.VoiceOutput || !ready.SpeakEnabled {
		t.Fatalf("expected voice enabled, got %+v", ready)
	}

	send(t, conn, "mic_start", nil)
	send(t, conn, "audio", map[string]any{"audioData": []byte{1, 0, 2, 0}, "format": "pcm"})
	send(t, conn, "mic_stop", nil)

	var input struct {
		Text string `json:"text"`
	}
	for {
		env := readUntil(t, conn, "input", 1)[0]
		_ = json.Unmarshal(env.Data, &input)
		if input.Text != "" {
			break
		}
	}
	if input.Text != "reset my password" {
		t.Fatalf("unexpected transcript %q", input.Text)
	}

	messages := readUntil(t, conn, "message", 2)
	var user messageData
	_ = json.Unmarshal(messages[0].Data, &user)
	if user.Text != "reset my password" {
		t.Fatalf("unexpected auto-sent message %+v", user)
	}

	speechEnv := readUntil(t, conn, "speech", 1)[0]
	var played struct {
		AudioData []byte `json:"audioData"`
		Format    string `json:"format"`
	}
	_ = json.Unmarshal(speechEnv.Data, &played)
	if string(played.AudioData) != "mp3:Visit the account page." || played.Format != "mp3" {
		t.Fatalf("unexpected speech payload %+v", played)
	}

	speech.mu.Lock()
	defer speech.mu.Unlock()
	if string(speech.audio) != string([]byte{1, 0, 2, 0}) {
		t.Fatalf("unexpected captured audio %v", speech.audio)
	}
}
