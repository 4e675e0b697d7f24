package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/webhelpdesk/helpdesk/internal/model/speech"
	"github.com/webhelpdesk/helpdesk/pkg/utils"
)

const maxUploadBytes = 32 << 20

// SpeechService 抽象语音业务，便于测试与替换实现
type SpeechService interface {
	TranscribeAudio(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error)
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// Handler 语音服务的HTTP处理器
type Handler struct {
	speechSvc SpeechService
	locale    string
	logger    zerolog.Logger
}

// New 创建语音处理器
func New(speechSvc SpeechService, locale string, logger zerolog.Logger) *Handler {
	if locale == "" {
		locale = "en-US"
	}
	return &Handler{
		speechSvc: speechSvc,
		locale:    locale,
		logger:    logger,
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Post("/transcribe", h.handleTranscribe)
		speechRouter.Post("/synthesize", h.handleSynthesize)
		speechRouter.Get("/health", h.handleHealth)
	})
}

// handleTranscribe 处理 multipart 上传的音频
func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	language := r.FormValue("language")
	if language == "" {
		language = h.locale
	}

	format := r.FormValue("format")
	if format == "" {
		format = inferAudioFormat(header.Filename)
	}

	sampleRate, _ := strconv.Atoi(r.FormValue("sampleRate"))

	resp, err := h.speechSvc.TranscribeAudio(r.Context(), &speech.ASRRequest{
		SessionID:  r.FormValue("sessionId"),
		AudioData:  file,
		Format:     format,
		Language:   language,
		SampleRate: sampleRate,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("speech recognition failed")
		utils.RespondError(w, http.StatusBadGateway, "speech recognition failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

// handleSynthesize 返回音频二进制
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req speech.TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Language == "" {
		req.Language = h.locale
	}

	resp, err := h.speechSvc.SynthesizeSpeech(r.Context(), &req)
	if err != nil {
		h.logger.Error().Err(err).Msg("speech synthesis failed")
		utils.RespondError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	format := resp.Format
	if format == "" {
		format = "mpeg"
	}
	if format == "mp3" {
		format = "mpeg"
	}
	w.Header().Set("Content-Type", "audio/"+format)
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.AudioData)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.AudioData); err != nil {
		h.logger.Warn().Err(err).Msg("failed to write audio response")
	}
}

// handleHealth 健康检查端点
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	if probe, ok := h.speechSvc.(interface{ Available() bool }); ok && !probe.Available() {
		status = "unconfigured"
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"service": "speech",
	})
}

// inferAudioFormat 从文件名推断音频格式
func inferAudioFormat(filename string) string {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".mp3", ".wav", ".ogg", ".pcm":
		return strings.TrimPrefix(ext, ".")
	case ".opus":
		return "ogg"
	default:
		return "wav"
	}
}
