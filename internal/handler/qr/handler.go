// Package qr 提供页面地址的二维码，方便手机扫码打开。
package qr

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/webhelpdesk/helpdesk/pkg/utils"
)

const imageSize = 256

// Handler 二维码处理器
type Handler struct {
	url    string
	logger zerolog.Logger
}

// New 创建二维码处理器。publicURL 为空时使用本机局域网地址加监听端口。
func New(publicURL, listenAddr string, logger zerolog.Logger) *Handler {
	url := strings.TrimRight(strings.TrimSpace(publicURL), "/")
	if url == "" {
		url = LocalURL(listenAddr)
	}
	return &Handler{url: url, logger: logger}
}

// RegisterRoutes 注册二维码路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/qr", h.serve)
}

// URL 二维码中编码的地址。
func (h *Handler) URL() string {
	return h.url
}

func (h *Handler) serve(w http.ResponseWriter, _ *http.Request) {
	png, err := qrcode.Encode(h.url, qrcode.Medium, imageSize)
	if err != nil {
		h.logger.Error().Err(err).Str("url", h.url).Msg("encode qr code failed")
		utils.RespondError(w, http.StatusInternalServerError, "failed to generate qr code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// LocalURL 把监听地址转换成局域网内可访问的 URL。
func LocalURL(listenAddr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(listenAddr))
	if err != nil || port == "" {
		port = "8080"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = localIP()
	}
	return "http://" + net.JoinHostPort(host, port)
}

// localIP 通过 UDP "连接" 取出出口网卡地址，不会真正发包。
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && addr.IP != nil {
		return addr.IP.String()
	}
	return "127.0.0.1"
}
