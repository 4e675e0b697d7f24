package observability

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	loggerMu     sync.Mutex
	globalLogger zerolog.Logger
	initialized  bool
)

// InitLogger 初始化全局结构化日志，重复调用以最后一次为准。
func InitLogger(level string, pretty bool) {
	InitLoggerTo(os.Stdout, level, pretty)
}

// InitLoggerTo 与 InitLogger 相同，但允许指定输出位置（终端界面会把日志写到文件里）。
func InitLoggerTo(out io.Writer, level string, pretty bool) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	zerolog.SetGlobalLevel(ParseLevel(level))

	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	globalLogger = zerolog.New(out).With().Timestamp().Logger()
	log.Logger = globalLogger
	initialized = true
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// GetLogger 返回全局 logger，未初始化时使用默认配置。
func GetLogger() zerolog.Logger {
	loggerMu.Lock()
	if initialized {
		defer loggerMu.Unlock()
		return globalLogger
	}
	loggerMu.Unlock()

	InitLogger("info", false)
	return GetLogger()
}

// Component 返回带 component 字段的 logger。
func Component(name string) zerolog.Logger {
	return GetLogger().With().Str("component", name).Logger()
}

// WithSession 在 logger 上附加会话 ID；ID 为空时生成一个。
func WithSession(logger zerolog.Logger, sessionID string) zerolog.Logger {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	return logger.With().Str("session_id", sessionID).Logger()
}

// NewSessionID generates a new session identifier.
func NewSessionID() string {
	return uuid.New().String()
}
