package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures the default slog logger and bridges the std log package to the same writer.
// format: text|json; level: debug|info|warn|error. A non-empty filePath enables rotation.
func Setup(level, format, filePath string) io.Closer {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if strings.TrimSpace(filePath) != "" {
		lj := &lumberjack.Logger{Filename: filePath, MaxSize: 50, MaxBackups: 5, MaxAge: 28, Compress: true}
		w, closer = lj, lj
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
		log.SetFlags(0)
	} else {
		h = slog.NewTextHandler(w, opts)
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}
	slog.SetDefault(slog.New(h))
	log.SetOutput(w)
	return closer
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// GinLogger writes one record per request, at a level chosen by the response status class.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		lvl := slog.LevelInfo
		switch {
		case status >= 500:
			lvl = slog.LevelError
		case status >= 400:
			lvl = slog.LevelWarn
		}
		slog.Log(c.Request.Context(), lvl, "http",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"dur_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP())
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
