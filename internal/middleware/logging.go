// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// LogMiddleware logs each HTTP request handled by the host, including websocket
// upgrades. For upgraded requests the duration covers the whole peer session.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"peer":     r.URL.Query().Get("id"),
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Debug("HTTP request")
		})
	}
}

// LogWebSocketConnect logs a peer joining the hub.
func LogWebSocketConnect(logger *logrus.Logger, remoteAddr string, peerID string) {
	logger.WithFields(logrus.Fields{
		"remote": remoteAddr,
		"peer":   peerID,
	}).Info("peer connected")
}

// LogWebSocketDisconnect logs a peer leaving the hub. err is nil for a clean close.
func LogWebSocketDisconnect(logger *logrus.Logger, remoteAddr string, peerID string, err error) {
	fields := logrus.Fields{
		"remote": remoteAddr,
		"peer":   peerID,
	}
	if err != nil {
		fields["error"] = err
		logger.WithFields(fields).Warn("peer dropped")
		return
	}
	logger.WithFields(fields).Info("peer disconnected")
}
