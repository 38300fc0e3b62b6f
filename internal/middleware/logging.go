package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request through zap.  5xx responses are
// logged at error level, 4xx at warn, everything else at info.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			l := log.With(
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("user", userID(c)),
			)
			if v.RequestID != "" {
				l = l.With(zap.String("request_id", v.RequestID))
			}
			switch {
			case v.Status >= 500:
				l.Error("request", zap.Error(v.Error))
			case v.Status >= 400:
				l.Warn("request")
			default:
				l.Info("request")
			}
			return nil
		},
	})
}
