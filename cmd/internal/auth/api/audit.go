package authapi

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mladen081/u-m/cmd/internal/auth/session"
)

func (f *Facade) auditLoginFailed(ctx context.Context, username string, err error) {
	attrs := []slog.Attr{slog.String("username", username)}
	if ae, ok := session.AsAPIError(err); ok {
		attrs = append(attrs,
			slog.Int("status", ae.Status),
			slog.String("code", ae.Code),
			slog.String("request_id", ae.RequestID),
		)
		if ae.RetryAfter > 0 {
			attrs = append(attrs, slog.Int64("retry_after_s", int64(ae.RetryAfter/time.Second)))
		}
	} else {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	f.audit(ctx, slog.LevelWarn, "auth.login.failed", attrs...)
}

func (f *Facade) auditLoginSuccess(ctx context.Context, userID int64, username string) {
	f.audit(ctx, slog.LevelInfo, "auth.login.success",
		slog.Int64("user_id", userID),
		slog.String("username", username),
	)
}

func (f *Facade) auditRegistered(ctx context.Context, userID int64, username string) {
	f.audit(ctx, slog.LevelInfo, "auth.register.success",
		slog.Int64("user_id", userID),
		slog.String("username", username),
	)
}

func (f *Facade) auditLogout(ctx context.Context, userID int64, serverNotified bool) {
	f.audit(ctx, slog.LevelInfo, "auth.logout",
		slog.Int64("user_id", userID),
		slog.Bool("server_notified", serverNotified),
	)
}

func (f *Facade) auditPasswordReset(ctx context.Context, action string) {
	f.audit(ctx, slog.LevelInfo, action)
}

func (f *Facade) audit(ctx context.Context, level slog.Level, action string, attrs ...slog.Attr) {
	if f == nil || f.log == nil {
		return
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}
	attrs = append(attrs, slog.Bool("audit", true))
	f.log.LogAttrs(ctx, level, action, attrs...)
}
