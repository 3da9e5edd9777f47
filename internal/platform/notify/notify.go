// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notify hands one-time codes to the mail delivery pipeline.

Delivery is fire-and-forget: a failure to enqueue is logged and never
surfaces to the credential flow that produced the code. Two transports exist:

  - [RedisNotifier]: appends to the mail outbox stream drained by the mailer.
  - [LogNotifier]: development fallback that only writes a log line.
*/
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/giftlist/internal/platform/ctxutil"
)

// Message kinds written to the outbox.
const (
	KindEmailVerification = "email_verification"
	KindPasswordReset     = "password_reset"
)

// enqueueTimeout bounds a single outbox write.
const enqueueTimeout = 2 * time.Second

// outboxMaxLen caps the stream length (approximate trimming).
const outboxMaxLen = 10000

// Notifier delivers one-time codes to a mailbox.
type Notifier interface {
	SendVerificationCode(context context.Context, email, code string)
	SendPasswordResetCode(context context.Context, email, code string)
}

// # Log Transport

// LogNotifier writes codes to the structured log. Codes appear only at debug level.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a LogNotifier writing to logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendVerificationCode implements [Notifier].
func (notifier *LogNotifier) SendVerificationCode(context context.Context, email, code string) {
	notifier.log(context, KindEmailVerification, email, code)
}

// SendPasswordResetCode implements [Notifier].
func (notifier *LogNotifier) SendPasswordResetCode(context context.Context, email, code string) {
	notifier.log(context, KindPasswordReset, email, code)
}

func (notifier *LogNotifier) log(context context.Context, kind, email, code string) {
	notifier.logger.InfoContext(context, "mail_logged",
		slog.String("kind", kind),
		slog.String("to", email),
	)
	notifier.logger.DebugContext(context, "mail_logged_code",
		slog.String("kind", kind),
		slog.String("code", code),
	)
}

// # Redis Transport

// StreamAdder is the subset of the go-redis client used by [RedisNotifier].
type StreamAdder interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// RedisNotifier appends messages to a Redis stream.
type RedisNotifier struct {
	client StreamAdder
	stream string
}

// NewRedisNotifier returns a notifier writing to stream.
func NewRedisNotifier(client StreamAdder, stream string) *RedisNotifier {
	return &RedisNotifier{client: client, stream: stream}
}

// SendVerificationCode implements [Notifier].
func (notifier *RedisNotifier) SendVerificationCode(context context.Context, email, code string) {
	notifier.enqueue(context, KindEmailVerification, email, code)
}

// SendPasswordResetCode implements [Notifier].
func (notifier *RedisNotifier) SendPasswordResetCode(context context.Context, email, code string) {
	notifier.enqueue(context, KindPasswordReset, email, code)
}

func (notifier *RedisNotifier) enqueue(ctx context.Context, kind, email, code string) {
	// Detach from the request so a client disconnect does not drop the mail.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()

	id, err := notifier.client.XAdd(writeCtx, &redis.XAddArgs{
		Stream: notifier.stream,
		MaxLen: outboxMaxLen,
		Approx: true,
		Values: map[string]any{
			"kind": kind,
			"to":   email,
			"code": code,
			"at":   time.Now().UTC().Format(time.RFC3339),
		},
	}).Result()

	logger := ctxutil.GetLogger(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "mail_enqueue_failed",
			slog.String("kind", kind),
			slog.Any("error", err),
		)
		return
	}

	logger.InfoContext(ctx, "mail_enqueued",
		slog.String("kind", kind),
		slog.String("stream_id", id),
	)
}
