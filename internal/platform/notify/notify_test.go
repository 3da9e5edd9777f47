// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/giftlist/internal/platform/ctxutil"
	"github.com/taibuivan/giftlist/internal/platform/notify"
)

type fakeStream struct {
	calls []*redis.XAddArgs
	err   error
}

func (stream *fakeStream) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	stream.calls = append(stream.calls, args)
	return redis.NewStringResult("1700000000000-0", stream.err)
}

/*
TestRedisNotifier_Enqueue verifies the outbox message shape.
*/
func TestRedisNotifier_Enqueue(t *testing.T) {
	stream := &fakeStream{}
	notifier := notify.NewRedisNotifier(stream, "mail:outbox")

	notifier.SendVerificationCode(context.Background(), "alice@example.com", "12345678")
	notifier.SendPasswordResetCode(context.Background(), "bob@example.com", "87654321")

	require.Len(t, stream.calls, 2)

	first := stream.calls[0]
	assert.Equal(t, "mail:outbox", first.Stream)
	values := first.Values.(map[string]any)
	assert.Equal(t, notify.KindEmailVerification, values["kind"])
	assert.Equal(t, "alice@example.com", values["to"])
	assert.Equal(t, "12345678", values["code"])

	second := stream.calls[1].Values.(map[string]any)
	assert.Equal(t, notify.KindPasswordReset, second["kind"])
}

/*
TestRedisNotifier_FailureIsLoggedOnly verifies that a broken outbox never
panics or propagates, and leaves a log line behind.
*/
func TestRedisNotifier_FailureIsLoggedOnly(t *testing.T) {
	var buffer bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buffer, nil))
	ctx := ctxutil.WithLogger(context.Background(), logger)

	stream := &fakeStream{err: errors.New("connection refused")}
	notify.NewRedisNotifier(stream, "mail:outbox").SendVerificationCode(ctx, "alice@example.com", "12345678")

	assert.Contains(t, buffer.String(), "mail_enqueue_failed")
}

/*
TestLogNotifier_HidesCodeAtInfo verifies codes are only logged at debug level.
*/
func TestLogNotifier_HidesCodeAtInfo(t *testing.T) {
	var buffer bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buffer, &slog.HandlerOptions{Level: slog.LevelInfo}))

	notify.NewLogNotifier(logger).SendPasswordResetCode(context.Background(), "alice@example.com", "12345678")

	assert.Contains(t, buffer.String(), "mail_logged")
	assert.NotContains(t, buffer.String(), "12345678")
}
