package errors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/jzx17/roundrobin/internal/logging"
	"github.com/jzx17/roundrobin/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorContext(t *testing.T) {
	testErr := errors.New("test error")
	errCtx := NewErrorContext(testErr, 3)

	assert.Equal(t, testErr, errCtx.Error)
	assert.Equal(t, 3, errCtx.WorkerID)
	assert.False(t, errCtx.Timestamp.IsZero())
	assert.Empty(t, errCtx.Metadata)
	assert.False(t, errCtx.IsPanic())
}

func TestErrorContext_IsPanic(t *testing.T) {
	err := types.NewSchedulerError("body", 1, errors.New("panic: boom")).
		WithContext("stack_trace", "goroutine 1")
	assert.True(t, NewErrorContext(err, 1).IsPanic())

	plain := types.NewSchedulerError("body", 1, errors.New("boom"))
	assert.False(t, NewErrorContext(plain, 1).IsPanic())
}

func TestFailFastHandler(t *testing.T) {
	handler := NewFailFastHandler()
	testErr := errors.New("test error")

	assert.Equal(t, PolicyFailFast, handler.Name())
	assert.True(t, handler.CanHandle(testErr))
	assert.Equal(t, testErr, handler.HandleError(context.Background(), NewErrorContext(testErr, 0)))
}

func TestContinueOnErrorHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLoggerWithWriter(slog.LevelDebug, "text", &buf)

	handler := NewContinueOnErrorHandler(&ContinueOnErrorConfig{LogErrors: true, Logger: logger})
	assert.Equal(t, PolicyContinue, handler.Name())

	err := handler.HandleError(context.Background(), NewErrorContext(errors.New("flaky"), 2))
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "ignoring task failure")
	assert.Contains(t, buf.String(), "worker=2")
}

func TestContinueOnErrorHandler_IgnoredErrors(t *testing.T) {
	retryable := errors.New("retryable")
	handler := NewContinueOnErrorHandler(&ContinueOnErrorConfig{
		IgnoredErrors: []error{retryable, nil},
	})

	wrapped := fmt.Errorf("call failed: %w", retryable)
	assert.True(t, handler.CanHandle(wrapped))
	assert.NoError(t, handler.HandleError(context.Background(), NewErrorContext(wrapped, 0)))

	other := errors.New("fatal")
	assert.False(t, handler.CanHandle(other))
	assert.Equal(t, other, handler.HandleError(context.Background(), NewErrorContext(other, 0)))

	handler.AddIgnoredError(other)
	handler.AddIgnoredError(nil)
	assert.True(t, handler.CanHandle(other))
}

func TestHandlerRegistry(t *testing.T) {
	registry := NewHandlerRegistry(nil)

	assert.Equal(t, []string{PolicyContinue, PolicyFailFast}, registry.ListHandlers())
	assert.Equal(t, PolicyContinue, registry.GetDefaultHandler().Name())

	handler, err := registry.GetHandler(PolicyFailFast)
	require.NoError(t, err)
	assert.Equal(t, PolicyFailFast, handler.Name())

	_, err = registry.GetHandler("retry")
	assert.ErrorIs(t, err, types.ErrInvalidConfig)

	assert.Error(t, registry.RegisterHandler(NewFailFastHandler()), "duplicate name")
	assert.Error(t, registry.RegisterHandler(nil))
	assert.Error(t, registry.SetDefaultHandler(nil))

	require.NoError(t, registry.SetDefaultHandler(handler))
	assert.Equal(t, PolicyFailFast, registry.GetDefaultHandler().Name())
}

func TestHandlerRegistry_BindError(t *testing.T) {
	registry := NewHandlerRegistry(nil)
	continueHandler, err := registry.GetHandler(PolicyContinue)
	require.NoError(t, err)

	assert.Error(t, registry.BindError(nil, PolicyFailFast))
	assert.Error(t, registry.BindError(types.ErrTaskComplete, "missing"))
	require.NoError(t, registry.BindError(types.ErrWorkerExited, PolicyFailFast))

	wrapped := fmt.Errorf("body: %w", types.ErrWorkerExited)
	assert.Equal(t, PolicyFailFast, registry.HandlerFor(wrapped, continueHandler).Name())
	assert.Equal(t, PolicyContinue, registry.HandlerFor(errors.New("other"), continueHandler).Name())
	assert.Equal(t, PolicyContinue, registry.HandlerFor(errors.New("other"), nil).Name())
}

func TestHandlerRegistry_Policy(t *testing.T) {
	registry := NewHandlerRegistry(nil)
	boom := errors.New("boom")

	tests := []struct {
		name      string
		policy    string
		expectErr error
	}{
		{name: "default continues", policy: "", expectErr: nil},
		{name: "continue", policy: PolicyContinue, expectErr: nil},
		{name: "fail fast", policy: PolicyFailFast, expectErr: boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handle, err := registry.Policy(tt.policy)
			require.NoError(t, err)
			assert.Equal(t, tt.expectErr, handle(1, boom))
		})
	}

	_, err := registry.Policy("abort")
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestHandlerRegistry_PolicyHonorsBindings(t *testing.T) {
	registry := NewHandlerRegistry(nil)
	fatal := errors.New("fatal")
	require.NoError(t, registry.BindError(fatal, PolicyFailFast))

	handle, err := registry.Policy(PolicyContinue)
	require.NoError(t, err)

	assert.NoError(t, handle(0, errors.New("transient")))
	assert.ErrorIs(t, handle(0, fmt.Errorf("wrapped: %w", fatal)), fatal)
}
