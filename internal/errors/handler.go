// Package errors provides the error policies applied when a task body fails
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jzx17/roundrobin/internal/logging"
	"github.com/jzx17/roundrobin/pkg/types"
)

// Built-in policy names, as accepted by the error_policy setting
const (
	PolicyFailFast = "fail-fast"
	PolicyContinue = "continue"
)

// ErrorHandler decides what a task body failure means for its worker
type ErrorHandler interface {
	// HandleError returns nil to keep the worker running, or an error to make it exit
	HandleError(ctx context.Context, errCtx *ErrorContext) error

	// Name returns the name of the error handler
	Name() string

	// CanHandle determines if it can handle specific error
	CanHandle(err error) bool
}

// ErrorContext describes one task body failure
type ErrorContext struct {
	// Error that occurred
	Error error

	// WorkerID of the worker whose body failed
	WorkerID int

	// Timestamp when the error occurred
	Timestamp time.Time

	// Metadata contains additional metadata information
	Metadata map[string]interface{}
}

// NewErrorContext creates a new error context
func NewErrorContext(err error, workerID int) *ErrorContext {
	return &ErrorContext{
		Error:     err,
		WorkerID:  workerID,
		Timestamp: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
}

// IsPanic reports whether the failure came from a recovered panic
func (ec *ErrorContext) IsPanic() bool {
	var schedErr *types.SchedulerError
	if !stderrors.As(ec.Error, &schedErr) {
		return false
	}
	_, ok := schedErr.Context["stack_trace"]
	return ok
}

// FailFastHandler makes the worker exit on the first failure
type FailFastHandler struct{}

// NewFailFastHandler creates a new fail-fast handler
func NewFailFastHandler() *FailFastHandler {
	return &FailFastHandler{}
}

// HandleError returns the original error
func (h *FailFastHandler) HandleError(ctx context.Context, errCtx *ErrorContext) error {
	return errCtx.Error
}

func (h *FailFastHandler) Name() string {
	return PolicyFailFast
}

// CanHandle always returns true
func (h *FailFastHandler) CanHandle(err error) bool {
	return true
}

// ContinueOnErrorHandler logs failures and keeps the worker running
type ContinueOnErrorHandler struct {
	ignored   []error
	logErrors bool
	logger    *slog.Logger
	mu        sync.RWMutex
}

// ContinueOnErrorConfig contains configuration for continue-on-error handler
type ContinueOnErrorConfig struct {
	// IgnoredErrors restricts the handler to failures matching one of these (errors.Is)
	IgnoredErrors []error
	// LogErrors determines whether to log ignored errors
	LogErrors bool
	Logger    *slog.Logger
}

// NewContinueOnErrorHandler creates a continue-on-error handler
func NewContinueOnErrorHandler(config *ContinueOnErrorConfig) *ContinueOnErrorHandler {
	handler := &ContinueOnErrorHandler{
		logErrors: true,
		logger:    logging.Discard(),
	}

	if config != nil {
		handler.logErrors = config.LogErrors
		if config.Logger != nil {
			handler.logger = config.Logger
		}
		for _, err := range config.IgnoredErrors {
			if err != nil {
				handler.ignored = append(handler.ignored, err)
			}
		}
	}

	return handler
}

// HandleError swallows the error when it is ignorable
func (h *ContinueOnErrorHandler) HandleError(ctx context.Context, errCtx *ErrorContext) error {
	if !h.CanHandle(errCtx.Error) {
		return errCtx.Error
	}

	if h.logErrors {
		h.logger.LogAttrs(ctx, slog.LevelWarn, "ignoring task failure",
			slog.Int("worker", errCtx.WorkerID),
			slog.Bool("panic", errCtx.IsPanic()),
			slog.String("error", errCtx.Error.Error()))
	}
	return nil
}

func (h *ContinueOnErrorHandler) Name() string {
	return PolicyContinue
}

// CanHandle reports whether err is ignorable. With no configured errors every failure is.
func (h *ContinueOnErrorHandler) CanHandle(err error) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.ignored) == 0 {
		return true
	}
	for _, target := range h.ignored {
		if stderrors.Is(err, target) {
			return true
		}
	}
	return false
}

// AddIgnoredError adds an error to ignore
func (h *ContinueOnErrorHandler) AddIgnoredError(err error) {
	if err == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.ignored = append(h.ignored, err)
}

type binding struct {
	target  error
	handler ErrorHandler
}

// HandlerRegistry is a registry for error handlers
type HandlerRegistry struct {
	handlers       map[string]ErrorHandler
	bindings       []binding
	defaultHandler ErrorHandler
	mu             sync.RWMutex
}

// NewHandlerRegistry creates a registry holding the built-in policies. The continue policy
// logs through logger.
func NewHandlerRegistry(logger *slog.Logger) *HandlerRegistry {
	if logger == nil {
		logger = logging.Discard()
	}
	failFast := NewFailFastHandler()
	continueOnError := NewContinueOnErrorHandler(&ContinueOnErrorConfig{
		LogErrors: true,
		Logger:    logger.With("component", "error_policy"),
	})

	registry := &HandlerRegistry{
		handlers:       make(map[string]ErrorHandler),
		defaultHandler: continueOnError,
	}
	_ = registry.RegisterHandler(failFast)
	_ = registry.RegisterHandler(continueOnError)
	return registry
}

// RegisterHandler registers an error handler
func (r *HandlerRegistry) RegisterHandler(handler ErrorHandler) error {
	if handler == nil {
		return fmt.Errorf("cannot register nil handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := handler.Name()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler with name %s already exists", name)
	}
	r.handlers[name] = handler
	return nil
}

// GetHandler gets an error handler by name
func (r *HandlerRegistry) GetHandler(name string) (ErrorHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, exists := r.handlers[name]
	if !exists {
		return nil, fmt.Errorf("%w: unknown error policy %q", types.ErrInvalidConfig, name)
	}
	return handler, nil
}

// SetDefaultHandler sets the handler used when no name is given
func (r *HandlerRegistry) SetDefaultHandler(handler ErrorHandler) error {
	if handler == nil {
		return fmt.Errorf("cannot set nil as default handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultHandler = handler
	return nil
}

// GetDefaultHandler gets the default error handler
func (r *HandlerRegistry) GetDefaultHandler() ErrorHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultHandler
}

// BindError routes failures matching target (errors.Is) to the named handler, regardless
// of the selected policy
func (r *HandlerRegistry) BindError(target error, handlerName string) error {
	if target == nil {
		return fmt.Errorf("cannot bind nil error")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	handler, exists := r.handlers[handlerName]
	if !exists {
		return fmt.Errorf("handler with name %s not found", handlerName)
	}
	r.bindings = append(r.bindings, binding{target: target, handler: handler})
	return nil
}

// HandlerFor returns the bound handler for err, or fallback
func (r *HandlerRegistry) HandlerFor(err error, fallback ErrorHandler) ErrorHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.bindings {
		if stderrors.Is(err, b.target) {
			return b.handler
		}
	}
	if fallback != nil {
		return fallback
	}
	return r.defaultHandler
}

// ListHandlers lists all registered handler names in order
func (r *HandlerRegistry) ListHandlers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Policy resolves the named policy into the callback workers consult on failure. An empty
// name selects the default handler.
func (r *HandlerRegistry) Policy(name string) (types.ErrorHandler, error) {
	selected := r.GetDefaultHandler()
	if name != "" {
		handler, err := r.GetHandler(name)
		if err != nil {
			return nil, err
		}
		selected = handler
	}

	return func(workerID int, err error) error {
		errCtx := NewErrorContext(err, workerID)
		return r.HandlerFor(err, selected).HandleError(context.Background(), errCtx)
	}, nil
}
