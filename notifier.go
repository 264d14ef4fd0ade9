package goPortal

import (
	"context"

	"go.uber.org/zap"
)

// Severity grades a Notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Notification is a user-facing message such as a toast.
type Notification struct {
	Severity Severity
	Message  string
}

// Notifier shows notifications to the user. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Navigator moves the user interface to a path.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, path string)

func (f NavigatorFunc) Navigate(ctx context.Context, path string) { f(ctx, path) }

// logNotifier is the default Notifier of a headless Client.
type logNotifier struct {
	logger *zap.Logger
}

func (n logNotifier) Notify(_ context.Context, note Notification) {
	if note.Severity == SeverityError {
		n.logger.Warn("notification", zap.String("message", note.Message))
		return
	}
	n.logger.Info("notification",
		zap.String("severity", string(note.Severity)),
		zap.String("message", note.Message),
	)
}

// logNavigator is the default Navigator of a headless Client.
type logNavigator struct {
	logger *zap.Logger
}

func (n logNavigator) Navigate(_ context.Context, path string) {
	n.logger.Debug("navigate", zap.String("path", path))
}
