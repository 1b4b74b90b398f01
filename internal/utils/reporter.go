package utils

import (
	"context"
	"fmt"

	"github.com/rollbar/rollbar-go"
)

// Reporter forwards unexpected errors to an external tracker.
type Reporter interface {
	Report(ctx context.Context, err error, extras map[string]interface{})
	Close()
}

type nopReporter struct{}

func (nopReporter) Report(context.Context, error, map[string]interface{}) {}
func (nopReporter) Close()                                               {}

type rollbarReporter struct {
	logger Logger
}

// NewReporter returns a Rollbar backed reporter when token is set, a no-op one otherwise.
func NewReporter(token, environment, codeVersion string, logger Logger) Reporter {
	if token == "" {
		return nopReporter{}
	}
	rollbar.SetToken(token)
	rollbar.SetEnvironment(environment)
	if codeVersion != "" {
		rollbar.SetCodeVersion(codeVersion)
	}
	rollbar.SetServerRoot("github.com/SAP-F-2025/course-portal")
	return &rollbarReporter{logger: logger}
}

func (r *rollbarReporter) Report(ctx context.Context, err error, extras map[string]interface{}) {
	if err == nil {
		return
	}
	if extras == nil {
		extras = map[string]interface{}{}
	}
	rollbar.Error(err, extras)
	FromContext(ctx, r.logger).Debug("reported error", "error", err)
}

func (r *rollbarReporter) Close() {
	rollbar.Wait()
}

// PanicError converts a recovered value into an error.
func PanicError(v interface{}) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", v)
}
