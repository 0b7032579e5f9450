package metrics

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

type applicationContextKey struct{}

// WithApplication returns a context whose custom metrics and events are
// reported to app. A nil app leaves the context untouched, making every
// recorder in this package a no-op.
func WithApplication(ctx context.Context, app *newrelic.Application) context.Context {
	if app == nil {
		return ctx
	}
	return context.WithValue(ctx, applicationContextKey{}, app)
}

// StartTransaction starts a New Relic transaction named name. The returned
// context carries the transaction, for TraceMethodCall, and the application,
// for the recorders. Without an app it returns ctx and a no-op end function.
func StartTransaction(ctx context.Context, app *newrelic.Application, name string) (context.Context, func()) {
	if app == nil {
		return ctx, func() {}
	}

	txn := app.StartTransaction(name)
	return WithApplication(newrelic.NewContext(ctx, txn), app), txn.End
}

func application(ctx context.Context) (*newrelic.Application, bool) {
	app, ok := ctx.Value(applicationContextKey{}).(*newrelic.Application)
	return app, ok
}

// RecordCount adds count to the custom metric metricName.
func RecordCount(ctx context.Context, metricName string, count uint64) {
	if app, ok := application(ctx); ok {
		app.RecordCustomMetric(metricName, float64(count))
	}
}

// RecordDuration records duration, in milliseconds, to the custom metric
// metricName.
func RecordDuration(ctx context.Context, metricName string, duration time.Duration) {
	if app, ok := application(ctx); ok {
		app.RecordCustomMetric(metricName, float64(duration)/float64(time.Millisecond))
	}
}

// RecordEvent records a custom event with the provided attributes.
func RecordEvent(ctx context.Context, eventName string, attributes map[string]interface{}) {
	if app, ok := application(ctx); ok {
		app.RecordCustomEvent(eventName, attributes)
	}
}
