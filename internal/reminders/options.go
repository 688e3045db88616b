package reminders

import (
	"time"

	"go.opentelemetry.io/otel"

	"github.com/wolfman30/homevisit-scheduler/internal/events"
	"github.com/wolfman30/homevisit-scheduler/internal/observability/metrics"
	"github.com/wolfman30/homevisit-scheduler/pkg/logging"
)

var remindersTracer = otel.Tracer("homevisit.internal.reminders")

// DefaultWindow is how far ahead reminders look.
const DefaultWindow = 3 * time.Hour

type options struct {
	logger    *logging.Logger
	publisher events.Publisher
	metrics   *metrics.SchedulingMetrics
	now       func() time.Time
	loc       *time.Location
	window    time.Duration
}

// Option customizes a Dispatcher, Rollover or Runner.
type Option func(*options)

func WithLogger(l *logging.Logger) Option { return func(o *options) { o.logger = l } }

func WithPublisher(p events.Publisher) Option { return func(o *options) { o.publisher = p } }

func WithMetrics(m *metrics.SchedulingMetrics) Option { return func(o *options) { o.metrics = m } }

func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithLocation sets the zone used for message timestamps and the daily
// rollover hour.
func WithLocation(loc *time.Location) Option { return func(o *options) { o.loc = loc } }

// WithWindow sets the dispatch look-ahead.
func WithWindow(d time.Duration) Option { return func(o *options) { o.window = d } }

func buildOptions(opts []Option) options {
	o := options{
		publisher: events.Nop{},
		now:       time.Now,
		loc:       time.UTC,
		window:    DefaultWindow,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	if o.publisher == nil {
		o.publisher = events.Nop{}
	}
	if o.loc == nil {
		o.loc = time.UTC
	}
	if o.window <= 0 {
		o.window = DefaultWindow
	}
	return o
}
