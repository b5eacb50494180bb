package audit

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertLoginFailureSpike AlertType = "login_failure_spike"
	AlertBulkExport        AlertType = "bulk_export"
)

// Alert describes an anomaly that crossed its threshold.
type Alert struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Window    string    `json:"window"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is invoked for every alert, outside the detector's lock.
type AlertFunc func(Alert)

const (
	DefaultLoginFailureWindow    = time.Minute
	DefaultLoginFailureThreshold = 50
	DefaultExportWindow          = 5 * time.Minute
	DefaultExportThreshold       = 10
)

// slidingWindow counts events inside a trailing duration.
type slidingWindow struct {
	times     []time.Time
	window    time.Duration
	threshold int
}

// add records an event at now and reports the count when the threshold is
// reached, clearing the window so a single spike alerts once.
func (w *slidingWindow) add(now time.Time) (int, bool) {
	w.times = append(w.times, now)
	w.times = trimWindow(w.times, now, w.window)
	if len(w.times) < w.threshold {
		return 0, false
	}
	n := len(w.times)
	w.times = w.times[:0]
	return n, true
}

// Detector watches the audit stream for bursts of failed logins and
// exports.
type Detector struct {
	mu      sync.Mutex
	logins  slidingWindow
	exports slidingWindow
	alertFn AlertFunc
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithLoginFailureThreshold alerts after n LOGIN_FAILED records inside window.
func WithLoginFailureThreshold(n int, window time.Duration) DetectorOption {
	return func(d *Detector) {
		d.logins.threshold = n
		d.logins.window = window
	}
}

// WithExportThreshold alerts after n EXPORT records inside window.
func WithExportThreshold(n int, window time.Duration) DetectorOption {
	return func(d *Detector) {
		d.exports.threshold = n
		d.exports.window = window
	}
}

// OnAlert registers an extra callback for alerts.
func OnAlert(fn AlertFunc) DetectorOption {
	return func(d *Detector) { d.alertFn = fn }
}

// NewDetector returns a Detector with the default thresholds.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		logins:  slidingWindow{window: DefaultLoginFailureWindow, threshold: DefaultLoginFailureThreshold},
		exports: slidingWindow{window: DefaultExportWindow, threshold: DefaultExportThreshold},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Observe inspects one record and returns an alert when a threshold was
// crossed.
func (d *Detector) Observe(r Record) *Alert {
	if d == nil {
		return nil
	}

	var alert *Alert
	d.mu.Lock()
	switch r.Action {
	case ActionLoginFailed:
		if n, hit := d.logins.add(r.CreatedAt); hit {
			alert = &Alert{
				Type:      AlertLoginFailureSpike,
				Message:   "login failure rate exceeds threshold",
				Count:     n,
				Threshold: d.logins.threshold,
				Window:    d.logins.window.String(),
				Timestamp: r.CreatedAt,
			}
		}
	case ActionExport:
		if n, hit := d.exports.add(r.CreatedAt); hit {
			alert = &Alert{
				Type:      AlertBulkExport,
				Message:   "export rate exceeds threshold",
				Count:     n,
				Threshold: d.exports.threshold,
				Window:    d.exports.window.String(),
				Timestamp: r.CreatedAt,
			}
		}
	}
	fn := d.alertFn
	d.mu.Unlock()

	if alert != nil && fn != nil {
		fn(*alert)
	}
	return alert
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
