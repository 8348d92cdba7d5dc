package task

import (
	"sync"

	"EWI/internal/logger"
)

// Reporter receives the push-style progress protocol: one Start per task
// followed by zero or more Progress notifications.
type Reporter interface {
	Start(task string, total int, short, long string)
	Progress(task string, ticks int, message string)
}

// NopReporter discards all progress events.
type NopReporter struct{}

func (NopReporter) Start(string, int, string, string) {}
func (NopReporter) Progress(string, int, string)      {}

// LogReporter writes progress events to a logger.
type LogReporter struct {
	Log logger.Logger
}

// Start satisfies Reporter.
func (r LogReporter) Start(task string, total int, short, long string) {
	r.Log.Info("[%s] %s (%d ticks)", task, firstNonEmpty(long, short, task), total)
}

// Progress satisfies Reporter.
func (r LogReporter) Progress(task string, ticks int, message string) {
	if message == "" {
		return
	}
	r.Log.Debug("[%s] +%d %s", task, ticks, message)
}

// MultiReporter fans events out to several reporters.
type MultiReporter []Reporter

// Start satisfies Reporter.
func (m MultiReporter) Start(task string, total int, short, long string) {
	for _, r := range m {
		r.Start(task, total, short, long)
	}
}

// Progress satisfies Reporter.
func (m MultiReporter) Progress(task string, ticks int, message string) {
	for _, r := range m {
		r.Progress(task, ticks, message)
	}
}

// Event is one recorded progress notification.
type Event struct {
	Kind    string
	Task    string
	Ticks   int
	Message string
}

// Recorder keeps every event. It is used by tests and by the console host
// to total ticks per task.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Start satisfies Reporter.
func (r *Recorder) Start(task string, total int, short, long string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: "start", Task: task, Ticks: total, Message: firstNonEmpty(long, short)})
}

// Progress satisfies Reporter.
func (r *Recorder) Progress(task string, ticks int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: "progress", Task: task, Ticks: ticks, Message: message})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Started lists the tasks that received a start notification, in order.
func (r *Recorder) Started() []string {
	var out []string
	for _, e := range r.Events() {
		if e.Kind == "start" {
			out = append(out, e.Task)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
