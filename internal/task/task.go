package task

import (
	"context"
	"reflect"
	"strings"

	"EWI/internal/env"
	"EWI/internal/fsys"
	"EWI/internal/logger"
	"EWI/internal/plugin"
	"EWI/internal/preserve"
	"EWI/internal/service"
	"EWI/internal/store"
)

// Task is one ordered, idempotent installation operation. Execute returns
// false or an error to abort the remaining sequence.
type Task interface {
	Name() string
	Ticks() int
	Execute(tc *Context) (bool, error)
}

// Describer is implemented by tasks that provide start descriptions.
type Describer interface {
	Describe() (short, long string)
}

// Func adapts a function to Task.
type Func struct {
	TaskName  string
	TaskTicks int
	Short     string
	Long      string
	Run       func(tc *Context) (bool, error)
}

// Name satisfies Task.
func (f Func) Name() string { return f.TaskName }

// Ticks satisfies Task.
func (f Func) Ticks() int { return f.TaskTicks }

// Execute satisfies Task.
func (f Func) Execute(tc *Context) (bool, error) { return f.Run(tc) }

// Describe satisfies Describer.
func (f Func) Describe() (string, string) { return f.Short, f.Long }

// NameOf derives a task name from its implementing type when Name is empty.
func NameOf(t Task) string {
	if n := t.Name(); n != "" {
		return n
	}
	typ := reflect.TypeOf(t)
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return strings.TrimSuffix(typ.Name(), "Task")
}

// Collaborators are the external systems tasks act on.
type Collaborators struct {
	FS        fsys.FileSystem
	Services  service.Manager
	Plugins   *plugin.Runner
	Preserver *preserve.Manager
	Variables env.Store
	Env       *env.Snapshot
	Registry  store.Registry
}

// Context is handed to every task. It carries the collaborators and the
// progress protocol for the task being executed.
type Context struct {
	context.Context
	Collaborators

	Log logger.Logger

	reporter Reporter
	task     string
	ticks    int
}

// Start re-declares the total tick budget and descriptions of the running task.
func (tc *Context) Start(total int, short, long string) {
	tc.ticks = total
	tc.reporter.Start(tc.task, total, short, long)
}

// Progress reports ticks consumed together with a display message.
func (tc *Context) Progress(ticks int, message string) {
	tc.reporter.Progress(tc.task, ticks, message)
}

// Message reports a message without consuming ticks.
func (tc *Context) Message(message string) {
	tc.Progress(0, message)
}

// Task returns the name of the running task.
func (tc *Context) Task() string {
	return tc.task
}

// Cancelled reports whether the host asked to stop.
func (tc *Context) Cancelled() bool {
	return tc.Err() != nil
}
