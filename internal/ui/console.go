package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"EWI/internal/logger"
)

// Console renders task progress to the terminal and mirrors it into the
// installer log. It satisfies task.Reporter.
type Console struct {
	mu     sync.Mutex
	logger logger.Logger
	output io.Writer

	task  string
	total int
	used  int
	index int
}

// NewConsole builds a Console bound to the provided logger.
func NewConsole(log logger.Logger, output io.Writer) *Console {
	c := &Console{
		logger: log,
		output: output,
	}
	if c.output == nil {
		c.output = os.Stdout
	}
	if c.logger == nil {
		c.logger = logger.Discard()
	}
	return c
}

// Logger exposes the underlying logger.
func (c *Console) Logger() logger.Logger {
	return c.logger
}

// Start announces a task and resets its tick counter.
func (c *Console) Start(task string, total int, short, long string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if task != c.task {
		c.index++
	}
	c.task = task
	c.total = total
	c.used = 0

	c.logger.Info("Starting %s (%d ticks): %s", task, total, long)
	c.writeLine("[%2d] %s", c.index, short)
}

// Progress renders the percentage of the running task's budget consumed.
func (c *Console) Progress(task string, ticks int, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if task == c.task {
		c.used += ticks
	}
	if message == "" {
		return
	}
	c.logger.Debug("%s: %s", task, message)
	c.writeLine("     %3d%% %s", c.percent(), message)
}

func (c *Console) percent() int {
	if c.total <= 0 {
		return 100
	}
	p := c.used * 100 / c.total
	if p > 100 {
		p = 100
	}
	return p
}

// Success logs a success message with a consistent prefix.
func (c *Console) Success(format string, args ...interface{}) {
	c.logger.Info("✓ "+format, args...)
}

// WriteLine outputs formatted text without involving the logger.
func (c *Console) WriteLine(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeLine(format, args...)
}

func (c *Console) writeLine(format string, args ...interface{}) {
	fmt.Fprintf(c.output, format+"\n", args...)
}
