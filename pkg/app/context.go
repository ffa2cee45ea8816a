package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Context holds application-wide configuration and state
type Context struct {
	context.Context

	// Output preferences
	OutputFormat string
	Verbose      bool
	Quiet        bool

	// Minimum level of structured log records. Verbose lowers it to debug,
	// Quiet raises it to error.
	LogLevel slog.Level

	// Destination of log records and messages. Stdout is reserved for
	// command output.
	Stderr io.Writer
}

// NewContext creates a new application context
func NewContext() *Context {
	return &Context{
		Context:      context.Background(),
		OutputFormat: "table",
		LogLevel:     slog.LevelWarn,
		Stderr:       os.Stderr,
	}
}

// WithCancel creates a cancellable context
func (c *Context) WithCancel() (*Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(c.Context)
	newCtx := *c
	newCtx.Context = ctx
	return &newCtx, cancel
}

// Logger returns a text logger writing to Stderr at the effective level
func (c *Context) Logger() *slog.Logger {
	level := c.LogLevel
	switch {
	case c.Quiet:
		level = slog.LevelError
	case c.Verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(c.Stderr, &slog.HandlerOptions{Level: level}))
}

// Log outputs a message based on verbosity settings
func (c *Context) Log(message string) {
	if !c.Quiet && c.Verbose {
		fmt.Fprintln(c.Stderr, message)
	}
}

// Error outputs an error message unless quiet
func (c *Context) Error(message string) {
	if !c.Quiet {
		fmt.Fprintln(c.Stderr, "Error:", message)
	}
}
