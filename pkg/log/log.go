// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"

	"github.com/walteh/docfmt/pkg/diff"
	"github.com/walteh/docfmt/pkg/document"
)

// 🎨 Display configuration
const (
	changeIndent = 4  // spaces to indent change entries
	fromWidth    = 40 // width of the original text column
	statusWidth  = 10 // width for status text
)

// 🏷️ Change statuses
const (
	StatusProposed = "PROPOSED"
	StatusApplied  = "APPLIED"
	StatusFailed   = "FAILED"
)

// 🎯 ChangeOperation is one text replacement shown to the user
type ChangeOperation struct {
	Change diff.Change
	Status string
}

// 📄 DocumentOperation identifies the document being formatted
type DocumentOperation struct {
	ID    string
	Title string
	Apply bool // changes will be written back
}

// 🎯 Logger prints formatter progress to the console and mirrors it to zerolog
type Logger struct {
	zlog      zerolog.Logger
	console   io.Writer
	mu        sync.Mutex
	currentOp *DocumentOperation
	changes   []ChangeOperation
}

// 🏭 New creates a new logger
func New(console io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).With().Timestamp().Logger().Level(level)
	return &Logger{
		zlog:    zlog,
		console: console,
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatChange formats a change for display
func (l *Logger) formatChange(op ChangeOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	switch op.Status {
	case StatusApplied:
		symbol = '✓'
		symbolColor = color.FgGreen
	case StatusFailed:
		symbol = '✗'
		symbolColor = color.FgRed
	default:
		symbol = '⟳'
		symbolColor = color.FgBlue
	}

	caseNote := ""
	if !op.Change.MatchCase() {
		caseNote = color.New(color.Faint).Sprint(" (any case)")
	}

	return fmt.Sprintf("%s%s %s %s %s%s",
		fmt.Sprintf("%*s", changeIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", statusWidth, op.Status),
		fmt.Sprintf("%-*s", fromWidth, strconv.Quote(op.Change.From)),
		color.New(color.FgCyan).Sprint("→ "+strconv.Quote(op.Change.To)),
		caseNote)
}

// 📝 LogChange logs a single change
func (l *Logger) LogChange(ctx context.Context, op ChangeOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.changes = append(l.changes, op)

	fmt.Fprintln(l.console, l.formatChange(op))

	l.zlog.Info().
		Str("from", op.Change.From).
		Str("to", op.Change.To).
		Bool("match_case", op.Change.MatchCase()).
		Str("status", op.Status).
		Msg("change")
}

// 📝 StartDocument starts output for a document
func (l *Logger) StartDocument(ctx context.Context, op DocumentOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentOp = &op
	l.changes = nil

	verb := "previewing"
	if op.Apply {
		verb = "formatting"
	}

	fmt.Fprintf(l.console, "[%s %s]\n", verb, color.New(color.FgCyan).Sprint(op.ID))
	fmt.Fprintf(l.console, "%s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(op.Title))

	l.zlog.Info().
		Str("document", op.ID).
		Str("title", op.Title).
		Bool("apply", op.Apply).
		Msg("starting document")
}

// 📝 EndDocument ends the current document and prints a summary line
func (l *Logger) EndDocument(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentOp == nil {
		return
	}

	if len(l.changes) == 0 {
		fmt.Fprintf(l.console, "%s%s\n", fmt.Sprintf("%*s", changeIndent, ""),
			color.New(color.Faint).Sprint("no changes"))
	}

	l.zlog.Info().
		Str("document", l.currentOp.ID).
		Int("changes", len(l.changes)).
		Msg("document complete")

	l.currentOp = nil
	l.changes = nil
}

// 📋 DocumentTable prints documents as a table
func (l *Logger) DocumentTable(docs []document.Summary) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(docs) == 0 {
		fmt.Fprintln(l.console, color.New(color.Faint).Sprint("no documents"))
		return nil
	}

	data := pterm.TableData{{"ID", "Name"}}
	for _, d := range docs {
		data = append(data, []string{d.ID, d.Name})
	}

	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(l.console, out)

	l.zlog.Info().Int("documents", len(docs)).Msg("documents listed")
	return nil
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("docfmt")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
