package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

const componentKey = "component"

// consoleStyles colors the columns of a console line. Styles come from a
// renderer bound to the destination, so output to a pipe or file stays plain.
type consoleStyles struct {
	time      lipgloss.Style
	log       lipgloss.Style
	err       lipgloss.Style
	component lipgloss.Style
	key       lipgloss.Style
}

func newConsoleStyles(w io.Writer) consoleStyles {
	r := lipgloss.NewRenderer(w)
	return consoleStyles{
		time:      r.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		log:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981")),
		err:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444")),
		component: r.NewStyle().Foreground(lipgloss.Color("#A78BFA")),
		key:       r.NewStyle().Foreground(lipgloss.Color("#9CA3AF")),
	}
}

// ConsoleHandler is a slog.Handler that prints one line per record:
//
//	[15:04:05.000] [LOG] dispatcher: request accepted seq=3
//
// ERROR records are tagged [ERR] and written to the error writer.
type ConsoleHandler struct {
	mu        *sync.Mutex
	out, errw io.Writer
	outStyle  consoleStyles
	errStyle  consoleStyles
	level     slog.Leveler
	component string
	attrs     []slog.Attr
	groups    []string
}

// NewConsoleHandler returns a handler writing to out, and ERROR records to
// errw. A nil errw means out.
func NewConsoleHandler(out, errw io.Writer, level slog.Leveler) *ConsoleHandler {
	if errw == nil {
		errw = out
	}
	return &ConsoleHandler{
		mu:       &sync.Mutex{},
		out:      out,
		errw:     errw,
		outStyle: newConsoleStyles(out),
		errStyle: newConsoleStyles(errw),
		level:    level,
	}
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	w, st, tag := h.out, h.outStyle, "[LOG]"
	if r.Level >= slog.LevelError {
		w, st, tag = h.errw, h.errStyle, "[ERR]"
	}
	tagStyle := st.log
	if tag == "[ERR]" {
		tagStyle = st.err
	}

	var b strings.Builder
	b.WriteString(st.time.Render("[" + r.Time.Format("15:04:05.000") + "]"))
	b.WriteByte(' ')
	b.WriteString(tagStyle.Render(tag))
	b.WriteByte(' ')

	component := h.component
	var fields []slog.Attr
	fields = append(fields, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == componentKey && len(h.groups) == 0 {
			component = a.Value.String()
			return true
		}
		fields = append(fields, h.qualify(a))
		return true
	})
	if component != "" {
		b.WriteString(st.component.Render(component + ":"))
		b.WriteByte(' ')
	}
	b.WriteString(r.Message)
	for _, a := range fields {
		writeAttr(&b, st, "", a)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(w, b.String())
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if a.Key == componentKey && len(h.groups) == 0 {
			c.component = a.Value.String()
			continue
		}
		c.attrs = append(c.attrs, h.qualify(a))
	}
	return c
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.groups = append(c.groups, name)
	return c
}

func (h *ConsoleHandler) clone() *ConsoleHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	c.groups = append([]string(nil), h.groups...)
	return &c
}

// qualify prefixes a with the open groups, joined by dots.
func (h *ConsoleHandler) qualify(a slog.Attr) slog.Attr {
	if len(h.groups) == 0 {
		return a
	}
	a.Key = strings.Join(h.groups, ".") + "." + a.Key
	return a
}

func writeAttr(b *strings.Builder, st consoleStyles, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, st, key, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(st.key.Render(key + "="))
	val := a.Value.String()
	if strings.ContainsAny(val, " \t\"=") {
		val = fmt.Sprintf("%q", val)
	}
	b.WriteString(val)
}
