package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
)

// GELFSink receives complete GELF messages. *gelf.Writer satisfies it.
type GELFSink interface {
	WriteMessage(m *gelf.Message) error
	io.Closer
}

// GraylogHandler is a slog.Handler that forwards records to a Graylog input
// as GELF messages. Attributes become additional fields.
type GraylogHandler struct {
	sink     GELFSink
	level    slog.Leveler
	host     string
	facility string
	attrs    []slog.Attr
	groups   []string
}

// NewGraylogHandler dials the GELF UDP input at addr.
func NewGraylogHandler(addr, facility string, level slog.Leveler) (*GraylogHandler, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("connect graylog %s: %w", addr, err)
	}
	w.Facility = facility
	return NewGraylogHandlerWithSink(w, facility, level), nil
}

// NewGraylogHandlerWithSink builds a handler around an existing sink.
func NewGraylogHandlerWithSink(sink GELFSink, facility string, level slog.Leveler) *GraylogHandler {
	host, _ := os.Hostname()
	if level == nil {
		level = slog.LevelInfo
	}
	return &GraylogHandler{sink: sink, level: level, host: host, facility: facility}
}

// Enabled reports whether level meets the handler's minimum.
func (h *GraylogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle converts the record to a GELF message and writes it.
func (h *GraylogHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	extra := make(map[string]interface{}, len(h.attrs)+r.NumAttrs()+1)
	extra["_level_name"] = r.Level.String()
	for _, a := range h.attrs {
		addExtra(extra, h.groups, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addExtra(extra, h.groups, a)
		return true
	})
	return h.sink.WriteMessage(&gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    r.Message,
		TimeUnix: float64(ts.UnixNano()) / float64(time.Second),
		Level:    syslogLevel(r.Level),
		Facility: h.facility,
		Extra:    extra,
	})
}

// WithAttrs returns a handler carrying attrs on every message.
func (h *GraylogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &c
}

// WithGroup prefixes subsequent attribute keys with name.
func (h *GraylogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.groups = append(append([]string{}, h.groups...), name)
	return &c
}

func addExtra(extra map[string]interface{}, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		sub := groups
		if a.Key != "" {
			sub = append(append([]string{}, groups...), a.Key)
		}
		for _, ga := range a.Value.Group() {
			addExtra(extra, sub, ga)
		}
		return
	}
	key := "_"
	for _, g := range groups {
		key += g + "."
	}
	key += a.Key
	switch a.Value.Kind() {
	case slog.KindString:
		extra[key] = a.Value.String()
	case slog.KindInt64:
		extra[key] = a.Value.Int64()
	case slog.KindUint64:
		extra[key] = a.Value.Uint64()
	case slog.KindFloat64:
		extra[key] = a.Value.Float64()
	case slog.KindBool:
		extra[key] = a.Value.Bool()
	default:
		extra[key] = a.Value.String()
	}
}

// syslogLevel maps slog levels onto the syslog severities GELF expects.
func syslogLevel(l slog.Level) int32 {
	switch {
	case l >= slog.LevelError:
		return 3
	case l >= slog.LevelWarn:
		return 4
	case l >= slog.LevelInfo:
		return 6
	default:
		return 7
	}
}
