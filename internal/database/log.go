package database

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
)

// LogHandler is a slog.Handler that appends records to the Log table of a
// database created with the log default table.
type LogHandler struct {
	db     *Database
	level  slog.Leveler
	attrs  []groupedAttr
	groups []string
}

type groupedAttr struct {
	groups []string
	attr   slog.Attr
}

// NewLogHandler returns a handler writing records at or above level to db.
func NewLogHandler(db *Database, level slog.Leveler) *LogHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &LogHandler{db: db, level: level}
}

func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.db.info.DefaultTables.Log {
		return errors.New("database has no Log table")
	}

	attrs := make(map[string]any)
	add := func(groups []string, a slog.Attr) {
		m := attrs
		for _, g := range groups {
			sub, ok := m[g].(map[string]any)
			if !ok {
				sub = make(map[string]any)
				m[g] = sub
			}
			m = sub
		}
		m[a.Key] = a.Value.Resolve().Any()
	}
	for _, ga := range h.attrs {
		add(ga.groups, ga.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(h.groups, a)
		return true
	})

	var encoded any
	if len(attrs) > 0 {
		data, err := json.Marshal(attrs)
		if err != nil {
			return err
		}
		encoded = string(data)
	}

	_, err := h.db.Exec(ctx,
		`INSERT INTO Log ("Level", "Message", "Attributes") VALUES (?, ?, ?)`,
		r.Level.String(), r.Message, encoded)
	return err
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]groupedAttr(nil), h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, groupedAttr{groups: h.groups, attr: a})
	}
	return &clone
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}
