package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders one line per record with a stable key order so that lines from
// the three services line up when grepped side by side.
type structuredHandler struct {
	cfg    handlerConfig
	rank   map[string]int
	prefix string
	// attrs were added through WithAttrs, each under the group prefix current at the time.
	attrs []groupedAttr
}

type groupedAttr struct {
	prefix string
	attr   slog.Attr
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = defaultKeyOrder
	}
	rank := make(map[string]int, len(cfg.keyOrder))
	for i, k := range cfg.keyOrder {
		if _, dup := rank[k]; !dup {
			rank[k] = i
		}
	}
	return &structuredHandler{cfg: cfg, rank: rank}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}

	rec := newRecord()
	ts := r.Time.UTC()
	rec.set("ts", ts.Truncate(time.Millisecond).Format(timeFormatMillis))
	rec.set("level", normalizeLevel(r.Level.String()))
	if h.cfg.format == formatJSON {
		rec.set("ts_unix_nano", ts.UnixNano())
	}
	for _, a := range h.attrs {
		rec.add(a.prefix, a.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.add(h.prefix, a)
		return true
	})
	rec.fromContext(ctx)
	rec.finish(r.Message, h.cfg.format == formatJSON)

	var line []byte
	if h.cfg.format == formatJSON {
		var err error
		if line, err = rec.json(h.rank); err != nil {
			return err
		}
	} else {
		line = rec.kv(h.rank)
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]groupedAttr(nil), h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, groupedAttr{prefix: h.prefix, attr: a})
	}
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

// record holds the fields of one line. Later values for a key replace earlier ones.
type record struct {
	fields map[string]any
}

func newRecord() *record {
	return &record{fields: make(map[string]any, 16)}
}

func (r *record) set(key string, val any) { r.fields[key] = val }

func (r *record) setDefault(key string, val any) {
	if _, ok := r.fields[key]; !ok {
		r.fields[key] = val
	}
}

func (r *record) str(key string) string {
	switch v := r.fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// add flattens groups into dotted keys.
func (r *record) add(prefix string, a slog.Attr) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			r.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := convert(key, v); ok {
		r.set(k, val)
	}
}

func (r *record) fromContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	if rid := RIDFrom(ctx); rid != "" {
		r.setDefault("rid", rid)
	}
	if id := UpdateIDFrom(ctx); id != 0 {
		r.setDefault("update_id", id)
	}
	if id := UserIDFrom(ctx); id != 0 {
		r.setDefault("user_id", id)
	}
	if id := ChatIDFrom(ctx); id != 0 {
		r.setDefault("chat_id", id)
	}
	if name := HandlerFrom(ctx); name != "" {
		r.setDefault("handler", name)
	}
}

// finish fills event and component, shortens the rid and drops unknown enum values and
// empty fields.
func (r *record) finish(msg string, keepFullRID bool) {
	if rid := r.str("rid"); rid != "" {
		if short := CompactRID(rid); short != "" && short != rid {
			if keepFullRID {
				r.setDefault("rid_full", rid)
			}
			r.set("rid", short)
		}
	}
	if r.str("event") == "" {
		if msg == "" {
			msg = "unknown"
		}
		r.set("event", msg)
	}
	if r.str("component") == "" {
		r.set("component", "app")
	}

	if s := r.str("status"); s != "" {
		norm, _ := normalizeEnum(s, statusValues)
		r.set("status", norm)
	}
	if o := r.str("outcome"); o != "" {
		if norm, ok := normalizeEnum(o, outcomeValues); ok {
			r.set("outcome", norm)
		} else {
			delete(r.fields, "outcome")
		}
	}

	for k, v := range r.fields {
		if v == nil || r.str(k) == "" {
			delete(r.fields, k)
		}
	}
}

// keys returns ranked keys first, then the rest alphabetically.
func (r *record) keys(rank map[string]int) []string {
	keys := make([]string, 0, len(r.fields))
	for k := range r.fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iok := rank[keys[i]]
		rj, jok := rank[keys[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

func (r *record) json(rank map[string]int) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range r.keys(rank) {
		data, err := json.Marshal(r.fields[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.Write(data)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func (r *record) kv(rank map[string]int) []byte {
	var b strings.Builder
	for i, k := range r.keys(rank) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		s := r.str(k)
		if strings.IndexFunc(s, needsQuote) >= 0 {
			s = strconv.Quote(s)
		}
		b.WriteString(s)
	}
	return []byte(b.String())
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// convert maps an attribute to its logged key and value. Durations become whole
// milliseconds under a *_ms key.
func convert(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u > math.MaxInt64 {
			return key, u, true
		}
		return key, int64(v.Uint64()), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return msKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}

	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return msKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

func msKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}
