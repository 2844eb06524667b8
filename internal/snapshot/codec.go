package snapshot

import (
	"encoding/json"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"shopbot/internal/storage"
)

// Key codecs. Every keyed collection in this bot uses int64 identities
// (Telegram user/chat ids and counter-issued ids); string keys plug in
// the same way through the parse/format parameters.

func formatInt64Key(k int64) string { return strconv.FormatInt(k, 10) }

func parseInt64Key(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

// encodePtrMap serializes a pointer-valued keyed map into rows, sorted by
// key for deterministic output. A record that fails to marshal is written
// as an empty object so one bad record never fails the whole save.
func encodePtrMap[K comparable, V any](collection string, items map[K]*V, formatKey func(K) string, lg *zap.Logger) []storage.Row {
	rows := make([]storage.Row, 0, len(items))
	for k, v := range items {
		data, err := json.Marshal(v)
		if err != nil {
			lg.Warn("Failed to marshal record, storing empty object",
				zap.String("collection", collection),
				zap.String("key", formatKey(k)),
				zap.Error(err))
			data = []byte("{}")
		}
		rows = append(rows, storage.Row{Key: formatKey(k), Data: data})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}

// decodePtrMap parses rows into a pointer-valued keyed map. A row with
// malformed JSON becomes an empty record; a row whose key does not parse
// is dropped. Both are logged, neither aborts the load.
func decodePtrMap[K comparable, V any](collection string, rows []storage.Row, parseKey func(string) (K, error), lg *zap.Logger) map[K]*V {
	items := make(map[K]*V, len(rows))
	for _, r := range rows {
		k, err := parseKey(r.Key)
		if err != nil {
			lg.Warn("Dropping record with unparseable key",
				zap.String("collection", collection),
				zap.String("key", r.Key),
				zap.Error(err))
			continue
		}
		v := new(V)
		if err := json.Unmarshal(r.Data, v); err != nil {
			lg.Warn("Malformed record, loading as empty",
				zap.String("collection", collection),
				zap.String("key", r.Key),
				zap.Error(err))
			v = new(V)
		}
		items[k] = v
	}
	return items
}

// encodeMap is encodePtrMap for plain-valued maps (e.g. admin levels).
func encodeMap[K comparable, V any](collection string, items map[K]V, formatKey func(K) string, lg *zap.Logger) []storage.Row {
	rows := make([]storage.Row, 0, len(items))
	for k, v := range items {
		data, err := json.Marshal(v)
		if err != nil {
			lg.Warn("Failed to marshal record, storing empty object",
				zap.String("collection", collection),
				zap.String("key", formatKey(k)),
				zap.Error(err))
			data = []byte("{}")
		}
		rows = append(rows, storage.Row{Key: formatKey(k), Data: data})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}

// decodeMap is decodePtrMap for plain-valued maps.
func decodeMap[K comparable, V any](collection string, rows []storage.Row, parseKey func(string) (K, error), lg *zap.Logger) map[K]V {
	items := make(map[K]V, len(rows))
	for _, r := range rows {
		k, err := parseKey(r.Key)
		if err != nil {
			lg.Warn("Dropping record with unparseable key",
				zap.String("collection", collection),
				zap.String("key", r.Key),
				zap.Error(err))
			continue
		}
		var v V
		if err := json.Unmarshal(r.Data, &v); err != nil {
			lg.Warn("Malformed record, loading as empty",
				zap.String("collection", collection),
				zap.String("key", r.Key),
				zap.Error(err))
			var zero V
			v = zero
		}
		items[k] = v
	}
	return items
}

// encodeList serializes an ordered list collection. The surrogate key is
// the position index; a full save is a full replace, so keys only need
// to be unique within one save.
func encodeList[V any](collection string, items []V, lg *zap.Logger) []storage.Row {
	rows := make([]storage.Row, 0, len(items))
	for i, v := range items {
		data, err := json.Marshal(v)
		if err != nil {
			lg.Warn("Failed to marshal record, storing empty object",
				zap.String("collection", collection),
				zap.Int("index", i),
				zap.Error(err))
			data = []byte("{}")
		}
		rows = append(rows, storage.Row{Key: strconv.Itoa(i), Data: data})
	}
	return rows
}

// decodeList parses rows into an ordered list, preserving stored order.
// Malformed rows load as empty records.
func decodeList[V any](collection string, rows []storage.Row, lg *zap.Logger) []V {
	if len(rows) == 0 {
		return nil
	}
	items := make([]V, 0, len(rows))
	for _, r := range rows {
		var v V
		if err := json.Unmarshal(r.Data, &v); err != nil {
			lg.Warn("Malformed record, loading as empty",
				zap.String("collection", collection),
				zap.String("key", r.Key),
				zap.Error(err))
			var zero V
			v = zero
		}
		items = append(items, v)
	}
	return items
}
