package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ResultSet — результат запроса: упорядоченные колонки и строки значений.
// В JSON сериализуется как массив объектов "колонка → значение"
// с сохранением порядка колонок.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Len возвращает количество строк.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// MarshalJSON сериализует строки как объекты с порядком ключей по Columns.
func (rs ResultSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range rs.Rows {
		if len(row) != len(rs.Columns) {
			return nil, fmt.Errorf("строка %d: %d значений при %d колонках", i, len(row), len(rs.Columns))
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, col := range rs.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return nil, err
			}
			val, err := json.Marshal(row[j])
			if err != nil {
				return nil, fmt.Errorf("колонка %q: %w", col, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// NormalizeValue приводит значение, прочитанное драйвером, к JSON-пригодному виду.
// NaN и ±Inf в JSON непредставимы и отдаются строками в записи PostgreSQL.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case float64:
		return nonFinite(val)
	case float32:
		if f := float64(val); math.IsNaN(f) || math.IsInf(f, 0) {
			return nonFinite(f)
		}
		return val
	case []byte:
		return string(val)
	case [16]byte:
		return uuid.UUID(val).String()
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return val
	}
}

func nonFinite(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return f
	}
}
