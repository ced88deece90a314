package model

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestResultSet_MarshalJSON_PreservesColumnOrder(t *testing.T) {
	rs := ResultSet{
		Columns: []string{"zeta", "alpha", "mid"},
		Rows: [][]any{
			{1, "a", nil},
			{2, "b", true},
		},
	}

	data, err := json.Marshal(rs)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `[{"zeta":1,"alpha":"a","mid":null},{"zeta":2,"alpha":"b","mid":true}]`
	if string(data) != want {
		t.Errorf("Marshal = %s, ожидался %s", data, want)
	}
}

func TestResultSet_MarshalJSON_Empty(t *testing.T) {
	data, err := json.Marshal(ResultSet{Columns: []string{"id"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("Marshal = %s, ожидался []", data)
	}
}

func TestResultSet_MarshalJSON_RowWidthMismatch(t *testing.T) {
	rs := ResultSet{Columns: []string{"a", "b"}, Rows: [][]any{{1}}}
	if _, err := json.Marshal(rs); err == nil {
		t.Error("ожидалась ошибка при несовпадении числа колонок")
	}
}

func TestResultSet_Len(t *testing.T) {
	var nilSet *ResultSet
	if nilSet.Len() != 0 {
		t.Errorf("nil.Len() = %d, ожидался 0", nilSet.Len())
	}
	rs := &ResultSet{Columns: []string{"a"}, Rows: [][]any{{1}, {2}}}
	if rs.Len() != 2 {
		t.Errorf("Len() = %d, ожидался 2", rs.Len())
	}
}

func TestNormalizeValue(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"bytes", []byte("text"), "text"},
		{"uuid", [16]byte(id), id.String()},
		{"time", ts, "2024-03-01T12:00:00Z"},
		{"int", int64(7), int64(7)},
		{"float", 1.5, 1.5},
		{"float32", float32(2.5), float32(2.5)},
		{"NaN", math.NaN(), "NaN"},
		{"+Inf", math.Inf(1), "Infinity"},
		{"-Inf", math.Inf(-1), "-Infinity"},
		{"float32 NaN", float32(math.NaN()), "NaN"},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeValue(tt.in); got != tt.want {
				t.Errorf("NormalizeValue(%v) = %v, ожидался %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResultSet_MarshalJSON_NonFiniteNormalized(t *testing.T) {
	rs := ResultSet{
		Columns: []string{"f"},
		Rows:    [][]any{{NormalizeValue(math.NaN())}, {NormalizeValue(math.Inf(-1))}},
	}
	data, err := json.Marshal(rs)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `[{"f":"NaN"},{"f":"-Infinity"}]`
	if string(data) != want {
		t.Errorf("Marshal = %s, ожидался %s", data, want)
	}
}
