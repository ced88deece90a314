// Пакет cache — best-effort кэш результатов SELECT-запросов.
// Ключ — пользователь + точный текст запроса, значение — JSON строк.
// Инвалидации нет: запись живёт до истечения TTL.
// Ошибки бэкенда не возвращаются вызывающему: Get превращается в промах,
// Set — в пропуск записи.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sourabh1428/query-editor/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qe_cache_hits_total",
		Help: "Общее количество попаданий в кэш результатов.",
	}, []string{"backend"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qe_cache_misses_total",
		Help: "Общее количество промахов кэша результатов.",
	}, []string{"backend"})
	cacheErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qe_cache_errors_total",
		Help: "Ошибки бэкенда кэша, проглоченные как промах или пропуск записи.",
	}, []string{"backend", "op"})
)

// ResultCache — контракт кэша результатов.
type ResultCache interface {
	// Get возвращает строки из кэша. Любая ошибка — промах.
	Get(ctx context.Context, userID int64, query string) (*model.ResultSet, bool)
	// Set сохраняет строки на TTL. Ошибки логируются и не возвращаются.
	Set(ctx context.Context, userID int64, query string, rs *model.ResultSet)
	// Backend — имя бэкенда для логов и метрик.
	Backend() string
}

// Key формирует ключ кэша: query:<userID>:<текст запроса>.
func Key(userID int64, query string) string {
	return fmt.Sprintf("query:%d:%s", userID, query)
}

// entry — формат хранения ResultSet.
type entry struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// encode сериализует ResultSet для хранения.
func encode(rs *model.ResultSet) ([]byte, error) {
	data, err := json.Marshal(entry{Columns: rs.Columns, Rows: rs.Rows})
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации результата: %w", err)
	}
	return data, nil
}

// decode восстанавливает ResultSet. Числа остаются json.Number,
// чтобы при повторной сериализации не терять точность int64.
func decode(data []byte) (*model.ResultSet, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var e entry
	if err := dec.Decode(&e); err != nil {
		return nil, fmt.Errorf("ошибка десериализации результата: %w", err)
	}
	if e.Rows == nil {
		e.Rows = [][]any{}
	}
	return &model.ResultSet{Columns: e.Columns, Rows: e.Rows}, nil
}

// NopCache — кэш отключён (QE_CACHE_BACKEND=none).
type NopCache struct{}

// NewNopCache создаёт отключённый кэш.
func NewNopCache() *NopCache { return &NopCache{} }

func (NopCache) Get(context.Context, int64, string) (*model.ResultSet, bool) { return nil, false }
func (NopCache) Set(context.Context, int64, string, *model.ResultSet)         {}
func (NopCache) Backend() string                                              { return "none" }
