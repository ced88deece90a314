package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourabh1428/query-editor/internal/cache"
	"github.com/sourabh1428/query-editor/internal/domain/model"
	"github.com/sourabh1428/query-editor/internal/domain/querypolicy"
)

// spyCache — ResultCache, считающий обращения.
type spyCache struct {
	mu   sync.Mutex
	gets int
	sets int
	data map[string]*model.ResultSet
}

func newSpyCache() *spyCache {
	return &spyCache{data: map[string]*model.ResultSet{}}
}

func (c *spyCache) Get(_ context.Context, userID int64, query string) (*model.ResultSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	rs, ok := c.data[cache.Key(userID, query)]
	return rs, ok
}

func (c *spyCache) Set(_ context.Context, userID int64, query string, rs *model.ResultSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[cache.Key(userID, query)] = rs
}

func (c *spyCache) Backend() string { return "spy" }

func oneRow() *model.ResultSet {
	return &model.ResultSet{Columns: []string{"?column?"}, Rows: [][]any{{int64(1)}}}
}

func TestQueryService_SelectExecutesAndRecords(t *testing.T) {
	exec := &mockExecutor{execute: func(context.Context, string) (*model.ResultSet, error) {
		return oneRow(), nil
	}}
	repo := &fakeQueryRepo{}
	spy := newSpyCache()
	svc := NewQueryService(exec, repo, spy, testLogger())

	res, err := svc.Execute(context.Background(), 1, model.RoleRegularUser, "SELECT 1")
	require.NoError(t, err)

	assert.False(t, res.Cached)
	assert.Equal(t, "select", res.Command)
	assert.Equal(t, 1, res.Rows.Len())
	require.NotNil(t, res.Record)
	assert.Equal(t, "SELECT 1", res.Record.QueryText)
	assert.Equal(t, []string{"SELECT 1"}, exec.Calls())
	assert.Equal(t, 1, spy.gets)
	assert.Equal(t, 1, spy.sets)
}

func TestQueryService_CacheHitSkipsExecutorUntilTTL(t *testing.T) {
	exec := &mockExecutor{execute: func(context.Context, string) (*model.ResultSet, error) {
		return oneRow(), nil
	}}
	repo := &fakeQueryRepo{}
	mem := cache.NewMemoryCache(100, 50*time.Millisecond, testLogger())
	svc := NewQueryService(exec, repo, mem, testLogger())
	ctx := context.Background()

	first, err := svc.Execute(ctx, 1, model.RoleRegularUser, "SELECT 1")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Execute(ctx, 1, model.RoleRegularUser, "SELECT 1")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Rows.Columns, second.Rows.Columns)
	assert.Len(t, exec.Calls(), 1, "повтор в пределах TTL не должен вызывать исполнитель")

	// кэш привязан к пользователю
	other, err := svc.Execute(ctx, 2, model.RoleRegularUser, "SELECT 1")
	require.NoError(t, err)
	assert.False(t, other.Cached)
	assert.Len(t, exec.Calls(), 2)

	time.Sleep(80 * time.Millisecond)

	third, err := svc.Execute(ctx, 1, model.RoleRegularUser, "SELECT 1")
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Len(t, exec.Calls(), 3, "после истечения TTL исполнитель вызывается снова")

	assert.Equal(t, 4, repo.Len(), "каждая попытка, включая попадание в кэш, пишется в историю")
}

func TestQueryService_DeniedIsNotRecordedOrCached(t *testing.T) {
	exec := &mockExecutor{}
	repo := &fakeQueryRepo{}
	spy := newSpyCache()
	svc := NewQueryService(exec, repo, spy, testLogger())

	_, err := svc.Execute(context.Background(), 1, model.RoleRegularUser, "UPDATE t SET x=1")

	var denied *querypolicy.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, querypolicy.ReasonInsufficientPrivilege, denied.Reason)
	assert.Empty(t, exec.Calls())
	assert.Zero(t, repo.Len())
	assert.Zero(t, spy.gets)
	assert.Zero(t, spy.sets)
}

func TestQueryService_NonSelectForRegularUser(t *testing.T) {
	svc := NewQueryService(&mockExecutor{}, &fakeQueryRepo{}, cache.NewNopCache(), testLogger())

	_, err := svc.Execute(context.Background(), 1, model.RoleRegularUser, "EXPLAIN SELECT 1")

	var denied *querypolicy.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, querypolicy.ReasonSelectOnly, denied.Reason)
}

func TestQueryService_EmptyQuery(t *testing.T) {
	repo := &fakeQueryRepo{}
	svc := NewQueryService(&mockExecutor{}, repo, cache.NewNopCache(), testLogger())

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := svc.Execute(context.Background(), 1, model.RoleAdminUser, q)
		assert.ErrorIs(t, err, ErrValidation, "запрос %q", q)
	}
	assert.Zero(t, repo.Len())
}

func TestQueryService_AdminInsertIsRewritten(t *testing.T) {
	exec := &mockExecutor{execute: func(context.Context, string) (*model.ResultSet, error) {
		return &model.ResultSet{Columns: []string{"x"}, Rows: [][]any{{int64(1)}}}, nil
	}}
	repo := &fakeQueryRepo{}
	spy := newSpyCache()
	svc := NewQueryService(exec, repo, spy, testLogger())

	res, err := svc.Execute(context.Background(), 1, model.RoleAdminUser, "  -- comment\n   INSERT INTO t(x) VALUES (1)  ")
	require.NoError(t, err)

	want := "INSERT INTO t(x) VALUES (1) RETURNING *;"
	assert.Equal(t, []string{want}, exec.Calls())
	assert.Equal(t, want, res.Record.QueryText, "в истории хранится выполненный текст")
	assert.Equal(t, "insert", res.Command)
	assert.Zero(t, spy.gets, "не-SELECT не читается из кэша")
	assert.Zero(t, spy.sets, "не-SELECT не пишется в кэш")
}

func TestQueryService_ExecutionErrorIsRecorded(t *testing.T) {
	execErr := &ExecutionError{Message: `relation "nope" does not exist`}
	exec := &mockExecutor{execute: func(context.Context, string) (*model.ResultSet, error) {
		return nil, execErr
	}}
	repo := &fakeQueryRepo{}
	spy := newSpyCache()
	svc := NewQueryService(exec, repo, spy, testLogger())

	_, err := svc.Execute(context.Background(), 1, model.RoleRegularUser, "SELECT * FROM nope")

	var got *ExecutionError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, execErr.Message, got.Message)
	assert.Equal(t, 1, repo.Len())
	assert.Zero(t, spy.sets)
}

func TestQueryService_CommandWithoutRows(t *testing.T) {
	exec := &mockExecutor{execute: func(context.Context, string) (*model.ResultSet, error) {
		return nil, nil
	}}
	svc := NewQueryService(exec, &fakeQueryRepo{}, newSpyCache(), testLogger())

	res, err := svc.Execute(context.Background(), 1, model.RoleAdminUser, "DROP TABLE t")
	require.NoError(t, err)
	assert.Nil(t, res.Rows)
	assert.Equal(t, "drop", res.Command)
}

func TestQueryService_HistoryFailure(t *testing.T) {
	repo := &fakeQueryRepo{createErr: errors.New("db down")}
	svc := NewQueryService(&mockExecutor{}, repo, cache.NewNopCache(), testLogger())

	_, err := svc.Execute(context.Background(), 1, model.RoleRegularUser, "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
