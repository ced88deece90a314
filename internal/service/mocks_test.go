package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sourabh1428/query-editor/internal/domain/model"
	"github.com/sourabh1428/query-editor/internal/repository"
)

// --- Исполнитель ---

// mockExecutor — мок QueryExecutor, запоминает выполненные запросы.
type mockExecutor struct {
	mu      sync.Mutex
	calls   []string
	execute func(ctx context.Context, query string) (*model.ResultSet, error)
}

func (m *mockExecutor) Execute(ctx context.Context, query string) (*model.ResultSet, error) {
	m.mu.Lock()
	m.calls = append(m.calls, query)
	m.mu.Unlock()
	if m.execute != nil {
		return m.execute(ctx, query)
	}
	return &model.ResultSet{Columns: []string{}, Rows: [][]any{}}, nil
}

func (m *mockExecutor) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// --- История ---

// fakeQueryRepo — QueryRepository в памяти.
type fakeQueryRepo struct {
	mu        sync.Mutex
	nextID    int64
	records   []*model.QueryRecord
	createErr error
}

func (f *fakeQueryRepo) Create(_ context.Context, userID int64, queryText string) (*model.QueryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	rec := &model.QueryRecord{
		ID:        f.nextID,
		UserID:    userID,
		QueryText: queryText,
		CreatedAt: time.Now().Add(time.Duration(f.nextID) * time.Millisecond),
	}
	f.records = append(f.records, rec)
	return copyRecord(rec), nil
}

func (f *fakeQueryRepo) ListByUser(_ context.Context, userID int64, favoritesOnly bool) ([]*model.QueryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.QueryRecord, 0)
	for _, r := range f.records {
		if r.UserID != userID || (favoritesOnly && !r.IsFavorite) {
			continue
		}
		out = append(out, copyRecord(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeQueryRepo) GetOwned(_ context.Context, id, userID int64) (*model.QueryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id, userID)
	if r == nil {
		return nil, repository.ErrNotFound
	}
	return copyRecord(r), nil
}

func (f *fakeQueryRepo) ToggleFavorite(_ context.Context, id, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id, userID)
	if r == nil {
		return false, repository.ErrNotFound
	}
	r.IsFavorite = !r.IsFavorite
	return r.IsFavorite, nil
}

func (f *fakeQueryRepo) SetFavoriteName(_ context.Context, id, userID int64, name string) (*model.QueryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id, userID)
	if r == nil {
		return nil, repository.ErrNotFound
	}
	r.FavoriteName = &name
	return copyRecord(r), nil
}

func (f *fakeQueryRepo) Delete(_ context.Context, id, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.records {
		if r.ID == id && r.UserID == userID {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeQueryRepo) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeQueryRepo) find(id, userID int64) *model.QueryRecord {
	for _, r := range f.records {
		if r.ID == id && r.UserID == userID {
			return r
		}
	}
	return nil
}

func copyRecord(r *model.QueryRecord) *model.QueryRecord {
	c := *r
	return &c
}

// --- Пользователи ---

// fakeUserRepo — UserRepository в памяти.
type fakeUserRepo struct {
	mu       sync.Mutex
	nextID   int64
	users    []*model.User
	touchErr error
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return repository.ErrConflict
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now().UTC()
	c := *u
	f.users = append(f.users, &c)
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) TouchLastLogin(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchErr != nil {
		return f.touchErr
	}
	for _, u := range f.users {
		if u.ID == id {
			now := time.Now().UTC()
			u.LastLoginAt = &now
			return nil
		}
	}
	return repository.ErrNotFound
}

// --- Токены ---

// fakeIssuer — TokenIssuer с предсказуемым токеном.
type fakeIssuer struct {
	err error
}

func (f *fakeIssuer) Issue(u *model.User) (string, time.Time, error) {
	if f.err != nil {
		return "", time.Time{}, f.err
	}
	return "token-for-" + u.Username, time.Now().Add(24 * time.Hour), nil
}

// --- Схема ---

// mockSchemaRepo — мок SchemaRepository.
type mockSchemaRepo struct {
	tables  []string
	columns map[string][]model.ColumnInfo
	pks     map[string][]string
	fks     map[string][]model.ForeignKey
	err     error
}

func (m *mockSchemaRepo) ListTables(context.Context) ([]string, error) {
	return m.tables, m.err
}

func (m *mockSchemaRepo) TableExists(_ context.Context, table string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, t := range m.tables {
		if t == table {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSchemaRepo) Columns(_ context.Context, table string) ([]model.ColumnInfo, error) {
	return m.columns[table], nil
}

func (m *mockSchemaRepo) PrimaryKeys(_ context.Context, table string) ([]string, error) {
	return m.pks[table], nil
}

func (m *mockSchemaRepo) ForeignKeys(_ context.Context, table string) ([]model.ForeignKey, error) {
	return m.fks[table], nil
}
