package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// brokenPool — пул, который никогда не может установить соединение.
func brokenPool() *redis.Pool {
	return &redis.Pool{
		DialContext: func(context.Context) (redis.Conn, error) {
			return nil, errors.New("connection refused")
		},
	}
}

func TestRedisCache_BackendErrorsAreSwallowed(t *testing.T) {
	c := newRedisCacheFromPool(brokenPool(), time.Minute, testLogger())
	ctx := context.Background()

	// Set не паникует и не возвращает ошибку
	c.Set(ctx, 1, "SELECT 1", sampleResult())

	if _, ok := c.Get(ctx, 1, "SELECT 1"); ok {
		t.Error("при недоступном Redis Get должен вернуть промах")
	}

	status, _ := c.CheckReady()
	if status != "degraded" {
		t.Errorf("CheckReady() = %q, ожидался degraded", status)
	}
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, RedisOptions{Addr: "127.0.0.1:1", TTL: time.Minute}, testLogger())
	if err == nil {
		t.Fatal("NewRedisCache() к закрытому порту должен вернуть ошибку")
	}
}

// setupRedis запускает Redis в контейнере.
func setupRedis(t *testing.T) string {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.io/redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Не удалось запустить Redis контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	addr, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Не удалось получить адрес Redis: %v", err)
	}
	return addr
}

func TestRedisCache_Integration(t *testing.T) {
	addr := setupRedis(t)
	ctx := context.Background()

	c, err := NewRedisCache(ctx, RedisOptions{Addr: addr, TTL: time.Second}, testLogger())
	if err != nil {
		t.Fatalf("NewRedisCache() ошибка: %v", err)
	}
	defer c.Close()

	if _, ok := c.Get(ctx, 1, "SELECT 1"); ok {
		t.Fatal("ожидался промах для пустого Redis")
	}

	c.Set(ctx, 1, "SELECT 1", sampleResult())

	rs, ok := c.Get(ctx, 1, "SELECT 1")
	if !ok {
		t.Fatal("ожидалось попадание")
	}
	if rs.Len() != 2 || rs.Columns[0] != "id" {
		t.Errorf("Get() = %+v", rs)
	}

	if status, msg := c.CheckReady(); status != "ok" {
		t.Errorf("CheckReady() = %q (%s), ожидался ok", status, msg)
	}

	// TTL задаётся через EX
	time.Sleep(1500 * time.Millisecond)
	if _, ok := c.Get(ctx, 1, "SELECT 1"); ok {
		t.Error("ожидался промах после истечения TTL")
	}
}
