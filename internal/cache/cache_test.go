package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type popPayload struct {
	Scores map[string]float64 `json:"scores"`
}

func runCacheContract(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	var miss popPayload
	if ok, err := c.Get(ctx, "missing", &miss); err != nil || ok {
		t.Fatalf("Get missing: ok=%v err=%v", ok, err)
	}

	want := popPayload{Scores: map[string]float64{"veh-1": 3.5, "veh-2": 1.25}}
	if err := c.Set(ctx, "popularity", want, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got popPayload
	if ok, err := c.Get(ctx, "popularity", &got); err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Scores["veh-1"] != 3.5 || got.Scores["veh-2"] != 1.25 {
		t.Fatalf("round-trip: %+v", got)
	}

	if err := c.Delete(ctx, "popularity"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := c.Get(ctx, "popularity", &got); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestMemoryCache_Contract(t *testing.T) {
	runCacheContract(t, NewMemory())
}

func TestMemoryCache_Expiry(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	m.SetClock(func() time.Time { return now })

	ctx := context.Background()
	if err := m.Set(ctx, "k", popPayload{Scores: map[string]float64{"a": 1}}, 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got popPayload
	if ok, _ := m.Get(ctx, "k", &got); !ok {
		t.Fatal("expected hit before expiry")
	}

	now = now.Add(6 * time.Minute)
	if ok, _ := m.Get(ctx, "k", &got); ok {
		t.Fatal("expected miss after TTL")
	}
}

func TestRedisCache_Contract(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	runCacheContract(t, NewRedisWithClient(client))
}

func TestRedisCache_Expiry(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedisWithClient(client)

	ctx := context.Background()
	if err := c.Set(ctx, "k", popPayload{Scores: map[string]float64{"a": 1}}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	srv.FastForward(2 * time.Minute)

	var got popPayload
	if ok, _ := c.Get(ctx, "k", &got); ok {
		t.Fatal("expected miss after TTL")
	}
}
