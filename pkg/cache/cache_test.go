package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/voxcad/pkg/command"
	"github.com/chazu/voxcad/pkg/config"
)

func TestKey(t *testing.T) {
	g := command.Gear{Teeth: 20, Module: 1.5, Width: 5, BoreDiameter: 3}
	assert.Equal(t, "gear:bore_diameter=3,module=1.5,teeth=20,width=5:cells=120", Key(g, 120))
	assert.Equal(t, "cube:size=10:cells=60", Key(command.Cube{Size: 10}, 60))
	assert.NotEqual(t, Key(g, 120), Key(g, 60))
}

func TestKeySharedAcrossPhrasings(t *testing.T) {
	a, err := command.Parse("边长10的立方体")
	require.NoError(t, err)
	b, err := command.Parse("方块 10mm")
	require.NoError(t, err)
	assert.Equal(t, Key(a, 120), Key(b, 120))
}

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(4, 0)

	_, err := m.Get(ctx, "a")
	assert.True(t, errors.Is(err, ErrMiss))

	require.NoError(t, m.Set(ctx, "a", []byte("one")))
	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	require.NoError(t, m.Set(ctx, "a", []byte("two")))
	got, err = m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, 0)

	require.NoError(t, m.Set(ctx, "a", []byte("a")))
	require.NoError(t, m.Set(ctx, "b", []byte("b")))
	_, err := m.Get(ctx, "a") // a is now newer than b
	require.NoError(t, err)
	require.NoError(t, m.Set(ctx, "c", []byte("c")))

	assert.Equal(t, 2, m.Len())
	_, err = m.Get(ctx, "b")
	assert.True(t, errors.Is(err, ErrMiss))
	_, err = m.Get(ctx, "a")
	assert.NoError(t, err)
	_, err = m.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestMemoryExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	m := NewMemory(4, time.Minute)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "a", []byte("a")))
	now = now.Add(59 * time.Second)
	_, err := m.Get(ctx, "a")
	assert.NoError(t, err)

	now = now.Add(time.Second)
	_, err = m.Get(ctx, "a")
	assert.True(t, errors.Is(err, ErrMiss))
	assert.Equal(t, 0, m.Len())
}

func TestMemoryDefaultSize(t *testing.T) {
	assert.Equal(t, DefaultMaxEntries, NewMemory(0, 0).max)
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Nop{}.Set(ctx, "a", []byte("a")))
	_, err := Nop{}.Get(ctx, "a")
	assert.True(t, errors.Is(err, ErrMiss))
}

func setupRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	r, err := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, ttl, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return mr, r
}

func TestRedisGetSet(t *testing.T) {
	ctx := context.Background()
	mr, r := setupRedis(t, time.Hour)

	_, err := r.Get(ctx, "cube:size=10:cells=120")
	assert.True(t, errors.Is(err, ErrMiss))

	glb := []byte("glTF\x02\x00\x00\x00binary")
	require.NoError(t, r.Set(ctx, "cube:size=10:cells=120", glb))

	got, err := r.Get(ctx, "cube:size=10:cells=120")
	require.NoError(t, err)
	assert.Equal(t, glb, got)

	assert.True(t, mr.Exists(keyPrefix+"cube:size=10:cells=120"))
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"cube:size=10:cells=120"))
}

func TestRedisExpires(t *testing.T) {
	ctx := context.Background()
	mr, r := setupRedis(t, time.Minute)

	require.NoError(t, r.Set(ctx, "k", []byte("v")))
	mr.FastForward(2 * time.Minute)

	_, err := r.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrMiss))
}

func TestRedisUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedis(context.Background(), config.RedisConfig{Addr: addr}, time.Minute, nil)
	assert.Error(t, err)
}

func TestRedisServerGoesAway(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	r, err := NewRedis(ctx, config.RedisConfig{Addr: mr.Addr()}, time.Minute, nil)
	require.NoError(t, err)
	defer r.Close()
	mr.Close()

	_, err = r.Get(ctx, "k")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMiss))
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, config.CacheConfig{Backend: "memory", MaxEntries: 8}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = New(ctx, config.CacheConfig{Backend: "none"}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, c)

	mr := miniredis.RunT(t)
	c, err = New(ctx, config.CacheConfig{Backend: "redis", TTL: time.Minute, Redis: config.RedisConfig{Addr: mr.Addr()}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, c)
	require.NoError(t, c.Close())

	_, err = New(ctx, config.CacheConfig{Backend: "memcached"}, nil)
	assert.Error(t, err)
}
