package starlark

import (
	"sync"
	"testing"

	"github.com/leapstack-labs/leaptmpl/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestThreadPool_Reuse(t *testing.T) {
	pool := NewThreadPool(2, testutil.NewTestLogger(t))

	a := pool.Get("a")
	b := pool.Get("b")
	c := pool.Get("c")
	assert.Equal(t, "a", a.Name)
	assert.Equal(t, 0, pool.Size())

	pool.Put(a)
	pool.Put(b)
	pool.Put(c)
	assert.Equal(t, 2, pool.Size(), "threads beyond maxSize are dropped")

	again := pool.Get("again")
	assert.Same(t, b, again)
	assert.Equal(t, "again", again.Name)
}

func TestThreadPool_DefaultSize(t *testing.T) {
	pool := NewThreadPool(0, nil)
	for range 20 {
		pool.Put(&starlark.Thread{})
	}
	assert.Equal(t, 16, pool.Size())
}

func TestThreadPool_PrintLogs(t *testing.T) {
	logger, buf := testutil.NewBufferLogger()
	pool := NewThreadPool(1, logger)

	thread := pool.Get("greet")
	_, err := starlark.ExecFile(thread, "p.star", `print("hello")`, nil) //nolint:staticcheck // SA1019
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "starlark print")
	assert.Contains(t, buf.String(), "hello")
}

func TestThreadPool_Concurrent(t *testing.T) {
	pool := NewThreadPool(4, nil)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			th := pool.Get("x")
			pool.Put(th)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, pool.Size(), 4)
}
