package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialSource_Numbering(t *testing.T) {
	src := NewSequentialSource("post")

	assert.Equal(t, "post-1", src.Random())
	assert.Equal(t, "post-2", src.TimeOrdered())

	src.Reset()
	assert.Equal(t, "post-1", src.Random())
}

func TestSequentialSource_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "rec-1", NewSequentialSource("").Random())
}

func TestSequentialSource_ThreadSafe(t *testing.T) {
	src := NewSequentialSource("x")

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := src.Random()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000)
}
