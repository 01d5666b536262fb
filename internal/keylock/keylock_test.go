package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockSerializesSameKey(t *testing.T) {
	m := New()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("game-1")
			defer unlock()
			v := counter
			v++
			counter = v
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, m.Len())
}

func TestUnlockIsIdempotent(t *testing.T) {
	m := New()
	unlock := m.Lock("a")
	unlock()
	unlock()
	assert.Equal(t, 0, m.Len())

	// key is reusable afterwards
	unlock = m.Lock("a")
	assert.Equal(t, 1, m.Len())
	unlock()
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	m := New()
	ua := m.Lock("a")
	defer ua()
	done := make(chan struct{})
	go func() {
		ub := m.Lock("b")
		ub()
		close(done)
	}()
	<-done
}
