package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenLockerReleasesEntries(t *testing.T) {
	l := newTokenLocker()

	unlock := l.Lock("a")
	assert.Len(t, l.locks, 1)
	unlock()
	assert.Empty(t, l.locks, "released keys must not accumulate")
}

func TestTokenLockerIndependentKeys(t *testing.T) {
	l := newTokenLocker()

	unlockA := l.Lock("a")
	done := make(chan struct{})
	go func() {
		// Must not block on key "a" being held.
		unlockB := l.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}

func TestTokenLockerMutualExclusion(t *testing.T) {
	l := newTokenLocker()

	var counter int
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("shared")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Empty(t, l.locks)
}
