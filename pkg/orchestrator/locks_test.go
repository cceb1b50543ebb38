package orchestrator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCaseLocks(t *testing.T) {
	locks := newCaseLocks()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			release := locks.lock("case-1")
			defer release()

			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, locks.size())
}

func TestCaseLocks_IndependentKeys(t *testing.T) {
	locks := newCaseLocks()

	releaseA := locks.lock("a")
	releaseB := locks.lock("b")

	assert.Equal(t, 2, locks.size())

	releaseA()
	releaseB()

	assert.Equal(t, 0, locks.size())
}
