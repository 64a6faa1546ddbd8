package worker

import (
	"sync"
	"testing"
	"time"
)

func TestCaseLocksSerializeSameCase(t *testing.T) {
	locks := NewCaseLocks()

	var mu sync.Mutex
	inSection := 0
	maxInSection := 0

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.Do("case-1", func() {
				mu.Lock()
				inSection++
				if inSection > maxInSection {
					maxInSection = inSection
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inSection--
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	if maxInSection != 1 {
		t.Fatalf("lock held by %d goroutines at once", maxInSection)
	}
}

func TestCaseLocksAllowDistinctCasesInParallel(t *testing.T) {
	locks := NewCaseLocks()
	started := make(chan struct{})
	release := make(chan struct{})

	go locks.Do("case-1", func() {
		close(started)
		<-release
	})
	<-started

	done := make(chan struct{})
	go func() {
		locks.Do("case-2", func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unrelated case blocked behind case-1's lock")
	}
	close(release)
}

func TestCaseLocksReleaseEntries(t *testing.T) {
	locks := NewCaseLocks()
	for i := 0; i < 5; i++ {
		locks.Do("case-1", func() {})
	}

	locks.mu.Lock()
	remaining := len(locks.locks)
	locks.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected empty lock table, found %d entries", remaining)
	}
}
