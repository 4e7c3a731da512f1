package camarray

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBarrierReleasesAllPartiesTogether(t *testing.T) {
	const parties = 4
	b := NewBarrier(parties)

	released := make(chan int, parties)
	var wg sync.WaitGroup
	wg.Add(parties)
	for i := 0; i < parties; i++ {
		go func(i int) {
			defer wg.Done()
			b.Wait()
			released <- i
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("barrier did not release all parties")
	}
	assert.Len(t, released, parties)
}

func TestBarrierIsReusable(t *testing.T) {
	const parties = 3
	b := NewBarrier(parties)

	for round := 0; round < 3; round++ {
		var wg sync.WaitGroup
		wg.Add(parties)
		for i := 0; i < parties; i++ {
			go func() {
				defer wg.Done()
				b.Wait()
			}()
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("barrier round %d did not release", round)
		}
	}
}
