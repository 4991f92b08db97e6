// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lockmgr

import (
	"sync"
	"testing"
	"time"

	"github.com/efs-go/efs/internal/inodes"
)

func TestExclusiveExcludesExclusive(t *testing.T) {
	m := New()
	unlock := m.Lock(1)

	done := make(chan struct{})
	go func() {
		unlock2 := m.Lock(1)
		unlock2()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second Lock(1) acquired while first was still held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-done
}

func TestSharedAllowsConcurrentReaders(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	both := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.RLock(1)
			both <- struct{}{}
			time.Sleep(10 * time.Millisecond)
			unlock()
		}()
	}
	wg.Wait()
	if len(both) != 2 {
		t.Fatalf("expected both readers to hold the lock concurrently")
	}
}

func TestLockTwoOrdersByID(t *testing.T) {
	m := New()
	var order []inodes.ID
	var mu sync.Mutex

	unlock1 := m.LockTwo(5, 2)
	go func() {
		unlock2 := m.LockTwo(2, 5)
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		unlock2()
	}()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	order = append(order, 5)
	mu.Unlock()
	unlock1()
	time.Sleep(20 * time.Millisecond)

	if len(order) != 2 || order[0] != 5 {
		t.Fatalf("expected first LockTwo holder (5,2) to run before the reversed (2,5) attempt, got %v", order)
	}
}

func TestLockTwoSameIDTakesOneLock(t *testing.T) {
	m := New()
	unlock := m.LockTwo(3, 3)
	done := make(chan struct{})
	go func() {
		unlock2 := m.Lock(3)
		unlock2()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("LockTwo(3, 3) did not take an exclusive lock on 3")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-done
}

func TestEntriesAreReclaimed(t *testing.T) {
	m := New()
	unlock := m.Lock(7)
	unlock()
	m.mu.Lock()
	_, exists := m.locks[7]
	m.mu.Unlock()
	if exists {
		t.Fatalf("entry for id 7 should have been reclaimed after last unlock")
	}
}
