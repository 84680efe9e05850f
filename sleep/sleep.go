// Package sleep implements an efficient, race-free relationship between a
// single waiting goroutine (the Sleeper) and any number of notifying
// goroutines (each holding a Waker). It is the suspend/resume primitive a PCB
// uses to park a caller until some condition on the PCB changes
package sleep

import "sync"

// Waker is a handle that a long-lived owner (a PCB) holds and that any
// number of event sources can assert. The asserted flag lives on the Waker,
// not on whichever Sleeper happens to currently be listening, so a wake that
// races a caller re-registering is never lost
type Waker struct {
	mu       sync.Mutex
	asserted bool
	s        *Sleeper
}

// Assert marks w as asserted and wakes its associated Sleeper, if any. Assert
// is idempotent: asserting an already-asserted waker is a no-op
func (w *Waker) Assert() {
	w.mu.Lock()
	if w.asserted {
		w.mu.Unlock()
		return
	}
	w.asserted = true
	s := w.s
	w.mu.Unlock()

	if s != nil {
		s.signal()
	}
}

// Clear clears the asserted state of w without consuming a wake-up
func (w *Waker) Clear() {
	w.mu.Lock()
	w.asserted = false
	w.mu.Unlock()
}

// IsAsserted returns whether w is currently asserted
func (w *Waker) IsAsserted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.asserted
}

// HasListener reports whether some Sleeper is currently registered to
// receive w's assertion, i.e. whether a goroutine is (or may soon be)
// parked in that Sleeper's Fetch waiting on w. This is distinct from
// IsAsserted: a registered-but-not-yet-asserted waker still has a listener
// that must not be torn out from under it
func (w *Waker) HasListener() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s != nil
}

// tryConsume atomically checks and clears the asserted flag, reporting
// whether it was set
func (w *Waker) tryConsume() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.asserted {
		w.asserted = false
		return true
	}
	return false
}

type waiterEntry struct {
	w  *Waker
	id int
}

// Sleeper waits on a set of Wakers, returning the id associated with whichever
// one is asserted. The zero value is an empty Sleeper ready to use
type Sleeper struct {
	mu     sync.Mutex
	wakers []waiterEntry
	next   int
	wakeCh chan struct{}
}

// chLocked returns the wake channel, creating it on first use. Callers must
// hold s.mu
func (s *Sleeper) chLocked() chan struct{} {
	if s.wakeCh == nil {
		s.wakeCh = make(chan struct{}, 1)
	}
	return s.wakeCh
}

// AddWaker associates w with s under the given id. A Waker asserted after
// this call wakes s; the id is returned by Fetch to tell the caller which
// waker fired
func (s *Sleeper) AddWaker(w *Waker, id int) {
	s.mu.Lock()
	s.chLocked()
	s.wakers = append(s.wakers, waiterEntry{w, id})
	s.mu.Unlock()

	w.mu.Lock()
	w.s = s
	w.mu.Unlock()
}

// signal wakes s if it is blocked in Fetch, or primes it to return
// immediately on the next call
func (s *Sleeper) signal() {
	s.mu.Lock()
	ch := s.chLocked()
	s.mu.Unlock()

	select {
	case ch <- struct{}{}:
	default:
	}
}

// Fetch returns the id of an asserted waker, consuming its assertion. If
// block is true and no waker is asserted, Fetch parks until one is. Wakers
// are visited round-robin across calls so that a busy waker cannot starve the
// others
func (s *Sleeper) Fetch(block bool) (int, bool) {
	for {
		s.mu.Lock()
		wakers := s.wakers
		start := s.next
		ch := s.chLocked()
		s.mu.Unlock()

		n := len(wakers)
		for i := 0; i < n; i++ {
			idx := (start + i) % n
			e := wakers[idx]
			if e.w.tryConsume() {
				s.mu.Lock()
				s.next = (idx + 1) % n
				s.mu.Unlock()
				return e.id, true
			}
		}

		if !block {
			return 0, false
		}

		<-ch
	}
}

// Done releases every waker registered with s, so that future assertions no
// longer attempt to signal it
func (s *Sleeper) Done() {
	s.mu.Lock()
	wakers := s.wakers
	s.wakers = nil
	s.mu.Unlock()

	for _, e := range wakers {
		e.w.mu.Lock()
		if e.w.s == s {
			e.w.s = nil
		}
		e.w.mu.Unlock()
	}
}
