package snapshot

import "sync"

// Serializer runs at most one write per key at a time. Requests arriving
// while a write for the same key is in flight collapse into a single
// follow-up write, so a burst of save requests produces exactly one trailing
// write capturing the final state. Keys are independent; a slow write for
// one path never delays another.
type Serializer struct {
	mu    sync.Mutex
	slots map[string]*writeSlot
	wg    sync.WaitGroup
}

type writeSlot struct {
	inflight bool
	pending  bool
}

func NewSerializer() *Serializer {
	return &Serializer{slots: make(map[string]*writeSlot)}
}

// Do schedules write for key. If a write for key is already running the
// request is coalesced into one pending follow-up and Do returns
// immediately; otherwise the write starts on a new goroutine.
func (s *Serializer) Do(key string, write func()) {
	s.mu.Lock()
	slot, ok := s.slots[key]
	if !ok {
		slot = &writeSlot{}
		s.slots[key] = slot
	}
	if slot.inflight {
		slot.pending = true
		s.mu.Unlock()
		return
	}
	slot.inflight = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		for {
			write()
			s.mu.Lock()
			if slot.pending {
				slot.pending = false
				s.mu.Unlock()
				continue
			}
			slot.inflight = false
			s.mu.Unlock()
			return
		}
	}()
}

// Wait blocks until all in-flight and pending writes have finished.
func (s *Serializer) Wait() {
	s.wg.Wait()
}
