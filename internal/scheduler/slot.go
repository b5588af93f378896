package scheduler

// Slot is the one-capacity buffer resource from spec §3/§4.4: at most one
// holder at a time, only the holder may proceed, and waiters are granted
// the slot in FIFO arrival order once it is released.
type Slot struct {
	held    bool
	waiters []func(release func())
}

// Acquire requests the slot. If it is free, onGranted runs synchronously
// (within the caller's own event) and is passed a release function that
// must be called exactly once when the holder is done with the slot. If
// the slot is held, onGranted is queued and will run (synchronously, from
// within whichever Release call frees the slot) once it becomes the
// holder's turn.
func (s *Slot) Acquire(onGranted func(release func())) {
	if !s.held {
		s.held = true
		onGranted(s.release)
		return
	}
	s.waiters = append(s.waiters, onGranted)
}

func (s *Slot) release() {
	if !s.held {
		panic("scheduler: Slot released while not held")
	}
	if len(s.waiters) == 0 {
		s.held = false
		return
	}
	next := s.waiters[0]
	s.waiters = s.waiters[1:]
	// Slot stays held; ownership passes directly to the next waiter so an
	// observer can never see it as free while a waiter is queued.
	next(s.release)
}

// Held reports whether the slot currently has a holder, used by property
// tests verifying the buffer-exclusion invariant.
func (s *Slot) Held() bool { return s.held }
