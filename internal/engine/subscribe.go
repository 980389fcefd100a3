package engine

// subscriberBuffer is the per-subscriber backlog of tick stats. A subscriber
// that falls further behind misses ticks rather than stalling the loop.
const subscriberBuffer = 64

// Subscribe registers for post-tick Stats. The channel is closed when the run
// ends or when Unsubscribe is called. Subscribing to an ended run returns an
// already closed channel.
func (s *Simulation) Subscribe() (int, <-chan Stats) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan Stats, subscriberBuffer)
	if s.subs == nil {
		close(ch)
		return -1, ch
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe closes and forgets a subscription. Unknown ids are ignored.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Simulation) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

func (s *Simulation) publish(st Stats) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- st:
		default:
			s.log.Debug("subscriber lagging, tick dropped", "subscriber", id, "tick", st.Tick)
		}
	}
}

// closeSubscribers sends the final stats to everyone and closes all channels.
// Later calls are no-ops.
func (s *Simulation) closeSubscribers() {
	final := s.Stats()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subs == nil {
		return
	}
	for _, ch := range s.subs {
		select {
		case ch <- final:
		default:
		}
		close(ch)
	}
	s.subs = nil
}
