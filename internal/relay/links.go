package relay

import (
	"sort"
	"sync"
)

// LinkSet is the set of connected browser links. Outbound frames go to all
// of them.
type LinkSet map[string]struct{}

func (s LinkSet) Add(id string) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

func (s LinkSet) Remove(id string) bool {
	if _, ok := s[id]; !ok {
		return false
	}
	delete(s, id)
	return true
}

func (s LinkSet) Len() int { return len(s) }

func (s LinkSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type linkEvent struct {
	id string
	up bool
}

// inbox is the only state shared with transport callbacks. Callbacks append
// under the lock and return; the loop swaps the contents out once per tick.
type inbox struct {
	mu     sync.Mutex
	data   []byte
	events []linkEvent
}

func (in *inbox) write(p []byte) {
	in.mu.Lock()
	in.data = append(in.data, p...)
	in.mu.Unlock()
}

func (in *inbox) event(e linkEvent) {
	in.mu.Lock()
	in.events = append(in.events, e)
	in.mu.Unlock()
}

func (in *inbox) take() ([]linkEvent, []byte) {
	in.mu.Lock()
	defer in.mu.Unlock()
	events, data := in.events, in.data
	in.events, in.data = nil, nil
	return events, data
}
