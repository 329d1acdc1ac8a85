package browser

import (
	"sync"

	"github.com/chromedp/cdproto/network"
)

// responseMeta captures the document response of the most recent
// navigation from CDP network events.
type responseMeta struct {
	mu       sync.RWMutex
	status   int
	received bool
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.received = true
	m.mu.Unlock()
}

func (m *responseMeta) reset() {
	m.mu.Lock()
	m.status = 0
	m.received = false
	m.mu.Unlock()
}

func (m *responseMeta) snapshot() (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.received
}
