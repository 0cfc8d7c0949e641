package device

import (
	"sync"
	"time"
)

// MockOutput is a scripted Output for tests: it records lifecycle and write
// traffic and can inject failures or per-write latency. Unlike real
// backends it is safe for concurrent use, since tests poke at its counters
// while the worker goroutine drives it.
type MockOutput struct {
	mu sync.Mutex

	// Failure injection. EnableErrs is consumed one entry per Enable call,
	// so tests can script a failure followed by a successful retry.
	OpenErr    error
	EnableErrs []error
	WriteErr   error

	// WriteDelay makes each Write block, so tests can interrupt mid-file.
	WriteDelay time.Duration

	opened   bool
	enabled  bool
	closed   bool
	opens    int
	enables  int
	disables int
	closes   int
	writes   int
	written  []byte
}

func (m *MockOutput) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return m.OpenErr
	}
	m.opened = true
	m.opens++
	return nil
}

func (m *MockOutput) Enable() error {
	m.mu.Lock()
	if !m.opened {
		m.mu.Unlock()
		return ErrNotOpen
	}
	if len(m.EnableErrs) > 0 {
		err := m.EnableErrs[0]
		m.EnableErrs = m.EnableErrs[1:]
		if err != nil {
			m.mu.Unlock()
			return err
		}
	}
	if m.enabled {
		m.mu.Unlock()
		return nil
	}
	m.enabled = true
	m.enables++
	m.mu.Unlock()
	return nil
}

func (m *MockOutput) Disable() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return nil
	}
	m.enabled = false
	m.disables++
	return nil
}

func (m *MockOutput) Write(p []byte) (int, error) {
	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return 0, ErrNotEnabled
	}
	if m.WriteErr != nil {
		err := m.WriteErr
		m.mu.Unlock()
		return 0, err
	}
	m.writes++
	m.written = append(m.written, p...)
	delay := m.WriteDelay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return len(p), nil
}

func (m *MockOutput) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.enabled = false
	m.opened = false
	m.closed = true
	m.closes++
	return nil
}

func (m *MockOutput) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *MockOutput) EnableCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enables
}

func (m *MockOutput) DisableCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disables
}

func (m *MockOutput) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

func (m *MockOutput) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Written returns a copy of every byte pushed through Write, in order.
func (m *MockOutput) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.written))
	copy(out, m.written)
	return out
}
