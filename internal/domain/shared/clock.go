package shared

import "time"

// Clock abstracts time so spawn cycles and TTL caches can be tested without
// sleeping.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// RealClock implements Clock with the system clock, always in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now().UTC() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// NewRealClock returns a Clock backed by the system time.
func NewRealClock() Clock { return RealClock{} }

// MockClock is a controllable clock for tests. Sleep advances instantly.
type MockClock struct {
	CurrentTime time.Time
}

// NewMockClock creates a MockClock starting at startTime, or at the current
// time when startTime is zero.
func NewMockClock(startTime time.Time) *MockClock {
	if startTime.IsZero() {
		startTime = time.Now().UTC()
	}
	return &MockClock{CurrentTime: startTime}
}

func (m *MockClock) Now() time.Time { return m.CurrentTime }

func (m *MockClock) Sleep(d time.Duration) { m.CurrentTime = m.CurrentTime.Add(d) }

// Advance moves the mock clock forward by d.
func (m *MockClock) Advance(d time.Duration) { m.CurrentTime = m.CurrentTime.Add(d) }
