package device

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Manual is a clock-driven backend that pulls one period of frames every
// interval and discards them. It stands in for hardware in tests and in
// headless runs; Fail injects a device fault.
type Manual struct {
	format   Format
	interval time.Duration
	frames   int

	mu     sync.Mutex
	err    error
	pulled uint64
	last   []float32
	stop   chan struct{}
	done   chan struct{}
}

// NewManual returns a backend pulling interval worth of frames per tick.
func NewManual(format Format, interval time.Duration) *Manual {
	frames := max(int(int64(format.SampleRate)*int64(interval)/int64(time.Second)), 1)
	return &Manual{format: format, interval: interval, frames: frames}
}

// Format implements Backend.
func (m *Manual) Format() Format { return m.format }

// PeriodFrames returns the number of frames pulled per tick.
func (m *Manual) PeriodFrames() int { return m.frames }

// Start implements Backend.
func (m *Manual) Start(src Source) error {
	if err := m.format.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return errors.Mark(errors.New("manual: already started"), ErrConfigurationRejected)
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.last = make([]float32, m.frames*m.format.Channels)
	go m.run(src, m.stop, m.done)
	return nil
}

func (m *Manual) run(src Source, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	buf := make([]float32, m.frames*m.format.Channels)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		m.mu.Lock()
		failed := m.err != nil
		m.mu.Unlock()
		if failed {
			continue
		}
		src.Fill(buf)
		m.mu.Lock()
		m.pulled += uint64(m.frames)
		copy(m.last, buf)
		m.mu.Unlock()
	}
}

// Fail marks the device as failed. Pulls stop until Close.
func (m *Manual) Fail(err error) {
	if !errors.Is(err, ErrDeviceUnavailable) && !errors.Is(err, ErrConfigurationRejected) {
		err = errors.Mark(err, ErrDeviceDisconnected)
	}
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Err implements Backend.
func (m *Manual) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Pulled returns the total frames pulled so far.
func (m *Manual) Pulled() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pulled
}

// Last returns a copy of the most recent period.
func (m *Manual) Last() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float32(nil), m.last...)
}

// Close implements Backend.
func (m *Manual) Close() error {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop = nil
	m.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}
