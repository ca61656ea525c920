package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) TestStartsClosed() {
	b := New("ratelimit-redis")
	s.False(b.IsOpen())
	s.Equal(StateClosed, b.State())
	s.Equal("ratelimit-redis", b.Name())
	s.Equal("closed", b.State().String())
}

func (s *BreakerSuite) TestOpensOnConsecutiveFailures() {
	b := New("primary", WithFailureThreshold(3))

	for range 2 {
		useFallback, change := b.RecordFailure()
		s.False(useFallback)
		s.False(change.Opened)
	}

	useFallback, change := b.RecordFailure()
	s.True(useFallback)
	s.True(change.Opened)
	s.Equal("open", b.State().String())

	s.Run("further failures stay open without a transition", func() {
		useFallback, change := b.RecordFailure()
		s.True(useFallback)
		s.False(change.Opened)
	})
}

func (s *BreakerSuite) TestSuccessWhileClosedClearsFailures() {
	b := New("primary", WithFailureThreshold(3))
	b.RecordFailure()
	b.RecordFailure()

	usePrimary, _ := b.RecordSuccess()
	s.True(usePrimary)

	b.RecordFailure()
	b.RecordFailure()
	s.False(b.IsOpen())
	b.RecordFailure()
	s.True(b.IsOpen())
}

func (s *BreakerSuite) TestRecovery() {
	b := New("primary", WithFailureThreshold(1), WithSuccessThreshold(3))
	b.RecordFailure()
	s.Require().True(b.IsOpen())

	b.RecordSuccess()
	b.RecordSuccess()
	// a failure mid-recovery restarts the success run
	b.RecordFailure()

	for range 2 {
		usePrimary, change := b.RecordSuccess()
		s.False(usePrimary)
		s.False(change.Closed)
	}
	usePrimary, change := b.RecordSuccess()
	s.True(usePrimary)
	s.True(change.Closed)
	s.False(b.IsOpen())
}

func (s *BreakerSuite) TestReset() {
	b := New("primary", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	s.Equal(StateClosed, b.State())
}

func TestBreakerIgnoresNonPositiveThresholds(t *testing.T) {
	b := New("primary", WithFailureThreshold(0), WithSuccessThreshold(-1))
	for range 4 {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen())
	b.RecordFailure()
	require.True(t, b.IsOpen())
}

func TestBreakerConcurrentFailuresOpenOnce(t *testing.T) {
	b := New("primary", WithFailureThreshold(10))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opened)
	assert.True(t, b.IsOpen())
}
