//go:build integration

package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	platformredis "campusid/internal/platform/redis"
	dErrors "campusid/pkg/domain-errors"
	"campusid/pkg/testutil/containers"
)

type LockerSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	locker *platformredis.Locker
}

func TestLockerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(LockerSuite))
}

func (s *LockerSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.locker = s.redis.Client.Locker()
}

func (s *LockerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *LockerSuite) TestMutualExclusion() {
	ctx := context.Background()
	const goroutines = 20

	var (
		wg      sync.WaitGroup
		holders atomic.Int32
		overlap atomic.Int32
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := s.locker.Lock(ctx, "identity:alloc:Undergraduate")
			if err != nil {
				return
			}
			if holders.Add(1) > 1 {
				overlap.Add(1)
			}
			time.Sleep(2 * time.Millisecond)
			holders.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	s.Equal(int32(0), overlap.Load(), "lock holders must never overlap")
}

func (s *LockerSuite) TestContextCancelWhileWaiting() {
	unlock, err := s.locker.Lock(context.Background(), "identity:alloc:Tenured")
	s.Require().NoError(err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.locker.Lock(ctx, "identity:alloc:Tenured")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *LockerSuite) TestReleaseFreesKey() {
	ctx := context.Background()
	unlock, err := s.locker.Lock(ctx, "identity:alloc:Alumni")
	s.Require().NoError(err)
	unlock()

	unlock, err = s.locker.Lock(ctx, "identity:alloc:Alumni")
	s.Require().NoError(err)
	unlock()
}
