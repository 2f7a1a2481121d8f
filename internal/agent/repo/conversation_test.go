package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type RedisRepositorySuite struct {
	suite.Suite
	mr   *miniredis.Miniredis
	rdb  *redis.Client
	repo *RedisConversationRepository
}

func (s *RedisRepositorySuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.rdb = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.repo = NewRedisConversationRepository(s.rdb, time.Hour, 4)
}

func (s *RedisRepositorySuite) TearDownTest() {
	s.Require().NoError(s.rdb.Close())
}

func (s *RedisRepositorySuite) TestAppendTrimsToCapacity() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.repo.AddMessages(ctx, "sess",
			schema.UserMessage(fmt.Sprintf("u%d", i)),
			schema.AssistantMessage(fmt.Sprintf("a%d", i), nil),
		))
	}

	h, err := s.repo.LoadHistory(ctx, "sess")
	s.Require().NoError(err)
	s.Equal([]string{"u1", "a1", "u2", "a2"}, contents(h.Messages))
	s.Equal(schema.Assistant, h.Messages[1].Role)

	n, err := s.repo.GetMessageCount(ctx, "sess")
	s.Require().NoError(err)
	s.Equal(4, n)
}

func (s *RedisRepositorySuite) TestAppendRefreshesTTL() {
	ctx := context.Background()
	s.Require().NoError(s.repo.AddMessages(ctx, "ttl", schema.UserMessage("hi")))
	s.Equal(time.Hour, s.mr.TTL("conversation:ttl:messages"))

	s.mr.FastForward(2 * time.Hour)
	h, err := s.repo.LoadHistory(ctx, "ttl")
	s.Require().NoError(err)
	s.Empty(h.Messages)
}

func (s *RedisRepositorySuite) TestClearAndMissingSession() {
	ctx := context.Background()
	s.Require().NoError(s.repo.AddMessages(ctx, "gone", schema.UserMessage("x")))
	s.Require().NoError(s.repo.ClearHistory(ctx, "gone"))

	h, err := s.repo.LoadHistory(ctx, "gone")
	s.Require().NoError(err)
	s.Empty(h.Messages)

	n, err := s.repo.GetMessageCount(ctx, "never-seen")
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *RedisRepositorySuite) TestZeroCapacityStoresNothing() {
	ctx := context.Background()
	repo := NewRedisConversationRepository(s.rdb, time.Hour, 0)
	s.Require().NoError(repo.AddMessages(ctx, "off", schema.UserMessage("x")))
	s.False(s.mr.Exists("conversation:off:messages"))
}

func (s *RedisRepositorySuite) TestServerDownIsWrapped() {
	s.mr.Close()
	err := s.repo.AddMessages(context.Background(), "down", schema.UserMessage("x"))
	s.Require().Error(err)
	s.Contains(err.Error(), "redis operation failed")
}

func TestRedisRepositorySuite(t *testing.T) {
	suite.Run(t, new(RedisRepositorySuite))
}
