package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"papertrade/config"
	"papertrade/internal/model"
	"papertrade/utils"
)

type RedisSession struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisSession(redisClient *redis.Client, cfg *config.Config) *RedisSession {
	return &RedisSession{redis: redisClient, cfg: cfg}
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

// Create stores the session under a fresh opaque token and returns the token.
func (s *RedisSession) Create(ctx context.Context, sess model.Session) (token string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("Create session start", slog.String("rqID", rqID), slog.Int64("userID", sess.UserID))

	sessionJson, err := json.Marshal(sess)
	if err != nil {
		slog.Error("can't marshall session in Create", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return "", errors.New("can't marshall session")
	}

	token = uuid.NewString()
	err = s.redis.Set(ctx, sessionKey(token), sessionJson, s.cfg.Session.Expiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return "", err
	}

	slog.Debug("Create session completed", slog.String("rqID", rqID))

	return token, nil
}

func (s *RedisSession) Get(ctx context.Context, token string) (model.Session, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("Get session start", slog.String("rqID", rqID))

	res, err := s.redis.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Session{}, ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Session{}, err
	}

	sess := model.Session{}
	err = json.Unmarshal([]byte(res), &sess)
	if err != nil {
		slog.Error(
			"can't unmarshall session in Get",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return model.Session{}, errors.New("can't unmarshall session")
	}

	slog.Debug("Get session finished", slog.String("rqID", rqID))

	return sess, nil
}

func (s *RedisSession) Delete(ctx context.Context, token string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("Delete session start", slog.String("rqID", rqID))

	err := s.redis.Del(ctx, sessionKey(token)).Err()
	if err != nil {
		slog.Error("failed on redis.Del", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("Delete session finished", slog.String("rqID", rqID))

	return nil
}
