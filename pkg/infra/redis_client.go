package infra

import (
	"context"

	"github.com/go-redis/redis/v8"
)

func ProvideRedisClient(env *Env, loggerFactory *LoggerFactory) *redis.Client {
	logger := loggerFactory.Create("RedisClient").Sugar()

	return redis.NewClient(&redis.Options{
		Addr: env.RedisHost,
		DB:   env.RedisDb,
		OnConnect: func(ctx context.Context, cn *redis.Conn) error {
			logger.Infof("redis connected to host[%v] db[%v]", env.RedisHost, env.RedisDb)
			return nil
		},
	})
}
