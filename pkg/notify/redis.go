package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/idena-watch/flipwatch/pkg/scan"
	"github.com/idena-watch/flipwatch/pkg/utils"
)

// OffenderStream is the Redis stream newly observed repeat offenders are
// published to.
const OffenderStream = "flipwatch:repeat-offenders"

const defaultStreamMaxLen = 10000

// Publisher pushes repeat-offender events onto a Redis stream so downstream
// consumers (bots, dashboards) can react without polling the HTTP API.
// Publishing is best-effort: a broken Redis never fails a scan.
type Publisher struct {
	client       *redis.Client
	logger       *zap.Logger
	streamMaxLen int64
}

// NewPublisher connects to Redis using environment variables:
//   - REDIS_HOST: Redis host (default: "localhost")
//   - REDIS_PORT: Redis port (default: "6379")
//   - REDIS_PASSWORD: Redis password (default: "")
//   - REDIS_DB: Redis database number (default: 0)
//   - REDIS_STREAM_MAXLEN: max entries kept on the stream (default: 10000)
func NewPublisher(ctx context.Context, logger *zap.Logger) (*Publisher, error) {
	host := utils.Env("REDIS_HOST", "localhost")
	port := utils.Env("REDIS_PORT", "6379")
	password := utils.Env("REDIS_PASSWORD", "")
	db := utils.EnvInt("REDIS_DB", 0)
	streamMaxLen := utils.EnvInt64("REDIS_STREAM_MAXLEN", defaultStreamMaxLen)

	addr := fmt.Sprintf("%s:%s", host, port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     5,
		MinIdleConns: 1,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", addr),
		zap.Int("db", db))

	return &Publisher{client: rdb, logger: logger, streamMaxLen: streamMaxLen}, nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// Health checks if Redis is healthy.
func (p *Publisher) Health(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// PublishRepeatOffenders emits one stream entry per repeat offender in the
// report. Errors are logged, not returned, so a Redis outage never affects
// the scan itself.
func (p *Publisher) PublishRepeatOffenders(ctx context.Context, report *scan.EpochReport) {
	for _, e := range report.Entries {
		if !e.RepeatOffender {
			continue
		}
		args := &redis.XAddArgs{
			Stream: OffenderStream,
			Values: map[string]interface{}{
				"epoch":   report.Epoch,
				"address": e.Address,
				"count":   e.Count,
			},
		}
		if p.streamMaxLen > 0 {
			args.MaxLen = p.streamMaxLen
			args.Approx = true
		}
		if err := p.client.XAdd(ctx, args).Err(); err != nil {
			p.logger.Warn("Failed to publish repeat offender",
				zap.Uint64("epoch", report.Epoch),
				zap.String("address", e.Address),
				zap.Error(err))
		}
	}
}
