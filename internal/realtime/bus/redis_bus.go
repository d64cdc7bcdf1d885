package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/realtime"
)

const defaultPrefix = "tutorloop:events"

// redisBus publishes each message on "<prefix>:<channel>", so every teacher
// has their own pub/sub channel. Forwarders pattern-subscribe to the prefix.
type redisBus struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func NewRedisBus(cfg Config, log *logger.Logger) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis.addr")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBus{
		log:    log.With("service", "RedisBus"),
		rdb:    rdb,
		prefix: channelPrefix(cfg.Channel),
	}, nil
}

// New picks the redis bus when an address is configured and the in-process
// bus otherwise.
func New(cfg Config, log *logger.Logger) (Bus, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		log.Warn("redis.addr not set; realtime events stay in-process")
		return NewMemoryBus(log), nil
	}
	return NewRedisBus(cfg, log)
}

func channelPrefix(configured string) string {
	p := strings.TrimRight(strings.TrimSpace(configured), ":")
	if p == "" {
		return defaultPrefix
	}
	return p
}

func redisChannel(prefix, channel string) string { return prefix + ":" + channel }

var errNoChannel = errors.New("realtime message has no channel")

func encodeMessage(prefix string, msg realtime.Message) (string, []byte, error) {
	if strings.TrimSpace(msg.Channel) == "" {
		return "", nil, errNoChannel
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return "", nil, err
	}
	return redisChannel(prefix, msg.Channel), raw, nil
}

// decodeMessage rejects payloads whose channel disagrees with the pub/sub
// channel they arrived on.
func decodeMessage(prefix, redisCh, payload string) (realtime.Message, error) {
	var msg realtime.Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return msg, err
	}
	if want := redisChannel(prefix, msg.Channel); msg.Channel == "" || want != redisCh {
		return msg, fmt.Errorf("message for %q arrived on %q", msg.Channel, redisCh)
	}
	return msg, nil
}

func (b *redisBus) Publish(ctx context.Context, msg realtime.Message) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis bus not initialized")
	}
	ch, raw, err := encodeMessage(b.prefix, msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, ch, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis bus not initialized")
	}
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.PSubscribe(ctx, redisChannel(b.prefix, "*"))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis psubscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				msg, err := decodeMessage(b.prefix, m.Channel, m.Payload)
				if err != nil {
					b.log.Warn("dropping realtime message", "redis_channel", m.Channel, "error", err)
					continue
				}
				onMsg(msg)
			}
		}
	}()
	return nil
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
