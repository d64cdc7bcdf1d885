package bus

import (
	"context"

	"github.com/yungbote/tutorloop-backend/internal/realtime"
)

// Bus carries realtime messages between processes. Workers publish job
// events; API servers forward everything into their local hub.
type Bus interface {
	Publish(ctx context.Context, msg realtime.Message) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error
	Close() error
}

type Config struct {
	Addr    string `mapstructure:"addr"`
	Channel string `mapstructure:"channel"`
}
