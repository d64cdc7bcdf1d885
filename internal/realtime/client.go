package realtime

import (
	"github.com/google/uuid"

	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan Message
	done     chan struct{}
	Logger   *logger.Logger
}

// Done is closed when the hub drops the client.
func (c *Client) Done() <-chan struct{} { return c.done }
