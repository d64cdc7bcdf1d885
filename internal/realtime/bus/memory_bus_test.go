package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/realtime"
)

func TestMemoryBusForwards(t *testing.T) {
	b := NewMemoryBus(logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []realtime.Message
	require.NoError(t, b.StartForwarder(ctx, func(m realtime.Message) { got = append(got, m) }))
	require.NoError(t, b.Publish(ctx, realtime.Message{Channel: "t1", Event: realtime.EventJobCreated}))
	require.NoError(t, b.Publish(ctx, realtime.Message{Channel: "t1", Event: realtime.EventJobDone}))

	require.Len(t, got, 2)
	assert.Equal(t, realtime.EventJobCreated, got[0].Event)
	assert.Equal(t, realtime.EventJobDone, got[1].Event)

	require.NoError(t, b.Close())
	assert.Error(t, b.Publish(ctx, realtime.Message{Channel: "t1"}))
}

func TestNewWithoutRedisUsesMemory(t *testing.T) {
	b, err := New(Config{}, logger.Nop())
	require.NoError(t, err)
	_, ok := b.(*memoryBus)
	assert.True(t, ok)

	_, err = NewRedisBus(Config{}, logger.Nop())
	assert.Error(t, err)
}

func TestRedisChannelCodec(t *testing.T) {
	prefix := channelPrefix(" tutorloop:events: ")
	assert.Equal(t, "tutorloop:events", prefix)
	assert.Equal(t, defaultPrefix, channelPrefix(""))

	msg := realtime.Message{Channel: "teacher-1", Event: realtime.EventJobProgress, Data: map[string]any{"progress": 40}}
	ch, raw, err := encodeMessage(prefix, msg)
	require.NoError(t, err)
	assert.Equal(t, "tutorloop:events:teacher-1", ch)

	got, err := decodeMessage(prefix, ch, string(raw))
	require.NoError(t, err)
	assert.Equal(t, msg.Channel, got.Channel)
	assert.Equal(t, msg.Event, got.Event)

	_, err = decodeMessage(prefix, "tutorloop:events:teacher-2", string(raw))
	assert.Error(t, err, "payload channel must match the pub/sub channel")

	_, _, err = encodeMessage(prefix, realtime.Message{Event: realtime.EventJobDone})
	assert.ErrorIs(t, err, errNoChannel)
}
