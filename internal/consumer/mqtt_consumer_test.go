package consumer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/codec"
	"github.com/Miraitowa2001/sms-web/internal/models"
)

type fakeSink struct {
	events []models.Event
}

func (f *fakeSink) HandleMessage(rec models.Event) {
	f.events = append(f.events, rec)
}

func newTestConsumer(t *testing.T) (*MQTTConsumer, *fakeSink) {
	t.Helper()
	decoder, err := codec.NewDecoder(false, "", "", zap.NewNop())
	require.NoError(t, err)
	sink := &fakeSink{}
	c := NewMQTTConsumer(nil, "smsweb/+/event", 1, decoder, sink, zap.NewNop())
	return c, sink
}

func TestHandleMessage_PayloadWithDevID(t *testing.T) {
	c, sink := newTestConsumer(t)

	err := c.handleMessage("smsweb/GW-001/event", []byte(`{"devId":"GW-001","type":998}`))
	require.NoError(t, err)

	require.Len(t, sink.events, 1)
	assert.Equal(t, "GW-001", sink.events[0].DevID())
	assert.Equal(t, 998, sink.events[0].Type())
}

func TestHandleMessage_DevIDFromTopic(t *testing.T) {
	c, sink := newTestConsumer(t)

	err := c.handleMessage("smsweb/GW-007/event", []byte(`{"type":100,"csq":20}`))
	require.NoError(t, err)

	require.Len(t, sink.events, 1)
	assert.Equal(t, "GW-007", sink.events[0].DevID())
}

func TestHandleMessage_MalformedJSON(t *testing.T) {
	c, sink := newTestConsumer(t)

	err := c.handleMessage("smsweb/GW-001/event", []byte(`not json`))
	assert.ErrorIs(t, err, codec.ErrDecode)
	assert.Empty(t, sink.events)
}

func TestHandleMessage_MissingTypeRejected(t *testing.T) {
	c, sink := newTestConsumer(t)

	err := c.handleMessage("smsweb/GW-001/event", []byte(`{"devId":"GW-001"}`))
	assert.ErrorIs(t, err, codec.ErrValidation)
	assert.Empty(t, sink.events)
}

func TestDevIDFromTopic(t *testing.T) {
	assert.Equal(t, "GW-001", devIDFromTopic("smsweb/GW-001/event"))
	assert.Equal(t, "", devIDFromTopic("smsweb/+/event"))
	assert.Equal(t, "", devIDFromTopic("event"))
}
