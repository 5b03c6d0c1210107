package ipc

import (
	"testing"
	"time"

	"github.com/confluentinc/ducktape-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	receiver, err := Listen(20000, 20100)
	require.NoError(t, err)
	defer receiver.Close()

	sender, err := Dial(receiver.Addr(), "worker-1")
	require.NoError(t, err)
	defer sender.Close()

	done := make(chan types.Reply, 1)
	go func() {
		reply, sendErr := sender.Send(types.Event{
			TestID:    "tests.suite.test_it",
			EventType: types.EventReady,
		})
		require.NoError(t, sendErr)
		done <- reply
	}()

	event, err := receiver.Recv(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "worker-1", event.SourceID)
	assert.Equal(t, types.EventReady, event.EventType)

	require.NoError(t, receiver.Send(types.Reply{Ack: true, SourceID: event.SourceID, EventID: event.EventID}))

	select {
	case reply := <-done:
		assert.True(t, reply.Ack)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reply")
	}
}

func TestRecvTimeoutWhenNothingSent(t *testing.T) {
	receiver, err := Listen(20101, 20200)
	require.NoError(t, err)
	defer receiver.Close()

	_, err = receiver.Recv(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSendToUnknownSourceFails(t *testing.T) {
	receiver, err := Listen(20201, 20300)
	require.NoError(t, err)
	defer receiver.Close()

	err = receiver.Send(types.Reply{SourceID: "never-connected"})
	assert.Error(t, err)
}

func TestEventIDIncrementsAcrossSends(t *testing.T) {
	receiver, err := Listen(20301, 20400)
	require.NoError(t, err)
	defer receiver.Close()

	sender, err := Dial(receiver.Addr(), "worker-2")
	require.NoError(t, err)
	defer sender.Close()

	for i := 0; i < 3; i++ {
		go func() {
			_, _ = sender.Send(types.Event{EventType: types.EventLog})
		}()
		event, recvErr := receiver.Recv(5 * time.Second)
		require.NoError(t, recvErr)
		assert.Equal(t, i, event.EventID)
		require.NoError(t, receiver.Send(types.Reply{Ack: true, SourceID: event.SourceID, EventID: event.EventID}))
	}
}
