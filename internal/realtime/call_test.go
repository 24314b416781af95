package realtime_test

import (
	"testing"
	"time"

	"talkio/backend/internal/models"
	"talkio/backend/internal/realtime"
	"talkio/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func dispatch(t *testing.T, hub *realtime.Hub, connID, event string, payload interface{}) {
	t.Helper()
	hub.Dispatch(connID, models.Envelope{Event: event, Data: mustRaw(t, payload)})
}

func TestSelfCallRejected(t *testing.T) {
	store := newTestStorage()
	hub := newTestHub(store)
	_, caller := connect(hub, "conn_1", "user_X")

	dispatch(t, hub, "conn_1", models.EventCallInitiate, models.CallInitiatePayload{
		CallerID:   "user_X",
		ReceiverID: "user_X",
		CallType:   models.CallTypeVoice,
	})

	_, got := caller.recvNamed(models.EventSignalError)
	assert.True(t, got, "self-call is a validation error")
	store.AssertNotCalled(t, "CreateCall", mock.Anything)
}

func TestInitiateRingsPersonalRoomsOnly(t *testing.T) {
	store := newTestStorage()
	store.On("CreateCall", mock.AnythingOfType("*models.Call")).
		Run(func(args mock.Arguments) {
			args.Get(0).(*models.Call).ID = "call-1"
		}).Return(nil)
	hub := newTestHub(store)

	sess1, caller := connect(hub, "conn_1", "user_1")
	sess2, receiver := connect(hub, "conn_2", "user_2")
	sess3, bystander := connect(hub, "conn_3", "user_3")
	// All three share the conversation room; the ring must not leak into it.
	convID := models.ConversationIDFor("user_1", "user_2")
	hub.JoinRoom(sess1, convID)
	hub.JoinRoom(sess2, convID)
	hub.JoinRoom(sess3, convID)

	dispatch(t, hub, "conn_1", models.EventCallInitiate, models.CallInitiatePayload{
		CallerID:   "user_1",
		ReceiverID: "user_2",
		CallType:   models.CallTypeVoice,
	})

	incoming, got := receiver.recvNamed(models.EventCallIncoming)
	require.True(t, got)
	call := incoming.Data.(*models.Call)
	assert.Equal(t, "call-1", call.ID)
	assert.Equal(t, "user_1", call.CallerID)
	assert.Equal(t, models.CallStatusMissed, call.Status)
	assert.Equal(t, convID, call.ConversationID)

	_, got = caller.recvNamed(models.EventCallInitiated)
	assert.True(t, got)

	events := bystander.drain()
	for _, e := range events {
		assert.NotContains(t, []string{models.EventCallIncoming, models.EventCallInitiated}, e.Event,
			"ring events must not reach uninvolved sessions")
	}
}

func TestConversationIDIsDeterministic(t *testing.T) {
	assert.Equal(t,
		models.ConversationIDFor("user_1", "user_2"),
		models.ConversationIDFor("user_2", "user_1"))
}

func TestRingTimeoutEchoesDeclineToCaller(t *testing.T) {
	store := newTestStorage()
	store.On("CreateCall", mock.AnythingOfType("*models.Call")).
		Run(func(args mock.Arguments) {
			args.Get(0).(*models.Call).ID = "call-1"
		}).Return(nil)
	store.On("UpdateCallIf", "call-1", models.CallStatusMissed, mock.Anything).Return(true, nil)
	hub := newTestHubWithOptions(store, realtime.Options{RingTimeout: 20 * time.Millisecond})

	_, caller := connect(hub, "conn_1", "user_1")
	connect(hub, "conn_2", "user_2")

	dispatch(t, hub, "conn_1", models.EventCallInitiate, models.CallInitiatePayload{
		CallerID:   "user_1",
		ReceiverID: "user_2",
		CallType:   models.CallTypeVideo,
	})

	assert.Eventually(t, func() bool {
		event, got := caller.recvNamed(models.EventCallDeclined)
		if !got {
			return false
		}
		declined := event.Data.(models.CallDeclined)
		return declined.CallID == "call-1" && declined.IsTimeout
	}, time.Second, 10*time.Millisecond)
}

func TestRingTimeoutIsNoopAfterTransition(t *testing.T) {
	store := newTestStorage()
	store.On("CreateCall", mock.AnythingOfType("*models.Call")).
		Run(func(args mock.Arguments) {
			args.Get(0).(*models.Call).ID = "call-1"
		}).Return(nil)
	// The record already left "missed" when the timer fires.
	store.On("UpdateCallIf", "call-1", models.CallStatusMissed, mock.Anything).Return(false, nil)
	hub := newTestHubWithOptions(store, realtime.Options{RingTimeout: 20 * time.Millisecond})

	_, caller := connect(hub, "conn_1", "user_1")
	connect(hub, "conn_2", "user_2")

	dispatch(t, hub, "conn_1", models.EventCallInitiate, models.CallInitiatePayload{
		CallerID:   "user_1",
		ReceiverID: "user_2",
		CallType:   models.CallTypeVoice,
	})
	time.Sleep(60 * time.Millisecond)

	_, got := caller.recvNamed(models.EventCallDeclined)
	assert.False(t, got, "expired timer finding a settled record must stay silent")
}

func TestAcceptAfterTimeoutIsRejected(t *testing.T) {
	store := newTestStorage()
	call := &models.Call{ID: "call-1", CallerID: "user_1", ReceiverID: "user_2", Status: models.CallStatusMissed}
	store.On("GetCallByID", "call-1").Return(call, nil)
	store.On("UpdateCallIf", "call-1", models.CallStatusMissed, mock.Anything).Return(false, nil)
	hub := newTestHub(store)

	_, caller := connect(hub, "conn_1", "user_1")
	_, receiver := connect(hub, "conn_2", "user_2")

	dispatch(t, hub, "conn_2", models.EventCallAccept, models.CallAcceptPayload{
		CallID:     "call-1",
		ReceiverID: "user_2",
	})

	_, got := receiver.recvNamed(models.EventSignalError)
	assert.True(t, got, "late accept surfaces a signaling error")
	_, got = receiver.recvNamed(models.EventCallAccepted)
	assert.False(t, got, "no duplicate accepted event")
	_, got = caller.recvNamed(models.EventCallAccepted)
	assert.False(t, got)
}

func TestAcceptNotifiesBothParticipants(t *testing.T) {
	store := newTestStorage()
	call := &models.Call{ID: "call-1", CallerID: "user_1", ReceiverID: "user_2", Status: models.CallStatusMissed}
	store.On("GetCallByID", "call-1").Return(call, nil)
	store.On("UpdateCallIf", "call-1", models.CallStatusMissed, mock.MatchedBy(func(u map[string]interface{}) bool {
		return u["status"] == models.CallStatusAnswered
	})).Return(true, nil)
	hub := newTestHub(store)

	_, caller := connect(hub, "conn_1", "user_1")
	_, receiver := connect(hub, "conn_2", "user_2")

	dispatch(t, hub, "conn_2", models.EventCallAccept, models.CallAcceptPayload{
		CallID:     "call-1",
		ReceiverID: "user_2",
	})

	_, got := caller.recvNamed(models.EventCallAccepted)
	assert.True(t, got)
	_, got = receiver.recvNamed(models.EventCallAccepted)
	assert.True(t, got)
}

func TestDeclineNotifiesCallerOnly(t *testing.T) {
	store := newTestStorage()
	call := &models.Call{ID: "call-1", CallerID: "user_1", ReceiverID: "user_2", Status: models.CallStatusMissed}
	store.On("GetCallByID", "call-1").Return(call, nil)
	store.On("UpdateCallIf", "call-1", models.CallStatusMissed, mock.MatchedBy(func(u map[string]interface{}) bool {
		return u["status"] == models.CallStatusDeclined
	})).Return(true, nil)
	hub := newTestHub(store)

	_, caller := connect(hub, "conn_1", "user_1")
	_, receiver := connect(hub, "conn_2", "user_2")

	dispatch(t, hub, "conn_2", models.EventCallDecline, models.CallDeclinePayload{
		CallID:     "call-1",
		ReceiverID: "user_2",
	})

	event, got := caller.recvNamed(models.EventCallDeclined)
	require.True(t, got)
	assert.False(t, event.Data.(models.CallDeclined).IsTimeout)
	_, got = receiver.recvNamed(models.EventCallDeclined)
	assert.False(t, got, "decline is echoed to the caller only")
}

func TestEndNeverOverwritesStatus(t *testing.T) {
	store := newTestStorage()
	call := &models.Call{ID: "call-1", CallerID: "user_1", ReceiverID: "user_2", Status: models.CallStatusAnswered}
	store.On("GetCallByID", "call-1").Return(call, nil)
	store.On("UpdateCallIf", "call-1", models.CallStatusAnswered, mock.MatchedBy(func(u map[string]interface{}) bool {
		_, touchesStatus := u["status"]
		return !touchesStatus && u["duration"] == 42
	})).Return(true, nil)
	hub := newTestHub(store)

	_, caller := connect(hub, "conn_1", "user_1")
	_, receiver := connect(hub, "conn_2", "user_2")

	dispatch(t, hub, "conn_2", models.EventCallEnd, models.CallEndPayload{
		CallID:   "call-1",
		UserID:   "user_2",
		Duration: 42,
	})

	store.AssertExpectations(t)
	event, got := caller.recvNamed(models.EventCallEnded)
	require.True(t, got)
	assert.Equal(t, 42, event.Data.(models.CallEnded).Duration)
	_, got = receiver.recvNamed(models.EventCallEnded)
	assert.True(t, got)
}

func TestCallLookupMissSurfacesSignalError(t *testing.T) {
	store := newTestStorage()
	store.On("GetCallByID", "ghost").Return(nil, storage.ErrCallNotFound)
	hub := newTestHub(store)

	_, receiver := connect(hub, "conn_2", "user_2")

	dispatch(t, hub, "conn_2", models.EventCallAccept, models.CallAcceptPayload{
		CallID:     "ghost",
		ReceiverID: "user_2",
	})

	event, got := receiver.recvNamed(models.EventSignalError)
	require.True(t, got)
	assert.Equal(t, "call not found", event.Data.(models.SignalError).Message)
}

// TestVoiceCallEndToEnd walks the full happy path: initiate, incoming on the
// receiver, accept, accepted on both, end, ended on both, and a persisted
// record that stayed "answered" with the reported duration.
func TestVoiceCallEndToEnd(t *testing.T) {
	store := newTestStorage()
	var rec models.Call
	store.On("CreateCall", mock.AnythingOfType("*models.Call")).
		Run(func(args mock.Arguments) {
			c := args.Get(0).(*models.Call)
			c.ID = "call-e2e"
			rec = *c
		}).Return(nil)
	store.On("GetCallByID", "call-e2e").Return(&rec, nil)
	apply := func(args mock.Arguments) {
		updates := args.Get(2).(map[string]interface{})
		if status, ok := updates["status"]; ok {
			rec.Status = status.(models.CallStatus)
		}
		if d, ok := updates["duration"]; ok {
			rec.Duration = d.(int)
		}
		if at, ok := updates["ended_at"]; ok {
			endedAt := at.(time.Time)
			rec.EndedAt = &endedAt
		}
	}
	store.On("UpdateCallIf", "call-e2e", models.CallStatusMissed, mock.Anything).
		Run(apply).Return(true, nil).Once() // accept
	store.On("UpdateCallIf", "call-e2e", models.CallStatusAnswered, mock.Anything).
		Run(apply).Return(true, nil).Once() // end
	store.On("UpdateCallIf", "call-e2e", mock.Anything, mock.Anything).
		Return(false, nil).Maybe() // the never-cancelled ring timer

	hub := newTestHubWithOptions(store, realtime.Options{RingTimeout: time.Hour})
	_, u1 := connect(hub, "conn_1", "user_1")
	_, u2 := connect(hub, "conn_2", "user_2")

	dispatch(t, hub, "conn_1", models.EventCallInitiate, models.CallInitiatePayload{
		CallerID:   "user_1",
		ReceiverID: "user_2",
		CallType:   models.CallTypeVoice,
	})

	incoming, got := u2.recvNamed(models.EventCallIncoming)
	require.True(t, got)
	assert.Equal(t, "user_1", incoming.Data.(*models.Call).CallerID)

	dispatch(t, hub, "conn_2", models.EventCallAccept, models.CallAcceptPayload{
		CallID:     "call-e2e",
		ReceiverID: "user_2",
	})

	_, got = u1.recvNamed(models.EventCallAccepted)
	assert.True(t, got)
	_, got = u2.recvNamed(models.EventCallAccepted)
	assert.True(t, got)

	dispatch(t, hub, "conn_2", models.EventCallEnd, models.CallEndPayload{
		CallID:   "call-e2e",
		UserID:   "user_2",
		Duration: 42,
	})

	_, got = u1.recvNamed(models.EventCallEnded)
	assert.True(t, got)
	_, got = u2.recvNamed(models.EventCallEnded)
	assert.True(t, got)

	assert.Equal(t, models.CallStatusAnswered, rec.Status)
	assert.Equal(t, 42, rec.Duration)
	assert.NotNil(t, rec.EndedAt)
}
