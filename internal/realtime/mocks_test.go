package realtime_test

import (
	"encoding/json"
	"testing"
	"time"

	"talkio/backend/internal/models"
	"talkio/backend/internal/realtime"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify mock of the storage.Storage interface.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) UpdateUserPresence(userID string, online bool, lastSeen time.Time) error {
	args := m.Called(userID, online, lastSeen)
	return args.Error(0)
}

func (m *MockStorage) GetUserByID(userID string) (*models.User, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) CreateCall(call *models.Call) error {
	args := m.Called(call)
	return args.Error(0)
}

func (m *MockStorage) GetCallByID(callID string) (*models.Call, error) {
	args := m.Called(callID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Call), args.Error(1)
}

func (m *MockStorage) UpdateCallIf(callID string, expect models.CallStatus, updates map[string]interface{}) (bool, error) {
	args := m.Called(callID, expect, updates)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) PublishRoomEvent(channel string, payload []byte) error {
	args := m.Called(channel, payload)
	return args.Error(0)
}

func (m *MockStorage) SubscribeRoomEvents() *redis.PubSub {
	// The bridge listener is only started from main; tests never subscribe.
	return nil
}

// newTestStorage preconfigures the expectations every hub exercise needs:
// emits publish to the Redis bridge and presence transitions persist.
func newTestStorage() *MockStorage {
	s := new(MockStorage)
	s.On("PublishRoomEvent", mock.Anything, mock.Anything).Return(nil).Maybe()
	s.On("UpdateUserPresence", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return s
}

func newTestHub(s *MockStorage) *realtime.Hub {
	return newTestHubWithOptions(s, realtime.Options{})
}

func newTestHubWithOptions(s *MockStorage, opts realtime.Options) *realtime.Hub {
	if opts.RingTimeout == 0 {
		opts.RingTimeout = time.Hour // Keep timers out of tests that don't want them.
	}
	if opts.PresenceAttempts == 0 {
		opts.PresenceAttempts = 1
	}
	if opts.PresenceRetryDelay == 0 {
		opts.PresenceRetryDelay = time.Millisecond
	}
	return realtime.NewHub(s, opts)
}

// mockClient is a test double for the realtime.Client interface.
type mockClient struct {
	connID string
	Recv   chan models.Event
}

func newMockClient(connID string) *mockClient {
	return &mockClient{
		connID: connID,
		Recv:   make(chan models.Event, 32), // Buffered to prevent blocking in tests
	}
}

func (c *mockClient) GetConnID() string { return c.connID }

func (c *mockClient) GetSendChannel() chan<- models.Event { return c.Recv }

func (c *mockClient) Run() {}

func (c *mockClient) Close() {}

// drain empties the receive channel and returns everything that was queued.
func (c *mockClient) drain() []models.Event {
	var events []models.Event
	for {
		select {
		case e := <-c.Recv:
			events = append(events, e)
		default:
			return events
		}
	}
}

// recvNamed scans the queued events for the first one with the given name.
func (c *mockClient) recvNamed(name string) (models.Event, bool) {
	for {
		select {
		case e := <-c.Recv:
			if e.Event == name {
				return e, true
			}
		default:
			return models.Event{}, false
		}
	}
}

// connect registers a mock client and, when userID is non-empty, identifies
// it so the session owns its personal room.
func connect(hub *realtime.Hub, connID, userID string) (*realtime.Session, *mockClient) {
	client := newMockClient(connID)
	sess := hub.Register(client)
	if userID != "" {
		hub.Identify(sess, userID)
	}
	client.drain() // Discard presence noise from other connects.
	return sess, client
}

func mustRaw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}
