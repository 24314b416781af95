package storage

import (
	"context"
	"errors"
	"log"
	"time"

	"talkio/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrCallNotFound is returned when a call id does not resolve to a record.
var ErrCallNotFound = errors.New("call not found")

// Storage is the durable-store surface the realtime core depends on. The
// realtime core treats presence writes as retryable and call writes as
// fail-fast; retrying belongs to the caller, not here.
type Storage interface {
	UpdateUserPresence(userID string, online bool, lastSeen time.Time) error
	GetUserByID(userID string) (*models.User, error)

	CreateCall(call *models.Call) error
	GetCallByID(callID string) (*models.Call, error)
	// UpdateCallIf applies updates only when the call is still in the expected
	// status. It reports whether the transition happened; a false result with
	// a nil error means another transition won the race.
	UpdateCallIf(callID string, expect models.CallStatus, updates map[string]interface{}) (bool, error)

	PublishRoomEvent(channel string, payload []byte) error
	SubscribeRoomEvents() *redis.PubSub
}

// Service implements Storage on top of PostgreSQL (via GORM) and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewService constructor
func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// UpdateUserPresence writes the online flag and last-seen timestamp for a
// user, and mirrors the last-seen value into Redis for cheap reads by the
// CRUD layer.
func (s *Service) UpdateUserPresence(userID string, online bool, lastSeen time.Time) error {
	err := s.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"is_online": online,
			"last_seen": lastSeen,
		}).Error
	if err != nil {
		return err
	}

	if err := s.Redis.Set(s.Ctx, "presence:"+userID, lastSeen.Unix(), 0).Err(); err != nil {
		// The Postgres row is authoritative; a stale cache entry is tolerable.
		log.Printf("WARNING: Failed to cache presence for user %s: %v", userID, err)
	}
	return nil
}

// GetUserByID loads a user record.
func (s *Service) GetUserByID(userID string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateCall persists a new call record.
func (s *Service) CreateCall(call *models.Call) error {
	if err := s.DB.Create(call).Error; err != nil {
		log.Printf("ERROR: Failed to create call %s -> %s: %v", call.CallerID, call.ReceiverID, err)
		return err
	}
	return nil
}

// GetCallByID loads a call record by its identifier.
func (s *Service) GetCallByID(callID string) (*models.Call, error) {
	var call models.Call
	err := s.DB.First(&call, "id = ?", callID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCallNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get call %s: %v", callID, err)
		return nil, err
	}
	return &call, nil
}

// UpdateCallIf performs an optimistic transition: the UPDATE is guarded by
// the expected current status, so two racing transitions cannot overwrite
// each other. RowsAffected tells us whether this transition won.
func (s *Service) UpdateCallIf(callID string, expect models.CallStatus, updates map[string]interface{}) (bool, error) {
	result := s.DB.Model(&models.Call{}).
		Where("id = ? AND status = ?", callID, expect).
		Updates(updates)
	if result.Error != nil {
		log.Printf("ERROR: Failed to update call %s: %v", callID, result.Error)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// PublishRoomEvent publishes a serialized room event on Redis Pub/Sub so
// other instances can deliver it to their local connections.
func (s *Service) PublishRoomEvent(channel string, payload []byte) error {
	return s.Redis.Publish(s.Ctx, channel, payload).Err()
}

// SubscribeRoomEvents subscribes to every room event channel.
func (s *Service) SubscribeRoomEvents() *redis.PubSub {
	return s.Redis.PSubscribe(s.Ctx, "room:*")
}
