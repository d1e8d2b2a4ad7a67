// internal/common/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "exam-queue/internal/common/errors"
	"exam-queue/internal/common/logger"
	"exam-queue/internal/common/validation"
	"exam-queue/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Collection names one of the three cached collections.
type Collection string

const (
	CollectionStudents   Collection = "students"
	CollectionCommittees Collection = "committees"
	CollectionCriteria   Collection = "criteria"
)

var (
	ErrCacheMiss    = errors.New("cache miss")
	ErrCacheCorrupt = errors.New("cache corrupt")
)

// SnapshotCache stores the collections as JSON under one key each and
// announces every write on a pub/sub channel so that other processes
// sharing the cache can reload.
type SnapshotCache struct {
	client  redis.UniversalClient
	prefix  string
	channel string
	origin  string
	logger  logger.Logger
}

// Notification is published after each write.
type Notification struct {
	Origin      string       `json:"origin"`
	Collections []Collection `json:"collections"`
}

// Touches reports whether the notification covers c.
func (n Notification) Touches(c Collection) bool {
	for _, col := range n.Collections {
		if col == c {
			return true
		}
	}
	return false
}

func New(client redis.UniversalClient, prefix, channel string, log logger.Logger) *SnapshotCache {
	return &SnapshotCache{
		client:  client,
		prefix:  prefix,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  log.Component("cache"),
	}
}

// Key returns the Redis key holding collection c, e.g. oral_exam_students.
func (c *SnapshotCache) Key(col Collection) string {
	return fmt.Sprintf("%s_%s", c.prefix, col)
}

// Origin identifies this process in published notifications.
func (c *SnapshotCache) Origin() string {
	return c.origin
}

func (c *SnapshotCache) LoadStudents(ctx context.Context) ([]models.Student, error) {
	var out []models.Student
	if err := c.load(ctx, CollectionStudents, validation.StudentsSchema, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SnapshotCache) LoadCommittees(ctx context.Context) ([]models.Committee, error) {
	var out []models.Committee
	if err := c.load(ctx, CollectionCommittees, validation.CommitteesSchema, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SnapshotCache) LoadCriteria(ctx context.Context) ([]models.Criterion, error) {
	var out []models.Criterion
	if err := c.load(ctx, CollectionCriteria, validation.CriteriaSchema, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadDataset reads all three collections. Any missing or unreadable
// collection fails the whole load.
func (c *SnapshotCache) LoadDataset(ctx context.Context) (models.Dataset, error) {
	committees, err := c.LoadCommittees(ctx)
	if err != nil {
		return models.Dataset{}, err
	}
	criteria, err := c.LoadCriteria(ctx)
	if err != nil {
		return models.Dataset{}, err
	}
	students, err := c.LoadStudents(ctx)
	if err != nil {
		return models.Dataset{}, err
	}
	return models.Dataset{Students: students, Committees: committees, Criteria: criteria}, nil
}

func (c *SnapshotCache) load(ctx context.Context, col Collection, schema *validation.Schema, out interface{}) error {
	key := c.Key(col)
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %w", ErrCacheMiss, apperrors.NewCacheMissError(key))
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	result, err := schema.ValidateDocument(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheCorrupt, apperrors.NewCacheCorruptError(key, err))
	}
	if !result.Valid {
		return fmt.Errorf("%w: %w", ErrCacheCorrupt,
			apperrors.NewCacheCorruptError(key, errors.New(result.Summary())))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheCorrupt, apperrors.NewCacheCorruptError(key, err))
	}
	return nil
}

// SaveStudents overwrites the student collection and notifies watchers.
func (c *SnapshotCache) SaveStudents(ctx context.Context, students []models.Student) error {
	return c.save(ctx, map[Collection]interface{}{CollectionStudents: nonNil(students)})
}

// SaveDataset overwrites all three collections in one transaction.
func (c *SnapshotCache) SaveDataset(ctx context.Context, ds models.Dataset) error {
	return c.save(ctx, map[Collection]interface{}{
		CollectionCommittees: nonNil(ds.Committees),
		CollectionCriteria:   nonNil(ds.Criteria),
		CollectionStudents:   nonNil(ds.Students),
	})
}

var saveOrder = []Collection{CollectionCommittees, CollectionCriteria, CollectionStudents}

func (c *SnapshotCache) save(ctx context.Context, values map[Collection]interface{}) error {
	payloads := make(map[Collection][]byte, len(values))
	note := Notification{Origin: c.origin}
	for _, col := range saveOrder {
		v, ok := values[col]
		if !ok {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", col, err)
		}
		payloads[col] = raw
		note.Collections = append(note.Collections, col)
	}
	msg, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, col := range note.Collections {
			pipe.Set(ctx, c.Key(col), string(payloads[col]), 0)
		}
		pipe.Publish(ctx, c.channel, string(msg))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write: %w", err)
	}

	c.logger.Debug("Snapshot cached", map[string]interface{}{
		"collections": note.Collections,
	})
	return nil
}

// Watch subscribes to change notifications published by other processes.
// The subscription is active when Watch returns; the channel closes when ctx
// is done.
func (c *SnapshotCache) Watch(ctx context.Context) (<-chan Notification, error) {
	sub := c.client.Subscribe(ctx, c.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", c.channel, err)
	}

	out := make(chan Notification)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var note Notification
				if err := json.Unmarshal([]byte(msg.Payload), &note); err != nil {
					c.logger.Warn("Ignoring malformed cache notification", map[string]interface{}{
						"error": err,
					})
					continue
				}
				if note.Origin == c.origin {
					continue
				}
				select {
				case out <- note:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// nonNil keeps empty collections encoded as [] rather than null.
func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
