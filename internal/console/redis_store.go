package console

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	logKeyPrefix    = "opd_console:log:"
	fieldsKeyPrefix = "opd_console:fields:"
)

// RedisStore keeps console sessions in Redis: a list per session for the log
// (newest at the head) and a hash for the linked fields. Both expire after ttl.
type RedisStore struct {
	redis      *redis.Client
	tracer     trace.Tracer
	maxEntries int64
	ttl        time.Duration
}

// NewRedisStore returns nil when redisClient is nil. A non-positive ttl means 24h.
func NewRedisStore(redisClient *redis.Client, maxEntries int, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		redis:      redisClient,
		tracer:     otel.Tracer("opd.internal.console.redis_store"),
		maxEntries: int64(maxEntries),
		ttl:        ttl,
	}
}

// Fields returns the session's linked doctor ids.
func (s *RedisStore) Fields(ctx context.Context, sessionID string) (Fields, error) {
	if sessionID == "" {
		return Fields{}, errSessionRequired
	}
	ctx, span := s.tracer.Start(ctx, "console.session.fields")
	defer span.End()

	values, err := s.redis.HGetAll(ctx, fieldsKey(sessionID)).Result()
	if err != nil && err != redis.Nil {
		span.RecordError(err)
		return Fields{}, fmt.Errorf("console: load session fields: %w", err)
	}
	return Fields{
		SlotDoctorID: values["slot_doctor_id"],
		BookDoctorID: values["book_doctor_id"],
		ViewDoctorID: values["view_doctor_id"],
	}, nil
}

// SetFields replaces the session's linked doctor ids and refreshes the TTL.
func (s *RedisStore) SetFields(ctx context.Context, sessionID string, fields Fields) error {
	if sessionID == "" {
		return errSessionRequired
	}
	ctx, span := s.tracer.Start(ctx, "console.session.set_fields")
	defer span.End()

	key := fieldsKey(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, key,
		"slot_doctor_id", fields.SlotDoctorID,
		"book_doctor_id", fields.BookDoctorID,
		"view_doctor_id", fields.ViewDoctorID,
	)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("console: save session fields: %w", err)
	}
	return nil
}

// Append pushes a log line, trims the list and refreshes the TTL.
func (s *RedisStore) Append(ctx context.Context, sessionID string, entry LogEntry) error {
	if sessionID == "" {
		return errSessionRequired
	}
	entry = normalizeEntry(entry)
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("console: marshal log entry: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "console.session.append")
	defer span.End()

	key := logKey(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.LPush(ctx, key, data)
	if s.maxEntries > 0 {
		pipe.LTrim(ctx, key, 0, s.maxEntries-1)
	}
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("console: append log entry: %w", err)
	}
	return nil
}

// List returns up to limit log lines, newest first.
func (s *RedisStore) List(ctx context.Context, sessionID string, limit int64) ([]LogEntry, error) {
	if sessionID == "" {
		return nil, errSessionRequired
	}
	ctx, span := s.tracer.Start(ctx, "console.session.list")
	defer span.End()

	end := int64(-1)
	if limit > 0 {
		end = limit - 1
	}
	raw, err := s.redis.LRange(ctx, logKey(sessionID), 0, end).Result()
	if err != nil {
		if err == redis.Nil {
			return []LogEntry{}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("console: list log entries: %w", err)
	}

	out := make([]LogEntry, 0, len(raw))
	for _, item := range raw {
		var entry LogEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// Clear deletes the session's log and keeps its fields.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errSessionRequired
	}
	if err := s.redis.Del(ctx, logKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("console: clear log: %w", err)
	}
	return nil
}

func logKey(sessionID string) string {
	return logKeyPrefix + sessionID
}

func fieldsKey(sessionID string) string {
	return fieldsKeyPrefix + sessionID
}
