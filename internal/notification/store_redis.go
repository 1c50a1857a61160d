package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"

	"chronos/pkg/domain"
	dErrors "chronos/pkg/domain-errors"
)

const (
	feedKeyPrefix  = "chronos:notif:feed:"
	prefsKeyPrefix = "chronos:notif:prefs:"
)

// RedisStore keeps each user's feed in a hash keyed by message ID and the
// preferences as a JSON string, so feeds survive process restarts.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func feedKey(userID domain.UserID) string  { return feedKeyPrefix + string(userID) }
func prefsKey(userID domain.UserID) string { return prefsKeyPrefix + string(userID) }

func (s *RedisStore) Insert(ctx context.Context, m Message) error {
	if m.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "message user id is required")
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encoding notification")
	}
	if err := s.client.HSet(ctx, feedKey(m.UserID), string(m.ID), raw).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "storing notification")
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, userID domain.UserID, id domain.MessageID) (*Message, error) {
	raw, err := s.client.HGet(ctx, feedKey(userID), string(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "notification %s not found", id)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading notification")
	}
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decoding notification")
	}
	return &m, nil
}

func (s *RedisStore) Update(ctx context.Context, m Message) error {
	exists, err := s.client.HExists(ctx, feedKey(m.UserID), string(m.ID)).Result()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "checking notification")
	}
	if !exists {
		return dErrors.Newf(dErrors.CodeNotFound, "notification %s not found", m.ID)
	}
	return s.Insert(ctx, m)
}

func (s *RedisStore) Delete(ctx context.Context, userID domain.UserID, id domain.MessageID) error {
	removed, err := s.client.HDel(ctx, feedKey(userID), string(id)).Result()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "deleting notification")
	}
	if removed == 0 {
		return dErrors.Newf(dErrors.CodeNotFound, "notification %s not found", id)
	}
	return nil
}

func (s *RedisStore) ListByUser(ctx context.Context, userID domain.UserID) ([]Message, error) {
	raws, err := s.client.HVals(ctx, feedKey(userID)).Result()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing notifications")
	}
	out := make([]Message, 0, len(raws))
	for _, raw := range raws {
		var m Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decoding notification")
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *RedisStore) DeleteArchived(ctx context.Context, userID domain.UserID) (int, error) {
	msgs, err := s.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range msgs {
		if !m.Archived {
			continue
		}
		if err := s.client.HDel(ctx, feedKey(userID), string(m.ID)).Err(); err != nil {
			return removed, dErrors.Wrap(err, dErrors.CodeInternal, "deleting archived notification")
		}
		removed++
	}
	return removed, nil
}

func (s *RedisStore) GetPrefs(ctx context.Context, userID domain.UserID) (*Prefs, error) {
	raw, err := s.client.Get(ctx, prefsKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "preferences for %s not found", userID)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading preferences")
	}
	var p Prefs
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decoding preferences")
	}
	return &p, nil
}

func (s *RedisStore) PutPrefs(ctx context.Context, p Prefs) error {
	if p.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "preferences user id is required")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encoding preferences")
	}
	if err := s.client.Set(ctx, prefsKey(p.UserID), raw, 0).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "storing preferences")
	}
	return nil
}
