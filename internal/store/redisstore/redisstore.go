package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinicport/emergency-alerts/internal/config"
	"github.com/clinicport/emergency-alerts/internal/domain/alert"
	"github.com/clinicport/emergency-alerts/internal/logger"
	"github.com/clinicport/emergency-alerts/internal/store"
)

// casAttempts bounds retries of the optimistic transaction. Every retry
// re-reads the status, so a genuinely lost race reports rejected instead of
// retrying forever.
const casAttempts = 3

// errRaceLost signals from inside the transaction closure that the status
// already left the expected value.
var errRaceLost = errors.New("transition race lost")

// Store implements the alert store on Redis.
type Store struct {
	// client is the underlying Redis client.
	client *redis.Client
	// opTimeout bounds individual operations.
	opTimeout time.Duration
}

// NewStore connects to Redis and verifies the connection with a ping.
func NewStore(ctx context.Context, cfg config.RedisConfig, opTimeout time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if opTimeout <= 0 {
		opTimeout = config.DefaultTimeout
	}

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Store{
		client:    client,
		opTimeout: opTimeout,
	}, nil
}

// Key layout helpers.
func recordKey(id string) string {
	return "alert:" + id
}

func statusKey(id string) string {
	return "alert:" + id + ":status"
}

func activeSetKey(responder string) string {
	return "responder:" + responder + ":active"
}

func channelKey(responder string) string {
	return "alerts:" + responder
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, record *alert.Record) (string, error) {
	record = record.Clone()
	if err := store.PrepareNew(record); err != nil {
		return "", err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode alert: %w", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	_, err = s.client.TxPipelined(opCtx, func(pipe redis.Pipeliner) error {
		pipe.Set(opCtx, recordKey(record.ID), data, 0)
		pipe.Set(opCtx, statusKey(record.ID), string(record.Status), 0)

		for _, responder := range record.AssignedResponders {
			pipe.SAdd(opCtx, activeSetKey(responder), record.ID)
			pipe.Publish(opCtx, channelKey(responder), record.ID)
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store alert: %w", err)
	}

	return record.ID, nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, id string) (*alert.Record, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	data, err := s.client.Get(opCtx, recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}

		return nil, fmt.Errorf("get alert: %w", err)
	}

	var record alert.Record
	if err = json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode alert: %w", err)
	}

	return &record, nil
}

// TryTransition implements store.Store. The status key is WATCHed, so any
// concurrent write to it aborts the MULTI block; every attempt re-reads the
// status first, which turns a genuinely lost race into accepted=false
// rather than an error.
func (s *Store) TryTransition(
	ctx context.Context,
	id string,
	from, to alert.Status,
	responderID string,
	at time.Time,
) (bool, error) {
	if err := store.CheckTransition(from, to); err != nil {
		return false, err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	transition := func(tx *redis.Tx) error {
		current, err := tx.Get(opCtx, statusKey(id)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return store.ErrNotFound
			}

			return err
		}

		if alert.Status(current) != from {
			return errRaceLost
		}

		data, err := tx.Get(opCtx, recordKey(id)).Bytes()
		if err != nil {
			return err
		}

		var record alert.Record
		if err = json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("decode alert: %w", err)
		}

		record.Status = to
		record.RespondedBy = responderID
		record.RespondedAt = at.UTC()

		updated, err := json.Marshal(&record)
		if err != nil {
			return fmt.Errorf("encode alert: %w", err)
		}

		_, err = tx.TxPipelined(opCtx, func(pipe redis.Pipeliner) error {
			pipe.Set(opCtx, statusKey(id), string(to), 0)
			pipe.Set(opCtx, recordKey(id), updated, 0)

			for _, responder := range record.AssignedResponders {
				pipe.SRem(opCtx, activeSetKey(responder), id)
				pipe.Publish(opCtx, channelKey(responder), id)
			}

			return nil
		})

		return err
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		err := s.client.Watch(opCtx, transition, statusKey(id))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, errRaceLost):
			return false, nil
		case errors.Is(err, redis.TxFailedErr):
			// Another write landed between WATCH and EXEC, re-check.
			continue
		default:
			return false, fmt.Errorf("transition alert: %w", err)
		}
	}

	// The status key kept changing under us, re-read it once to decide.
	record, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}

	if record.Status != from {
		return false, nil
	}

	return false, fmt.Errorf("transition alert %s: transaction kept failing", id)
}

// SubscribeActiveFor implements store.Store.
func (s *Store) SubscribeActiveFor(ctx context.Context, responderID string) (store.Subscription, error) {
	pubsub := s.client.Subscribe(ctx, channelKey(responderID))

	// Force the SUBSCRIBE onto the wire so missed-change windows stay at zero.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()

		return nil, fmt.Errorf("subscribe alerts: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream := store.NewViewStream(func() {
		cancel()

		if err := pubsub.Close(); err != nil {
			logger.WarnKV(ctx, "Closing pub/sub failed", "error", err)
		}
	})

	go s.pump(streamCtx, pubsub, responderID, stream)

	return stream, nil
}

// Close implements store.Store.
func (s *Store) Close(_ context.Context) error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}

	return nil
}

// pump feeds a subscription from the responder's channel until the
// connection fails or the subscription is closed.
func (s *Store) pump(ctx context.Context, pubsub *redis.PubSub, responderID string, stream *store.ViewStream) {
	// Initial emission so the subscriber starts from the current view.
	set, err := s.activeSet(ctx, responderID)
	if err != nil {
		stream.Fail(err)
		return
	}

	stream.Publish(set)

	messages := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			stream.Close()
			return
		case _, ok := <-messages:
			if !ok {
				stream.Fail(fmt.Errorf("alert channel %s: %w", channelKey(responderID), redis.ErrClosed))
				return
			}

			set, err = s.activeSet(ctx, responderID)
			if err != nil {
				stream.Fail(err)
				return
			}

			stream.Publish(set)
		}
	}
}

// activeSet loads the responder's current active alerts. Records that
// vanished between SMEMBERS and GET are skipped.
func (s *Store) activeSet(ctx context.Context, responderID string) ([]*alert.Record, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	ids, err := s.client.SMembers(opCtx, activeSetKey(responderID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load active ids: %w", err)
	}

	set := make([]*alert.Record, 0, len(ids))

	for _, id := range ids {
		record, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}

			return nil, err
		}

		// The id set and the status key are updated in one transaction, but
		// check anyway so a stale member never resurfaces a settled alert.
		if record.Status != alert.StatusActive {
			continue
		}

		set = append(set, record)
	}

	return set, nil
}
