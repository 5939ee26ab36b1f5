package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clinicport/emergency-alerts/internal/config"
	"github.com/clinicport/emergency-alerts/internal/domain/alert"
	"github.com/clinicport/emergency-alerts/internal/logger"
	"github.com/clinicport/emergency-alerts/internal/store"
)

// connectTimeout bounds the initial connection and ping.
const connectTimeout = 10 * time.Second

// Store implements the alert store on a MongoDB collection.
type Store struct {
	// client is the underlying MongoDB client.
	client *mongo.Client
	// coll is the alerts collection.
	coll *mongo.Collection
	// opTimeout bounds individual operations.
	opTimeout time.Duration
}

// NewStore connects to MongoDB and verifies the connection with a ping.
func NewStore(ctx context.Context, cfg config.MongoConfig, opTimeout time.Duration) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err = client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	if opTimeout <= 0 {
		opTimeout = config.DefaultTimeout
	}

	return &Store{
		client:    client,
		coll:      client.Database(cfg.Database).Collection(cfg.Collection),
		opTimeout: opTimeout,
	}, nil
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, record *alert.Record) (string, error) {
	record = record.Clone()
	if err := store.PrepareNew(record); err != nil {
		return "", err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if _, err := s.coll.InsertOne(opCtx, record); err != nil {
		return "", fmt.Errorf("insert alert: %w", err)
	}

	return record.ID, nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, id string) (*alert.Record, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var record alert.Record

	err := s.coll.FindOne(opCtx, bson.M{"_id": id}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}

		return nil, fmt.Errorf("find alert: %w", err)
	}

	return &record, nil
}

// TryTransition implements store.Store. The expected status is part of the
// update filter, so MongoDB's single-document atomicity makes this a
// compare-and-set: a concurrent transition shrinks MatchedCount to zero.
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

	result, err := s.coll.UpdateOne(
		opCtx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{
			"status":       to,
			"responded_by": responderID,
			"responded_at": at.UTC(),
		}},
	)
	if err != nil {
		return false, fmt.Errorf("transition alert: %w", err)
	}

	if result.MatchedCount == 1 {
		return true, nil
	}

	// Distinguish a lost race from a missing record.
	if _, err = s.Get(ctx, id); err != nil {
		return false, err
	}

	return false, nil
}

// SubscribeActiveFor implements store.Store. A change stream limited to the
// responder's alerts triggers a filtered re-query per event, so emissions
// always carry the full current set.
func (s *Store) SubscribeActiveFor(ctx context.Context, responderID string) (store.Subscription, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"fullDocument.assigned_responders": responderID,
		}}},
	}

	cs, err := s.coll.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, fmt.Errorf("watch alerts: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream := store.NewViewStream(cancel)

	go s.pump(streamCtx, cs, responderID, stream)

	return stream, nil
}

// Close implements store.Store.
func (s *Store) Close(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Disconnect(opCtx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}

	return nil
}

// pump feeds a subscription from the change stream until it fails or the
// subscription is closed.
func (s *Store) pump(ctx context.Context, cs *mongo.ChangeStream, responderID string, stream *store.ViewStream) {
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
		defer cancel()

		if err := cs.Close(closeCtx); err != nil {
			logger.WarnKV(ctx, "Closing change stream failed", "error", err)
		}
	}()

	// Initial emission so the subscriber starts from the current view.
	set, err := s.activeSet(ctx, responderID)
	if err != nil {
		stream.Fail(err)
		return
	}

	stream.Publish(set)

	for cs.Next(ctx) {
		set, err = s.activeSet(ctx, responderID)
		if err != nil {
			stream.Fail(err)
			return
		}

		stream.Publish(set)
	}

	if err = cs.Err(); err != nil && !errors.Is(err, context.Canceled) {
		stream.Fail(fmt.Errorf("change stream: %w", err))
		return
	}

	stream.Close()
}

// activeSet queries the responder's current active alerts.
func (s *Store) activeSet(ctx context.Context, responderID string) ([]*alert.Record, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	cursor, err := s.coll.Find(opCtx, bson.M{
		"status":              alert.StatusActive,
		"assigned_responders": responderID,
	})
	if err != nil {
		return nil, fmt.Errorf("query active alerts: %w", err)
	}

	var set []*alert.Record
	if err = cursor.All(opCtx, &set); err != nil {
		return nil, fmt.Errorf("decode active alerts: %w", err)
	}

	return set, nil
}
