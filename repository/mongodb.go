package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mapleleafu/cardarena/arena-backend/models"
)

const runActionsCollection = "run_actions"

// ErrNotFound is returned by readers when nothing matches.
var ErrNotFound = errors.New("not found")

func ConnectMongoDB(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// SessionStore keeps the action journal of each run as one document.
type SessionStore struct {
	coll *mongo.Collection
}

func NewSessionStore(client *mongo.Client, database string) *SessionStore {
	return &SessionStore{coll: client.Database(database).Collection(runActionsCollection)}
}

func (s *SessionStore) SaveSession(ctx context.Context, session models.GameSession) error {
	if _, err := s.coll.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("insert run actions %s: %w", session.RunID, err)
	}
	return nil
}

func (s *SessionStore) SessionByRun(ctx context.Context, runID string) (models.GameSession, error) {
	var session models.GameSession
	err := s.coll.FindOne(ctx, bson.M{"runId": runID}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return session, ErrNotFound
	}
	if err != nil {
		return session, fmt.Errorf("find run actions %s: %w", runID, err)
	}
	return session, nil
}
