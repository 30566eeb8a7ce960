// Package mongostore implements the store contracts on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/charlesng35/taskpad/internal/store"
)

const (
	collectionAccounts = "accounts"
	collectionTasks    = "tasks"

	// maxUpdateAttempts bounds optimistic read-modify-write retries.
	maxUpdateAttempts = 3
)

// Config holds connection settings.
type Config struct {
	URI         string
	Database    string
	Timeout     time.Duration
	MaxPoolSize uint64
}

// Backend serves accounts and tasks from one MongoDB database.
type Backend struct {
	client   *mongo.Client
	db       *mongo.Database
	timeout  time.Duration
	accounts *AccountStore
	tasks    *TaskStore
}

var _ store.Backend = (*Backend)(nil)

// Connect dials MongoDB, verifies the connection and ensures indexes.
func Connect(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongostore: uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = "taskpad"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	b := newBackend(client, cfg.Database, cfg.Timeout)
	if err := b.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return b, nil
}

func newBackend(client *mongo.Client, database string, timeout time.Duration) *Backend {
	b := &Backend{
		client:  client,
		db:      client.Database(database),
		timeout: timeout,
	}
	b.accounts = &AccountStore{coll: b.db.Collection(collectionAccounts), withTimeout: b.withTimeout}
	b.tasks = &TaskStore{coll: b.db.Collection(collectionTasks), withTimeout: b.withTimeout}
	return b
}

func (b *Backend) Accounts() store.AccountStore { return b.accounts }

func (b *Backend) Tasks() store.TaskStore { return b.tasks }

func (b *Backend) Ping(ctx context.Context) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	return b.client.Ping(ctx, nil)
}

func (b *Backend) Close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique email index and the lookup indexes used by
// maintenance and task listing.
func (b *Backend) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	_, err := b.db.Collection(collectionAccounts).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "is_verified", Value: 1},
				{Key: "created_at", Value: 1},
			},
		},
		{Keys: bson.D{{Key: "verification.expires_at", Value: 1}}},
		{Keys: bson.D{{Key: "reset.expires_at", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = b.db.Collection(collectionTasks).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "status", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "due_date", Value: 1},
			},
		},
	})
	return err
}

// withTimeout applies the configured operation timeout unless ctx already has a deadline.
func (b *Backend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok || b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrDuplicate
	default:
		return err
	}
}
