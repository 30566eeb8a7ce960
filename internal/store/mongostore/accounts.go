package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/charlesng35/taskpad/internal/models"
	"github.com/charlesng35/taskpad/internal/store"
)

// AccountStore keeps one document per account. Writes go through a version
// field so concurrent read-modify-write cycles never overwrite each other.
type AccountStore struct {
	coll        *mongo.Collection
	withTimeout func(context.Context) (context.Context, context.CancelFunc)
	now         func() time.Time
}

var _ store.AccountStore = (*AccountStore)(nil)

func (s *AccountStore) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (s *AccountStore) Create(ctx context.Context, account *models.Account) error {
	if account == nil {
		return errors.New("mongostore: account is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	account.EnsureID()
	account.Email = models.NormalizeEmail(account.Email)
	now := s.clock()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	_, err := s.coll.InsertOne(ctx, toAccountDocument(account, 1))
	return translate(err)
}

func (s *AccountStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	doc, err := s.findOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	doc, err := s.findOne(ctx, bson.M{"email": models.NormalizeEmail(email)})
	if err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (s *AccountStore) findOne(ctx context.Context, filter bson.M) (*accountDocument, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc accountDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

// Update replaces the document only if its version is unchanged since it was
// read, retrying a bounded number of times before reporting store.ErrConflict.
func (s *AccountStore) Update(ctx context.Context, id string, fn store.MutateFunc[models.Account]) (*models.Account, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		doc, err := s.findOne(ctx, bson.M{"_id": id})
		if err != nil {
			return nil, err
		}

		account := doc.model()
		if err := fn(account); err != nil {
			return nil, err
		}
		account.ID, account.Email = doc.ID, doc.Email
		account.UpdatedAt = s.clock()

		replaced, err := s.replace(ctx, doc.Version, account)
		if err != nil {
			return nil, err
		}
		if replaced {
			return account, nil
		}
	}
	return nil, store.ErrConflict
}

func (s *AccountStore) replace(ctx context.Context, version int64, account *models.Account) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": account.ID, "version": version},
		toAccountDocument(account, version+1),
	)
	if err != nil {
		return false, translate(err)
	}
	return result.MatchedCount == 1, nil
}

func (s *AccountStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *AccountStore) ClearExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var total int64
	for _, slot := range []string{"verification", "reset"} {
		result, err := s.coll.UpdateMany(ctx,
			bson.M{slot + ".expires_at": bson.M{"$lte": now.UTC()}},
			bson.M{
				"$unset": bson.M{slot: ""},
				"$set":   bson.M{"updated_at": s.clock()},
				"$inc":   bson.M{"version": 1},
			},
		)
		if err != nil {
			return total, err
		}
		total += result.ModifiedCount
	}
	return total, nil
}

func (s *AccountStore) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.coll.DeleteMany(ctx, bson.M{
		"is_verified": false,
		"created_at":  bson.M{"$lt": cutoff.UTC()},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
