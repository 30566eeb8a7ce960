package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/charlesng35/taskpad/internal/models"
	"github.com/charlesng35/taskpad/internal/store"
)

// TaskStore keeps one document per task, always filtered by owner_id.
type TaskStore struct {
	coll        *mongo.Collection
	withTimeout func(context.Context) (context.Context, context.CancelFunc)
}

var _ store.TaskStore = (*TaskStore)(nil)

func (s *TaskStore) Create(ctx context.Context, task *models.Task) error {
	if task == nil || task.OwnerID == "" {
		return errors.New("mongostore: task owner is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	task.EnsureID()
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	_, err := s.coll.InsertOne(ctx, toTaskDocument(task, 1))
	return translate(err)
}

func taskListFilter(ownerID string, filter store.TaskFilter) bson.M {
	query := bson.M{"owner_id": ownerID}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	return query
}

func (s *TaskStore) List(ctx context.Context, ownerID string, filter store.TaskFilter) ([]models.Task, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.coll.Find(ctx, taskListFilter(ownerID, filter), options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	tasks := make([]models.Task, 0, len(docs))
	for _, doc := range docs {
		tasks = append(tasks, doc.model())
	}
	sortTasks(tasks)
	return tasks, nil
}

func (s *TaskStore) findOne(ctx context.Context, ownerID, id string) (*taskDocument, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc taskDocument
	if err := s.coll.FindOne(ctx, bson.M{"_id": id, "owner_id": ownerID}).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

func (s *TaskStore) Get(ctx context.Context, ownerID, id string) (*models.Task, error) {
	doc, err := s.findOne(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	task := doc.model()
	return &task, nil
}

func (s *TaskStore) Update(ctx context.Context, ownerID, id string, fn store.MutateFunc[models.Task]) (*models.Task, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		doc, err := s.findOne(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}

		task := doc.model()
		if err := fn(&task); err != nil {
			return nil, err
		}
		task.ID, task.OwnerID = doc.ID, doc.OwnerID
		task.UpdatedAt = time.Now().UTC()

		opCtx, cancel := s.withTimeout(ctx)
		result, err := s.coll.ReplaceOne(opCtx,
			bson.M{"_id": id, "owner_id": ownerID, "version": doc.Version},
			toTaskDocument(&task, doc.Version+1),
		)
		cancel()
		if err != nil {
			return nil, translate(err)
		}
		if result.MatchedCount == 1 {
			return &task, nil
		}
	}
	return nil, store.ErrConflict
}

func (s *TaskStore) Delete(ctx context.Context, ownerID, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *TaskStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.coll.DeleteMany(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (s *TaskStore) Stats(ctx context.Context, ownerID string, now time.Time) (store.TaskStats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"owner_id": ownerID}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return store.TaskStats{}, err
	}
	defer cursor.Close(ctx)

	var groups []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return store.TaskStats{}, err
	}

	var stats store.TaskStats
	for _, group := range groups {
		stats.Total += group.Count
		switch models.TaskStatus(group.Status) {
		case models.TaskStatusPending:
			stats.Pending = group.Count
		case models.TaskStatusInProgress:
			stats.InProgress = group.Count
		case models.TaskStatusCompleted:
			stats.Completed = group.Count
		}
	}

	overdue, err := s.coll.CountDocuments(ctx, bson.M{
		"owner_id": ownerID,
		"status":   bson.M{"$ne": string(models.TaskStatusCompleted)},
		"due_date": bson.M{"$lt": now.UTC()},
	})
	if err != nil {
		return store.TaskStats{}, err
	}
	stats.Overdue = overdue
	return stats, nil
}
