package mongostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/charlesng35/taskpad/internal/models"
	"github.com/charlesng35/taskpad/internal/store"
)

func TestAccountDocumentRoundTrip(t *testing.T) {
	expires := time.Date(2024, 1, 1, 12, 10, 0, 0, time.UTC)
	changed := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)

	account := &models.Account{
		BaseModel:            models.BaseModel{ID: "acc-1", CreatedAt: expires, UpdatedAt: expires},
		Email:                "alice@example.com",
		PasswordHash:         "hash",
		DisplayName:          "alice",
		CredentialsChangedAt: &changed,
	}
	account.SetResetChallenge(&models.Challenge{HashedCode: "reset", ExpiresAt: expires})

	doc := toAccountDocument(account, 4)
	require.Nil(t, doc.Verification)
	require.Equal(t, int64(4), doc.Version)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var decoded accountDocument
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	// The absent slot is omitted, so $unset and a never-set slot look the same.
	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	require.NotContains(t, fields, "verification")

	restored := decoded.model()
	require.Nil(t, restored.VerificationChallenge())
	require.Equal(t, "reset", restored.ResetChallenge().HashedCode)
	require.True(t, restored.ResetChallenge().ExpiresAt.Equal(expires))
	require.True(t, restored.CredentialsChangedAt.Equal(changed))
	require.Equal(t, "acc-1", restored.ID)
}

func TestTaskDocumentRoundTrip(t *testing.T) {
	due := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	task := &models.Task{
		BaseModel: models.BaseModel{ID: "task-1"},
		OwnerID:   "owner",
		Title:     "Plan",
		Status:    models.TaskStatusInProgress,
		Priority:  models.TaskPriorityHigh,
		DueDate:   &due,
	}

	restored := toTaskDocument(task, 1).model()
	require.Equal(t, task.Title, restored.Title)
	require.Equal(t, models.TaskStatusInProgress, restored.Status)
	require.True(t, restored.DueDate.Equal(due))
	require.Nil(t, restored.CompletedAt)
}

func TestSortTasks(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	d1, d2 := base.Add(time.Hour), base.Add(2*time.Hour)

	tasks := []models.Task{
		{Title: "undated-old", BaseModel: models.BaseModel{CreatedAt: base}},
		{Title: "late", DueDate: &d2, BaseModel: models.BaseModel{CreatedAt: base}},
		{Title: "early-new", DueDate: &d1, BaseModel: models.BaseModel{CreatedAt: base.Add(time.Minute)}},
		{Title: "early-old", DueDate: &d1, BaseModel: models.BaseModel{CreatedAt: base}},
		{Title: "undated-new", BaseModel: models.BaseModel{CreatedAt: base.Add(time.Minute)}},
	}
	sortTasks(tasks)

	got := make([]string, len(tasks))
	for i, task := range tasks {
		got[i] = task.Title
	}
	require.Equal(t, []string{"early-old", "early-new", "late", "undated-old", "undated-new"}, got)
}

func TestTaskListFilter(t *testing.T) {
	require.Equal(t, bson.M{"owner_id": "o"}, taskListFilter("o", store.TaskFilter{}))
	require.Equal(t, bson.M{"owner_id": "o", "status": "completed"}, taskListFilter("o", store.TaskFilter{Status: models.TaskStatusCompleted}))
}
