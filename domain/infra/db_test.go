package infra

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/pyama86/quera/domain/model"
	"github.com/stretchr/testify/assert"
)

func newTestDB(t *testing.T) *DataBase {
	t.Helper()
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "quera_test.db"))
	db, err := NewDataBase()
	assert.NoError(t, err)
	return db
}

func TestDataBase_SaveAndGetQuery(t *testing.T) {
	db := newTestDB(t)

	query := &model.Query{
		ID:       "q1",
		Sender:   "customer@example.com",
		Channel:  model.ChannelEmail,
		Message:  "My payment failed, please help urgently",
		Category: model.CategoryComplaint,
		Priority: 5,
		Status:   model.StatusOpen,
	}
	assert.NoError(t, db.SaveQuery(query))

	got, err := db.GetQuery("q1")
	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, query.Sender, got.Sender)
	assert.Equal(t, model.CategoryComplaint, got.Category)
	assert.Equal(t, 5, got.Priority)
	assert.Equal(t, model.StatusOpen, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	// 存在しないIDはエラーではなくnil
	missing, err := db.GetQuery("nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDataBase_SaveQuery_Upsert(t *testing.T) {
	db := newTestDB(t)

	query := &model.Query{ID: "q1", Sender: "a", Channel: model.ChannelChat, Message: "m", Category: model.CategoryOther, Priority: 3, Status: model.StatusOpen}
	assert.NoError(t, db.SaveQuery(query))

	assert.NoError(t, query.Assign("agent1"))
	assert.NoError(t, db.SaveQuery(query))

	got, err := db.GetQuery("q1")
	assert.NoError(t, err)
	assert.Equal(t, model.StatusAssigned, got.Status)
	assert.Equal(t, "agent1", got.AssignedTo)

	all, err := db.AllQueries()
	assert.NoError(t, err)
	assert.Len(t, all, 1)
}

func seedQuery(t *testing.T, db *DataBase, id, status, assignedTo string, priority int, createdAt time.Time) {
	t.Helper()
	err := db.SaveQuery(&model.Query{
		ID:         id,
		Sender:     "sender-" + id,
		Channel:    model.ChannelEmail,
		Message:    "message " + id,
		Category:   model.CategoryQuestion,
		Priority:   priority,
		Status:     status,
		AssignedTo: assignedTo,
		CreatedAt:  createdAt,
	})
	assert.NoError(t, err)
}

func TestDataBase_LatestQueries(t *testing.T) {
	db := newTestDB(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		seedQuery(t, db, fmt.Sprintf("q%02d", i), model.StatusOpen, "", 3, base.Add(time.Duration(i)*time.Minute))
	}

	queries, err := db.LatestQueries(20)
	assert.NoError(t, err)
	assert.Len(t, queries, 20)
	// 新しい順
	assert.Equal(t, "q24", queries[0].ID)
	assert.Equal(t, "q05", queries[19].ID)
}

func TestDataBase_ActiveQueries(t *testing.T) {
	db := newTestDB(t)

	now := time.Now()
	seedQuery(t, db, "open1", model.StatusOpen, "", 2, now)
	seedQuery(t, db, "assigned1", model.StatusAssigned, "agent1", 5, now)
	seedQuery(t, db, "resolved1", model.StatusResolved, "agent1", 4, now)
	seedQuery(t, db, "closed1", model.StatusClosed, "agent1", 5, now)

	queries, err := db.ActiveQueries(10)
	assert.NoError(t, err)
	assert.Len(t, queries, 3)
	assert.Equal(t, "assigned1", queries[0].ID) // priority desc
	for _, q := range queries {
		assert.NotEqual(t, model.StatusClosed, q.Status)
	}
}

func TestDataBase_AssignedQueries(t *testing.T) {
	db := newTestDB(t)

	now := time.Now()
	seedQuery(t, db, "mine1", model.StatusAssigned, "agent1", 2, now)
	seedQuery(t, db, "mine2", model.StatusInProgress, "agent1", 5, now)
	seedQuery(t, db, "mine3", model.StatusResolved, "agent1", 4, now)
	seedQuery(t, db, "other1", model.StatusAssigned, "agent2", 5, now)
	seedQuery(t, db, "open1", model.StatusOpen, "", 5, now)

	queries, err := db.AssignedQueries("agent1", 10)
	assert.NoError(t, err)
	assert.Len(t, queries, 2)
	assert.Equal(t, "mine2", queries[0].ID)
	assert.Equal(t, "mine1", queries[1].ID)
}

func TestDataBase_SolvedQueries(t *testing.T) {
	db := newTestDB(t)

	now := time.Now()
	seedQuery(t, db, "solved1", model.StatusResolved, "agent1", 3, now.Add(-2*time.Minute))
	seedQuery(t, db, "closed1", model.StatusClosed, "agent1", 3, now.Add(-time.Minute))
	seedQuery(t, db, "active1", model.StatusAssigned, "agent1", 3, now)
	seedQuery(t, db, "other1", model.StatusResolved, "agent2", 3, now)

	queries, err := db.SolvedQueries("agent1", 10)
	assert.NoError(t, err)
	assert.Len(t, queries, 2)
	for _, q := range queries {
		assert.Contains(t, []string{model.StatusResolved, model.StatusClosed}, q.Status)
		assert.Equal(t, "agent1", q.AssignedTo)
	}
}
