//go:build integration

package delivery

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"newsletter-backend/internal/testutil"
	"newsletter-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm/clause"
)

func TestConcurrentWorkersDeliverEachTaskOnce(t *testing.T) {
	db := testutil.NewPostgres(t)

	recipients := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		recipients = append(recipients, fmt.Sprintf("user%02d@x.com", i))
	}
	publish(t, db, recipients...)

	sender := &fakeSender{}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := NewWorker(db, sender, zaptest.NewLogger(t), Config{})
			_, err := w.Drain(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, recipients, sender.recipients())
	assert.EqualValues(t, 0, testutil.QueueLen(t, db))
}

func TestLockedTaskIsSkipped(t *testing.T) {
	db := testutil.NewPostgres(t)
	publish(t, db, "a@x.com", "b@x.com")

	tx := db.Begin()
	require.NoError(t, tx.Error)
	defer tx.Rollback()

	var held models.IssueDeliveryQueueItem
	require.NoError(t, tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("subscriber_email = ?", "a@x.com").
		Take(&held).Error)

	sender := &fakeSender{}
	w := NewWorker(db, sender, zaptest.NewLogger(t), Config{})

	outcome, err := w.TryExecuteTask(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, outcome)

	// the only unlocked row is gone; the locked one is invisible to workers
	outcome, err = w.TryExecuteTask(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EmptyQueue, outcome)
	assert.Equal(t, []string{"b@x.com"}, sender.recipients())
}
