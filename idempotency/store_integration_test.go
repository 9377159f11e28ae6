//go:build integration

package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	"newsletter-backend/internal/testutil"
	"newsletter-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentClaimsProcessOnce(t *testing.T) {
	db := testutil.NewPostgres(t)
	store := NewStore(db)
	key := mustKey(t, "concurrent")

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		processed int
		responses []Response
	)

	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			ctx := context.Background()
			claim, err := store.ClaimOrReplay(ctx, key, adminID)
			if !assert.NoError(t, err) {
				return
			}

			resp := claim.Response
			if claim.Outcome == Processing {
				issue := models.NewsletterIssue{Title: "T", TextContent: "body", HTMLContent: "<p>body</p>"}
				if !assert.NoError(t, claim.Handle.Tx().Create(&issue).Error) {
					_ = claim.Handle.Rollback()
					return
				}
				// hold the claim so the other callers queue up behind it
				time.Sleep(200 * time.Millisecond)
				resp, err = store.CommitResponse(ctx, claim.Handle, seeOther())
				if !assert.NoError(t, err) {
					return
				}
			}

			mu.Lock()
			defer mu.Unlock()
			if claim.Outcome == Processing {
				processed++
			}
			responses = append(responses, resp)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, processed)
	require.Len(t, responses, callers)
	for _, r := range responses {
		assert.True(t, r.Equal(seeOther()))
	}
	assert.EqualValues(t, 1, testutil.IssueCount(t, db))
}

func TestConcurrentClaimAfterRollbackIsProcessed(t *testing.T) {
	db := testutil.NewPostgres(t)
	store := NewStore(db)
	key := mustKey(t, "rolled-back")
	ctx := context.Background()

	first, err := store.ClaimOrReplay(ctx, key, adminID)
	require.NoError(t, err)
	require.Equal(t, Processing, first.Outcome)

	second := make(chan Claim, 1)
	go func() {
		c, err := store.ClaimOrReplay(ctx, key, adminID)
		assert.NoError(t, err)
		second <- c
	}()

	// the second claim blocks on the uncommitted insert
	select {
	case <-second:
		t.Fatal("second claim returned while the first was still open")
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, first.Handle.Rollback())

	select {
	case c := <-second:
		require.Equal(t, Processing, c.Outcome)
		require.NoError(t, c.Handle.Rollback())
	case <-time.After(10 * time.Second):
		t.Fatal("second claim did not resume after rollback")
	}
}
