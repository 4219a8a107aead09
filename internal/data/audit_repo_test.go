package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DexterMayheww/nit-portal-api/internal/ports"
	"github.com/DexterMayheww/nit-portal-api/internal/testutil"
)

var _ ports.AuditRecorder = (*AuditRepo)(nil)

func recordAt(t *testing.T, repo *AuditRepo, at time.Time, event ports.AuditEvent) {
	t.Helper()
	repo.timeProvider = NewFixedTimeProvider(at)
	require.NoError(t, repo.Record(context.Background(), event))
}

func TestAuditRepo_RecordAndList(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewAuditRepo(db)
		ctx := context.Background()

		base := testutil.TestTime()
		recordAt(t, repo, base, ports.AuditEvent{
			Actor:    "alice@inst.edu",
			Event:    ports.AuditEventSignIn,
			Provider: "oidc",
			Success:  true,
		})
		recordAt(t, repo, base.Add(time.Minute), ports.AuditEvent{
			Actor:    "bob@inst.edu",
			Event:    ports.AuditEventOTPVerify,
			Provider: "local",
			Success:  false,
			Detail:   "code mismatch",
		})

		entries, err := repo.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		// Newest first.
		assert.Equal(t, "bob@inst.edu", entries[0].Actor)
		assert.Equal(t, ports.AuditEventOTPVerify, entries[0].Event)
		assert.Equal(t, "code mismatch", entries[0].Detail)
		assert.False(t, entries[0].Success)

		assert.Equal(t, "alice@inst.edu", entries[1].Actor)
		assert.Equal(t, ports.AuditEventSignIn, entries[1].Event)
		assert.Equal(t, "oidc", entries[1].Provider)
		assert.True(t, entries[1].Success)
		assert.NotEqual(t, entries[0].ID, entries[1].ID)
	})
}

func TestAuditRepo_ListRespectsLimit(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewAuditRepo(db)
		ctx := context.Background()

		base := testutil.TestTime()
		for i := 0; i < 5; i++ {
			recordAt(t, repo, base.Add(time.Duration(i)*time.Second), ports.AuditEvent{
				Actor: "alice@inst.edu",
				Event: ports.AuditEventOTPSend,
			})
		}

		entries, err := repo.List(ctx, 3)
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})
}

func TestAuditRepo_ListByActor(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewAuditRepo(db)
		ctx := context.Background()

		base := testutil.TestTime()
		recordAt(t, repo, base, ports.AuditEvent{Actor: "alice@inst.edu", Event: ports.AuditEventSignIn, Success: true})
		recordAt(t, repo, base.Add(time.Second), ports.AuditEvent{Actor: "bob@inst.edu", Event: ports.AuditEventSignIn, Success: true})
		recordAt(t, repo, base.Add(2*time.Second), ports.AuditEvent{Actor: "alice@inst.edu", Event: ports.AuditEventSignOut, Success: true})

		entries, err := repo.ListByActor(ctx, "alice@inst.edu", 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, ports.AuditEventSignOut, entries[0].Event)
		assert.Equal(t, ports.AuditEventSignIn, entries[1].Event)
	})
}

func TestAuditRepo_Purge(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewAuditRepo(db)
		ctx := context.Background()

		base := testutil.TestTime()
		recordAt(t, repo, base.Add(-48*time.Hour), ports.AuditEvent{Actor: "old@inst.edu", Event: ports.AuditEventSignIn})
		recordAt(t, repo, base.Add(-36*time.Hour), ports.AuditEvent{Actor: "old@inst.edu", Event: ports.AuditEventSignOut})
		recordAt(t, repo, base, ports.AuditEvent{Actor: "fresh@inst.edu", Event: ports.AuditEventSignIn})

		purged, err := repo.Purge(ctx, base.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), purged)

		entries, err := repo.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "fresh@inst.edu", entries[0].Actor)
	})
}

func TestAuditRepo_ValidatesInput(t *testing.T) {
	repo := NewAuditRepo(nil)
	ctx := context.Background()

	_, err := repo.List(ctx, 0)
	assert.Error(t, err)

	_, err = repo.ListByActor(ctx, "", 10)
	assert.Error(t, err)

	_, err = repo.ListByActor(ctx, "alice@inst.edu", -1)
	assert.Error(t, err)
}
