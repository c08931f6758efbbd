package realtime

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/davemejos/mediasync/pkg/migrations"
	"github.com/davemejos/mediasync/pkg/models"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	return db
}

func TestHubBroadcast(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	hub := NewHub(newTestDB(t))
	hub.Start()
	defer hub.Stop()

	c := &client{id: "client-1", hub: hub, send: make(chan []byte, 4)}
	hub.register <- c

	require.Eventually(t, func() bool {
		conns, err := hub.service.ListConnections(ctx, ListConnectionsOptions{})
		return err == nil && len(conns) == 1
	}, time.Second, 10*time.Millisecond)

	folder := "covers"
	hub.Broadcast(NewEvent(EventMediaSynced, &models.MediaAsset{
		ID:         7,
		Folder:     folder,
		SyncStatus: models.SyncStatusSynced,
	}))

	select {
	case msg := <-c.send:
		event := Event{}
		require.NoError(t, json.Unmarshal(msg, &event))
		assert.Equal(t, EventMediaSynced, event.Type)
		require.NotNil(t, event.Asset)
		assert.Equal(t, 7, event.Asset.ID)
		assert.Equal(t, folder, event.Asset.Folder)
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestHubUnregister(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	hub := NewHub(newTestDB(t))
	hub.Start()
	defer hub.Stop()

	c := &client{id: "client-2", hub: hub, send: make(chan []byte, 4)}
	hub.register <- c

	require.Eventually(t, func() bool {
		conns, err := hub.service.ListConnections(ctx, ListConnectionsOptions{})
		return err == nil && len(conns) == 1
	}, time.Second, 10*time.Millisecond)

	hub.unregister <- c

	// The send channel is closed once the dispatch loop drops the client.
	select {
	case _, ok := <-c.send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel never closed")
	}

	// The connection row is flipped, not deleted.
	require.Eventually(t, func() bool {
		conns, err := hub.service.ListConnections(ctx, ListConnectionsOptions{
			Statuses: []string{models.ConnectionStatusDisconnected},
		})
		return err == nil && len(conns) == 1 && conns[0].ClientID == "client-2"
	}, time.Second, 10*time.Millisecond)
}

func TestHubDropsSlowConsumer(t *testing.T) {
	t.Parallel()

	hub := NewHub(newTestDB(t))
	hub.Start()
	defer hub.Stop()

	// Unbuffered send channel with no reader simulates a stalled client.
	c := &client{id: "client-3", hub: hub, send: make(chan []byte)}
	hub.register <- c

	require.Eventually(t, func() bool {
		conns, err := hub.service.ListConnections(context.Background(), ListConnectionsOptions{})
		return err == nil && len(conns) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast(NewEvent(EventMediaCreated, &models.MediaAsset{ID: 1}))

	select {
	case _, ok := <-c.send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("slow consumer never dropped")
	}
}

func TestDropAfterStopDoesNotBlock(t *testing.T) {
	t.Parallel()

	hub := NewHub(newTestDB(t))
	hub.Start()

	c := &client{id: "client-5", hub: hub, send: make(chan []byte, 4)}
	hub.register <- c

	require.Eventually(t, func() bool {
		conns, err := hub.service.ListConnections(context.Background(), ListConnectionsOptions{})
		return err == nil && len(conns) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Stop()

	// A read pump tearing down after shutdown must not hang on the
	// dispatch loop.
	done := make(chan struct{})
	go func() {
		hub.drop(c)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drop blocked after hub shutdown")
	}
}

func TestServiceConnectionLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc := NewService(newTestDB(t))

	err := svc.UpsertConnection(ctx, &models.ConnectionStatus{
		ClientID: "client-4",
		Status:   models.ConnectionStatusConnected,
	})
	require.NoError(t, err)

	// A heartbeat for the same client updates the row in place.
	err = svc.UpsertConnection(ctx, &models.ConnectionStatus{
		ClientID:          "client-4",
		Status:            models.ConnectionStatusReconnecting,
		ReconnectAttempts: 3,
		LatencyMs:         42,
	})
	require.NoError(t, err)

	conns, err := svc.ListConnections(ctx, ListConnectionsOptions{})
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, models.ConnectionStatusReconnecting, conns[0].Status)
	assert.Equal(t, 3, conns[0].ReconnectAttempts)
	assert.Equal(t, 42, conns[0].LatencyMs)

	err = svc.MarkDisconnected(ctx, "client-4")
	require.NoError(t, err)

	conns, err = svc.ListConnections(ctx, ListConnectionsOptions{
		Statuses: []string{models.ConnectionStatusDisconnected},
	})
	require.NoError(t, err)
	require.Len(t, conns, 1)
}
