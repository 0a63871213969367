package avatar_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micdrop/avatar-bridge/internal/avatar"
	"github.com/micdrop/avatar-bridge/internal/discord"
	"github.com/micdrop/avatar-bridge/internal/testhelpers"
)

// setupLookupRouter builds a lookup endpoint whose behaviour varies by
// identifier: "500" is an unknown user, everything else resolves.
func setupLookupRouter(t *testing.T) *httptest.Server {
	t.Helper()

	router := http.NewServeMux()
	router.HandleFunc("/users/{identifier}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("identifier") == "500" {
			w.WriteHeader(http.StatusNotFound)
			testhelpers.WriteJSON(w, map[string]any{"message": "Unknown User"})
			return
		}
		testhelpers.WriteJSON(w, map[string]any{"id": r.PathValue("identifier"), "avatar": "abc123"})
	})

	return httptest.NewServer(router)
}

func TestOrchestratorRun_IndependentIdentifiers(t *testing.T) {
	api := setupLookupRouter(t)
	defer api.Close()
	cdn := testhelpers.SetupMockCDNServer(t)
	defer cdn.Close()

	dl, store := newDownloader(t, api.URL, cdn.Server.URL)
	orchestrator := avatar.NewOrchestrator(dl, "token", 256, 1)

	results := orchestrator.Run(context.Background(), []string{"100", "500", "notanumber", "300"})

	require.Len(t, results, 4)

	assert.Equal(t, "100", results[0].Identifier)
	assert.NoError(t, results[0].Err)
	assert.True(t, store.Exists(results[0].Path))

	// an unknown user surfaces per-identifier and does not abort the batch
	var unknown *discord.UnknownUserError
	assert.ErrorAs(t, results[1].Err, &unknown)

	assert.NoError(t, results[2].Err)
	assert.Empty(t, results[2].Path)

	assert.NoError(t, results[3].Err)
	assert.True(t, store.Exists(results[3].Path))
}

func TestOrchestratorRun_BoundedParallelism(t *testing.T) {
	api := setupLookupRouter(t)
	defer api.Close()
	cdn := testhelpers.SetupMockCDNServer(t)
	defer cdn.Close()

	dl, store := newDownloader(t, api.URL, cdn.Server.URL)
	orchestrator := avatar.NewOrchestrator(dl, "token", 256, 4)

	identifiers := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	results := orchestrator.Run(context.Background(), identifiers)

	require.Len(t, results, len(identifiers))
	for i, res := range results {
		assert.Equal(t, identifiers[i], res.Identifier)
		assert.NoError(t, res.Err)
		assert.True(t, store.Exists(res.Path))
	}
}

func TestOrchestratorRun_InvalidTokenCancelsRemainingWork(t *testing.T) {
	api := testhelpers.SetupMockDiscordServer(t)
	defer api.Close()
	api.StatusCode = http.StatusUnauthorized
	api.Message = "401: Unauthorized"
	cdn := testhelpers.SetupMockCDNServer(t)
	defer cdn.Close()

	dl, _ := newDownloader(t, api.Server.URL, cdn.Server.URL)
	orchestrator := avatar.NewOrchestrator(dl, "revoked", 256, 1)

	results := orchestrator.Run(context.Background(), []string{"1", "2", "3"})

	var invalid *discord.InvalidTokenError
	require.ErrorAs(t, results[0].Err, &invalid)

	// remaining identifiers are not attempted with a dead credential
	assert.Equal(t, 1, api.RequestCount)
	assert.ErrorIs(t, results[1].Err, context.Canceled)
	assert.ErrorIs(t, results[2].Err, context.Canceled)
}

func TestGateWait_HonoursCancellation(t *testing.T) {
	gate := avatar.NewGate(1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, gate.Wait(ctx))
}

func TestGateBackoff_WaitsRequestedDuration(t *testing.T) {
	gate := avatar.NewGate(1000)

	start := time.Now()
	require.NoError(t, gate.Backoff(context.Background(), 50*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestGateBackoff_HonoursCancellation(t *testing.T) {
	gate := avatar.NewGate(1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := gate.Backoff(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGateBackoff_BlocksWaiters(t *testing.T) {
	gate := avatar.NewGate(1000)

	release := make(chan struct{})
	go func() {
		_ = gate.Backoff(context.Background(), 50*time.Millisecond)
		close(release)
	}()

	// Let the backoff acquire the gate before waiting on it.
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	require.NoError(t, gate.Wait(context.Background()))

	<-release
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
