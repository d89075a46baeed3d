package roomdb

import (
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProtocol(t *testing.T) {
	tsr := runSimpleTestScript(t, []simpleTestStmt{
		{stmt: "CLAIM fox is red", ack: "CLAIM 1"},
		{stmt: "claim rock is red", ack: "CLAIM 1"},
		{stmt: "CLAIM #0 fox is fast", ack: "CLAIM 1"},
		{query: "SELECT $x is red", results: `[{"x": "fox"}, {"x": "rock"}]`},
		{query: "SELECT %fact", results: `[
			{"fact": "fox is red"},
			{"fact": "rock is red"},
			{"fact": "#0 fox is fast"}
		]`},
		{query: "SELECT $x is red; $owner $x is fast", results: `[{"x": "fox", "owner": "#0"}]`},
		{query: "SELECT $x is blue", results: `[]`},
		{stmt: "RETRACT fox is $", ack: "RETRACT 1"},
		{stmt: "RETRACT fox is $", ack: "RETRACT 0"},
		{query: "SELECT $x is red", results: `[{"x": "rock"}]`},
		{stmt: "EVALUATE", ack: "EVALUATE"},
		// errors
		{stmt: "FROB fox", error: "validation error: unknown statement: FROB"},
		{stmt: "CLAIM", error: "validation error: CLAIM takes exactly 1 clauses; given 0"},
		{stmt: "CLAIM a; b", error: "validation error: CLAIM takes exactly 1 clauses; given 2"},
		{query: "SELECT", error: "validation error: SELECT takes at least 1 clauses; given 0"},
		{stmt: "EVALUATE now", error: "validation error: EVALUATE takes no clauses; given 1"},
	})
	defer tsr.Close()

	facts, err := tsr.client.Facts()
	require.NoError(t, err)
	require.Equal(t, []string{"rock is red", "#0 fox is fast"}, facts)
}

func TestLiveQuery(t *testing.T) {
	tsr := newTestServer(t)
	defer tsr.Close()
	client := tsr.client

	_, err := client.Exec("CLAIM fox is red")
	require.NoError(t, err)

	initial, channel, err := client.LiveQuery("WHEN $x is red")
	require.NoError(t, err)
	require.Equal(t, []map[string]string{{"x": "fox"}}, resultMaps(initial))

	_, err = client.Exec("CLAIM rock is red")
	require.NoError(t, err)
	_, err = client.Exec("EVALUATE")
	require.NoError(t, err)

	select {
	case update := <-channel.Updates:
		require.Equal(t, SubscriptionUpdateMessage, update.Type)
		require.Equal(t, []map[string]string{
			{"x": "fox"},
			{"x": "rock"},
		}, resultMaps(update.SubscriptionUpdateMessage.Results))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for subscription update")
	}
	require.Equal(t, 1, tsr.db.NumSubscriptions())
}

func TestLiveQueryDuringEvaluation(t *testing.T) {
	tsr := newTestServer(t)
	defer tsr.Close()

	// Claim and evaluate while the WHEN is registering. Fewer rounds than
	// the client buffers, so no update is dropped.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for i := 0; i < 50; i++ {
			tsr.db.ClaimString(fmt.Sprintf("obj%d is red", i))
			_ = tsr.db.EvaluateSubscriptions(tsr.db.Ctx())
		}
	}()

	initial, channel, err := tsr.client.LiveQuery("WHEN $x is red")
	<-stopped
	require.NoError(t, err)

	_, err = tsr.client.Exec("EVALUATE")
	require.NoError(t, err)
	for {
		select {
		case update := <-channel.Updates:
			require.Equal(t, SubscriptionUpdateMessage, update.Type)
			results := update.SubscriptionUpdateMessage.Results
			require.GreaterOrEqual(t, len(results), len(initial))
			if len(results) == tsr.db.Len() {
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for subscription update")
		}
	}
}

func TestUndrainedLiveQueryDoesNotBlockClient(t *testing.T) {
	tsr := newTestServer(t)
	defer tsr.Close()

	_, channel, err := tsr.client.LiveQuery("WHEN $x is red")
	require.NoError(t, err)

	for i := 0; i < updatesBuffer+10; i++ {
		_, err := tsr.client.Exec("EVALUATE")
		require.NoError(t, err)
	}
	require.Equal(t, updatesBuffer, len(channel.Updates))
}

func TestClosedConnectionDropsSubscriptions(t *testing.T) {
	tsr := newTestServer(t)
	defer tsr.server.Close()

	_, _, err := tsr.client.LiveQuery("WHEN $x is red")
	require.NoError(t, err)
	require.Equal(t, 1, tsr.db.NumSubscriptions())

	require.NoError(t, tsr.client.Close())
	require.Eventually(t, func() bool {
		return tsr.db.NumSubscriptions() == 0 && tsr.db.numConnections() == 0
	}, 5*time.Second, 10*time.Millisecond)

	// Evaluating with no one listening is fine.
	require.NoError(t, tsr.db.EvaluateSubscriptions(tsr.db.Ctx()))
}

func TestHTTPEndpoints(t *testing.T) {
	tsr := newTestServer(t)
	defer tsr.Close()

	_, err := tsr.client.Exec("CLAIM #1 fox is red")
	require.NoError(t, err)

	get := func(path string) string {
		resp, err := http.Get(tsr.server.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	require.Equal(t, "DATABASE:\n#1 fox is red\n", get("/facts"))
	metricsText := get("/metrics")
	require.Contains(t, metricsText, "facts 1")
	require.Contains(t, metricsText, "open_connections 1")
}
