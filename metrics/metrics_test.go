package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tolelom/triviachain/events"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsFollowEvents(t *testing.T) {
	emitter := events.NewEmitter(nil)
	m := New(emitter)

	emit := func(typ events.EventType, height uint64, data map[string]any) {
		ev := events.New(typ, data)
		ev.Height = height
		emitter.Emit(ev)
	}
	emit(events.EventGameCreated, 2, map[string]any{"game_id": uint64(1)})
	emit(events.EventTxExecuted, 2, map[string]any{"type": "game_create", "ok": true})
	emit(events.EventPlayerEliminated, 3, map[string]any{"stage": uint8(2)})
	emit(events.EventTxExecuted, 3, map[string]any{"type": "game_submit", "ok": true})
	emit(events.EventTxExecuted, 4, map[string]any{"type": "game_submit", "ok": false})
	emit(events.EventNFTMinted, 5, nil)
	emit(events.EventGameEnded, 5, nil)

	body := scrape(t, m)
	assert.Contains(t, body, `triviachain_games_created_total 1`)
	assert.Contains(t, body, `triviachain_games_ended_total 1`)
	assert.Contains(t, body, `triviachain_nfts_minted_total 1`)
	assert.Contains(t, body, `triviachain_eliminations_total{stage="2"} 1`)
	assert.Contains(t, body, `triviachain_transactions_total{ok="true",type="game_submit"} 1`)
	assert.Contains(t, body, `triviachain_transactions_total{ok="false",type="game_submit"} 1`)
	assert.Contains(t, body, `triviachain_events_total{type="tx_executed"} 3`)
	assert.Contains(t, body, `triviachain_height 5`)
	assert.Contains(t, body, `go_goroutines`)
}

func TestMetricsInstancesAreIndependent(t *testing.T) {
	a := New(events.NewEmitter(nil))
	b := New(events.NewEmitter(nil))
	assert.NotSame(t, a.Registry(), b.Registry())
}
