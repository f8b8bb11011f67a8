package broadcast

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drink-exchange/internal/storage"
)

func TestWSHandlerStreamsUpdates(t *testing.T) {
	hub := NewHub(16, zerolog.Nop())
	srv := httptest.NewServer(NewWSHandler(hub, zerolog.Nop()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The subscription is registered during the upgrade handshake, but give
	// the handler goroutine a beat before publishing.
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.PublishSnapshot(storage.PriceSnapshot{
		ID:            1,
		PairID:        4,
		PriceDrinkOne: decimal.RequireFromString("6"),
		PriceDrinkTwo: decimal.RequireFromString("4.5"),
		CreatedAt:     time.Now().UTC(),
	})

	var got Update
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, int64(4), got.PairID)
	assert.True(t, got.PriceDrinkOne.Equal(decimal.RequireFromString("6")))
	assert.True(t, got.PriceDrinkTwo.Equal(decimal.RequireFromString("4.5")))
}

func TestWSHandlerUnsubscribesOnDisconnect(t *testing.T) {
	hub := NewHub(16, zerolog.Nop())
	srv := httptest.NewServer(NewWSHandler(hub, zerolog.Nop()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}
