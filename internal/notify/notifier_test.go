package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vatscope/traffic-server/internal/websocket"
	"github.com/vatscope/traffic-server/pkg/logger"
)

func TestTrafficDataUpdatedBroadcasts(t *testing.T) {
	wsServer := websocket.NewServer(logger.NewNop())
	go wsServer.Run()

	notifier := NewWebSocketNotifier(wsServer, logger.NewNop())
	require.NoError(t, notifier.TrafficDataUpdated(context.Background()))
}
