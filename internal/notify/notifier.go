// Package notify bridges the refresh pipeline to its listeners: every
// completed cycle produces exactly one change announcement.
package notify

import (
	"context"
	"time"

	"github.com/vatscope/traffic-server/internal/websocket"
	"github.com/vatscope/traffic-server/pkg/logger"
)

// WebSocketNotifier announces state replacements to all connected WebSocket
// clients.
type WebSocketNotifier struct {
	wsServer *websocket.Server
	logger   *logger.Logger
}

// NewWebSocketNotifier creates a notifier over the given WebSocket server.
func NewWebSocketNotifier(wsServer *websocket.Server, loggerObj *logger.Logger) *WebSocketNotifier {
	return &WebSocketNotifier{
		wsServer: wsServer,
		logger:   loggerObj.Named("notifier"),
	}
}

// TrafficDataUpdated broadcasts one update announcement.
func (n *WebSocketNotifier) TrafficDataUpdated(ctx context.Context) error {
	n.wsServer.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeTrafficUpdated,
		Data: map[string]any{
			"updated_at": time.Now().UTC().Format(time.RFC3339),
		},
	})

	n.logger.Debug("Broadcast traffic update",
		logger.Int("clients", n.wsServer.ClientCount()),
	)
	return nil
}
