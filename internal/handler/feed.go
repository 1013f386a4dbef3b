package handler

import (
	"context"
	"net/http"

	"firewatch/internal/logger"
	"firewatch/internal/model"
	"firewatch/internal/service/status"
	ws "firewatch/internal/service/websocket"
)

// SnapshotFunc returns the events a new viewer starts from.
type SnapshotFunc func(ctx context.Context) ([]model.StatusEvent, error)

// StatusFeedHandler upgrades GET /ws to a websocket, subscribes the viewer,
// sends the cameras currently on fire, then streams status events until the
// viewer leaves. Events broadcast while the snapshot is written follow it.
func StatusFeedHandler(snapshot SnapshotFunc, sink *status.Sink, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error", "error", err)
			return
		}
		client := ws.NewClient(conn)

		sink.Subscribe(client)
		defer sink.Unsubscribe(client.ID())
		logger.Info("Viewer connected", "client", client.ID())

		if err := client.SendSnapshot(r.Context(), snapshot); err != nil {
			logger.Warning("Viewer dropped during snapshot", "client", client.ID(), "error", err)
			return
		}

		if err := client.ReadUntilClosed(); err != nil {
			logger.Warning("Viewer disconnected with error", "client", client.ID(), "error", err)
			return
		}
		logger.Info("Viewer disconnected", "client", client.ID())
	}
}
