package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/odvcencio/pagecast/pkg/logging"
	"github.com/odvcencio/pagecast/pkg/stream"
)

const (
	maxWSReadBytes = 1 << 20
	wsPingInterval = 20 * time.Second
	wsPingTimeout  = 5 * time.Second
)

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		s.logger.Warn(logging.CategoryClient, "ws_accept_failed", err.Error(), nil)
		return
	}
	conn.SetReadLimit(maxWSReadBytes)

	client := stream.NewClient(uuid.NewString(), conn)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Queue the meta message before the client becomes visible to the
	// broadcaster so it is always the first payload delivered.
	viewport, url := s.session.Meta(ctx)
	if payload, err := stream.EncodeMeta(viewport, url); err == nil {
		client.Send(payload)
	} else {
		s.logger.Error(logging.CategoryClient, "meta_encode_failed", err.Error(), nil)
	}

	s.registry.Add(client)
	s.logger.Info(logging.CategoryClient, "client_connected", "viewer joined", map[string]any{
		"client_id": client.ID,
		"total":     s.registry.Len(),
	})
	defer func() {
		s.registry.Remove(client)
		client.CloseConn(websocket.StatusNormalClosure, "closing")
		s.logger.Info(logging.CategoryClient, "client_disconnected", "viewer left", map[string]any{
			"client_id": client.ID,
			"total":     s.registry.Len(),
		})
	}()

	startWSPing(ctx, conn)

	go func() {
		if err := client.WriteLoop(ctx); err != nil {
			cancel()
		}
	}()

	s.readClient(ctx, conn, client)
}

// readClient consumes inbound control messages until the connection drops.
// Malformed messages are logged and dropped; the connection stays open.
func (s *Server) readClient(ctx context.Context, conn *websocket.Conn, client *stream.Client) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		event, err := stream.ParseClientMessage(data)
		if err != nil {
			s.logger.Warn(logging.CategoryClient, "bad_client_message", err.Error(), map[string]any{
				"client_id": client.ID,
			})
			continue
		}
		if pipeline := s.session.Pipeline(); pipeline != nil {
			pipeline.Submit(event)
		}
	}
}

func startWSPing(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, wsPingTimeout)
				_ = conn.Ping(pingCtx)
				cancel()
			}
		}
	}()
}
