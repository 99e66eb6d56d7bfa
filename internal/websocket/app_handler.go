package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"

	"glasses-cloud-be/internal/constant"
	"glasses-cloud-be/internal/dto"
	"glasses-cloud-be/internal/service"
)

// ServeApp runs one app-server connection to completion. The first frame
// must be a tpa_connection_init carrying the package name, API key, and
// target session id.
func (h *Handler) ServeApp(conn *websocket.Conn) {
	client := NewClient(conn, h.log)
	go client.WritePump()
	client.prepareRead()

	init, ok := h.readAppInit(conn, client)
	if !ok {
		return
	}

	sess, err := h.sessions.OnAppConnect(context.Background(), client, *init)
	if err != nil {
		reason := constant.CloseReasonAuthFailed
		if errors.Is(err, service.ErrUnknownSession) {
			reason = constant.CloseReasonUnknownSession
		}
		h.log.Warn("WebSocket", "App handshake rejected", map[string]interface{}{
			"package": init.PackageName, "session_id": init.SessionID, "error": err.Error(),
		})
		h.reject(client, constant.AppConnectionError, reason, err.Error())
		return
	}
	defer h.sessions.OnAppDisconnect(sess, init.PackageName, client)

	h.log.Info("WebSocket", "App connected", map[string]interface{}{
		"session_id": sess.ID, "package": init.PackageName,
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if msgType != websocket.TextMessage {
			continue
		}
		var env dto.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.log.Warn("WebSocket", "Unparseable app frame", map[string]interface{}{
				"session_id": sess.ID, "package": init.PackageName, "error": err.Error(),
			})
			continue
		}
		sess.HandleAppMessage(init.PackageName, env)
	}

	h.log.Info("WebSocket", "App disconnected", map[string]interface{}{
		"session_id": sess.ID, "package": init.PackageName,
	})
}

func (h *Handler) readAppInit(conn *websocket.Conn, client *Client) (*dto.AppConnectionInitPayload, bool) {
	conn.SetReadDeadline(time.Now().Add(h.cfg.Session.HandshakeTimeout))

	_, data, err := conn.ReadMessage()
	if err != nil {
		client.CloseWithReason(constant.CloseReasonHandshakeTimeout)
		return nil, false
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))

	var env dto.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type != constant.AppConnectionInit {
		h.reject(client, constant.AppConnectionError, constant.CloseReasonBadHandshake,
			"expected "+constant.AppConnectionInit)
		return nil, false
	}

	var init dto.AppConnectionInitPayload
	if err := json.Unmarshal(env.Payload, &init); err != nil {
		h.reject(client, constant.AppConnectionError, constant.CloseReasonBadHandshake, err.Error())
		return nil, false
	}
	if init.PackageName == "" || init.SessionID == "" {
		h.reject(client, constant.AppConnectionError, constant.CloseReasonBadHandshake,
			"package_name and session_id are required")
		return nil, false
	}
	return &init, true
}
