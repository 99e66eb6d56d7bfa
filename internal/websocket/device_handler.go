package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"

	"glasses-cloud-be/internal/config"
	"glasses-cloud-be/internal/constant"
	"glasses-cloud-be/internal/dto"
	"glasses-cloud-be/internal/pkg/logger"
	"glasses-cloud-be/internal/service"
)

// Handler terminates device and app websockets and hands authenticated
// connections to the session service.
type Handler struct {
	sessions service.ISessionService
	cfg      *config.Config
	log      logger.ILogger
}

func NewHandler(sessions service.ISessionService, cfg *config.Config, log logger.ILogger) *Handler {
	return &Handler{sessions: sessions, cfg: cfg, log: log}
}

// ServeDevice runs one device connection to completion. The first frame
// must be a connection_init within the handshake timeout.
func (h *Handler) ServeDevice(conn *websocket.Conn) {
	client := NewClient(conn, h.log)
	go client.WritePump()
	client.prepareRead()

	init, ok := h.readDeviceInit(conn, client)
	if !ok {
		return
	}

	sess, ack, err := h.sessions.OnDeviceConnect(context.Background(), client, *init)
	if err != nil {
		h.log.Warn("WebSocket", "Device handshake rejected", map[string]interface{}{
			"user_id": init.UserID, "error": err.Error(),
		})
		h.reject(client, constant.CloudConnectionError, constant.CloseReasonAuthFailed, err.Error())
		return
	}
	defer h.sessions.OnDeviceDisconnect(sess, client)

	if env, err := dto.NewEnvelope(constant.CloudConnectionAck, ack); err == nil {
		env.SessionID = sess.ID
		client.WriteJSON(env)
	}

	h.log.Info("WebSocket", "Device connected", map[string]interface{}{
		"session_id": sess.ID, "user_id": sess.UserID,
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msgType {
		case websocket.BinaryMessage:
			sess.HandleDeviceAudio(data)

		case websocket.TextMessage:
			var env dto.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				h.log.Warn("WebSocket", "Unparseable device frame", map[string]interface{}{
					"session_id": sess.ID, "error": err.Error(),
				})
				continue
			}
			sess.HandleDeviceMessage(env)
		}
	}

	h.log.Info("WebSocket", "Device disconnected", map[string]interface{}{
		"session_id": sess.ID, "user_id": sess.UserID,
	})
}

// readDeviceInit enforces the handshake: one connection_init frame before
// the deadline, anything else closes the socket.
func (h *Handler) readDeviceInit(conn *websocket.Conn, client *Client) (*dto.ConnectionInitPayload, bool) {
	conn.SetReadDeadline(time.Now().Add(h.cfg.Session.HandshakeTimeout))

	_, data, err := conn.ReadMessage()
	if err != nil {
		client.CloseWithReason(constant.CloseReasonHandshakeTimeout)
		return nil, false
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))

	var env dto.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type != constant.GlassesConnectionInit {
		h.reject(client, constant.CloudConnectionError, constant.CloseReasonBadHandshake,
			"expected "+constant.GlassesConnectionInit)
		return nil, false
	}

	var init dto.ConnectionInitPayload
	if err := json.Unmarshal(env.Payload, &init); err != nil {
		h.reject(client, constant.CloudConnectionError, constant.CloseReasonBadHandshake, err.Error())
		return nil, false
	}
	return &init, true
}

func (h *Handler) reject(client *Client, msgType, reason, detail string) {
	if env, err := dto.NewEnvelope(msgType, dto.ConnectionErrorPayload{
		Reason:  reason,
		Message: detail,
	}); err == nil {
		client.WriteJSON(env)
	}
	client.CloseWithReason(reason)
}
