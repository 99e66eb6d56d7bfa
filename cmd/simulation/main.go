package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/fatih/color"

	"glasses-cloud-be/internal/constant"
	"glasses-cloud-be/internal/dto"
)

const (
	wsURL  = "ws://localhost:8002/glasses-ws"
	userID = "sim-user@example.com"
)

func send(conn *websocket.Conn, msgType string, payload interface{}) error {
	env, err := dto.NewEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(env)
}

func main() {
	color.Cyan("🕶  Glasses Device Simulator\n")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		color.Red("Failed to connect: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	color.Yellow("\n[1] Handshake as %s", userID)
	if err := send(conn, constant.GlassesConnectionInit, dto.ConnectionInitPayload{UserID: userID}); err != nil {
		color.Red("Handshake send failed: %v", err)
		os.Exit(1)
	}

	var ack dto.Envelope
	if err := conn.ReadJSON(&ack); err != nil {
		color.Red("No ack: %v", err)
		os.Exit(1)
	}
	if ack.Type != constant.CloudConnectionAck {
		color.Red("Rejected: %s %s", ack.Type, string(ack.Payload))
		os.Exit(1)
	}
	var ackPayload dto.ConnectionAckPayload
	json.Unmarshal(ack.Payload, &ackPayload)
	color.Green("Connected, session %s (active apps: %v)", ackPayload.SessionID, ackPayload.ActiveApps)

	// Print everything the cloud pushes at us.
	go func() {
		for {
			var env dto.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				color.Red("\nConnection lost: %v", err)
				os.Exit(1)
			}
			switch env.Type {
			case constant.CloudDisplayEvent:
				var p dto.DisplayEventPayload
				json.Unmarshal(env.Payload, &p)
				color.Magenta("  [DISPLAY %s] %s", p.View, p.Text)
			case constant.CloudSetLocationTier:
				var p dto.SetLocationTierPayload
				json.Unmarshal(env.Payload, &p)
				color.Blue("  [GPS] hardware tier -> %s", p.Tier)
			case constant.CloudRequestSingleFix:
				var p dto.RequestSingleFixPayload
				json.Unmarshal(env.Payload, &p)
				color.Blue("  [GPS] single fix requested (%s), answering", p.Accuracy)
				send(conn, constant.GlassesLocationUpdate, dto.LocationUpdatePayload{
					Lat: 52.3676, Lng: 4.9041, Accuracy: p.Accuracy, CorrelationID: p.CorrelationID,
				})
			default:
				fmt.Printf("  [%s] %s\n", env.Type, string(env.Payload))
			}
		}
	}()

	color.Yellow("\n[2] Battery report")
	send(conn, constant.GlassesBattery, dto.BatteryPayload{Level: 87, Charging: false})

	color.Yellow("\n[3] Speaking burst (VAD on/off)")
	send(conn, constant.GlassesVad, dto.VadPayload{Speaking: true})
	time.Sleep(500 * time.Millisecond)
	send(conn, constant.GlassesVad, dto.VadPayload{Speaking: false})

	color.Yellow("\n[4] Head up (dashboard rotation)")
	send(conn, constant.GlassesHeadPosition, dto.HeadPositionPayload{Position: "up"})

	color.Yellow("\n[5] Continuous location fix")
	send(conn, constant.GlassesLocationUpdate, dto.LocationUpdatePayload{
		Lat: 52.3676, Lng: 4.9041, Accuracy: "standard",
	})

	color.Cyan("\nIdling for pushed events, Ctrl-C to quit")
	for {
		time.Sleep(30 * time.Second)
		send(conn, constant.GlassesBattery, dto.BatteryPayload{Level: 86, Charging: false})
	}
}
