package websocket

import (
	"encoding/json"
	"log"

	"cvrbackend/internal/model"
)

// AlertNotifier pushes persisted alerts to connected dashboard clients
// through the hub.
type AlertNotifier struct {
	hub *Hub
}

func NewAlertNotifier(hub *Hub) *AlertNotifier {
	return &AlertNotifier{hub: hub}
}

type alertMessage struct {
	Type string       `json:"type"`
	Data *model.Alert `json:"data"`
}

// NotifyAlert broadcasts an alert as a JSON message, routed by job so
// filtered dashboards only see the jobs they watch. Delivery is best-effort.
func (n *AlertNotifier) NotifyAlert(alert *model.Alert) {
	payload, err := json.Marshal(alertMessage{Type: "alert", Data: alert})
	if err != nil {
		log.Printf("failed to marshal alert message: %v", err)
		return
	}
	select {
	case n.hub.Broadcast <- Envelope{JobID: alert.JobID.String(), Payload: payload}:
	default:
		log.Println("alert broadcast dropped: hub busy")
	}
}
