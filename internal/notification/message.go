package notification

import (
	"fmt"
	"strings"
	"time"

	"safezone-alert-service/internal/models"
	"safezone-alert-service/internal/providers"
)

var alertTitles = map[models.AlertType]string{
	models.AlertManual:             "Emergency alert",
	models.AlertSOS:                "SOS",
	models.AlertGeofenceEnter:      "Entered a monitored zone",
	models.AlertGeofenceExit:       "Left a safe zone",
	models.AlertHealthAnomaly:      "Health emergency",
	models.AlertInactivityDetected: "No activity detected",
	models.AlertSensorDetected:     "Unusual sensor reading",
}

func compose(user models.User, alert models.EmergencyAlert) providers.Message {
	title, ok := alertTitles[alert.AlertType]
	if !ok {
		title = "Emergency alert"
	}
	name := user.Name
	if name == "" {
		name = "Your contact"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", name, alert.Message)
	if alert.Latitude != nil && alert.Longitude != nil {
		fmt.Fprintf(&b, "Location: https://maps.google.com/?q=%.6f,%.6f\n", *alert.Latitude, *alert.Longitude)
	}
	if alert.Address != nil && *alert.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", *alert.Address)
	}
	fmt.Fprintf(&b, "Time: %s", alert.TriggeredAt.Format(time.RFC1123))

	return providers.Message{
		Subject:  fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), title),
		Body:     b.String(),
		Priority: alert.Priority,
		Data: map[string]string{
			"alert_id":   alert.ID.String(),
			"alert_type": string(alert.AlertType),
		},
	}
}
