package notification

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"safezone-alert-service/internal/models"
)

// routes lists, per role of the alerting user, where recipients come from.
// Roles not listed fall back to the emergency contact list.
var routes = map[models.UserRole][]models.Route{
	models.RoleElderly:   {models.RouteEmergencyContact, models.RouteCaregiver},
	models.RoleCaregiver: {models.RouteEmergencyContact},
	models.RoleFamily:    {models.RouteEmergencyContact},
}

var defaultRoutes = []models.Route{models.RouteEmergencyContact}

// RoutesFor returns the recipient sources used for a user of role.
func RoutesFor(role models.UserRole) []models.Route {
	if r, ok := routes[role]; ok {
		return r
	}
	return defaultRoutes
}

// recipient is one person an alert is delivered to, with an address per channel.
type recipient struct {
	route     models.Route
	contactID *uuid.UUID
	name      string
	addresses map[models.Channel]string
}

func (r recipient) address(ch models.Channel) string {
	return r.addresses[ch]
}

func contactRecipient(c models.EmergencyContact) recipient {
	id := c.ID
	r := recipient{
		route:     models.RouteEmergencyContact,
		contactID: &id,
		name:      c.Name,
		addresses: map[models.Channel]string{
			models.ChannelSMS:   c.Phone,
			models.ChannelEmail: c.Email,
			models.ChannelPush:  c.PushToken,
		},
	}
	if c.TelegramChatID != 0 {
		r.addresses[models.ChannelTelegram] = strconv.FormatInt(c.TelegramChatID, 10)
	}
	return r
}

func caregiverRecipient(rel models.CareRelationship) recipient {
	return recipient{
		route:     models.RouteCaregiver,
		name:      rel.CaregiverName,
		addresses: map[models.Channel]string{models.ChannelEmail: rel.CaregiverEmail},
	}
}

// recipients resolves every route for the user. A caregiver already reached
// through the contact list by the same email address is not added twice.
func (d *Dispatcher) recipients(ctx context.Context, user models.User) ([]recipient, error) {
	var out []recipient
	seen := make(map[string]bool)

	for _, route := range RoutesFor(user.Role) {
		switch route {
		case models.RouteEmergencyContact:
			contacts, err := d.store.ListContacts(ctx, user.ID, true)
			if err != nil {
				return nil, fmt.Errorf("failed to load contacts: %w", err)
			}
			for _, c := range contacts {
				out = append(out, contactRecipient(c))
				if c.Email != "" {
					seen[strings.ToLower(c.Email)] = true
				}
			}
		case models.RouteCaregiver:
			rels, err := d.store.ListAcceptedCaregivers(ctx, user.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to load caregivers: %w", err)
			}
			for _, rel := range rels {
				key := strings.ToLower(rel.CaregiverEmail)
				if key == "" || seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, caregiverRecipient(rel))
			}
		}
	}
	return out, nil
}
