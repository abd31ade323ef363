package domain

import "time"

// AdminToken autoriza el envio de notificaciones push.
type AdminToken struct {
	Token     string    `json:"token"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// PushSubscription es el PushSubscription.toJSON() del navegador.
type PushSubscription struct {
	Endpoint string               `json:"endpoint"`
	Keys     PushSubscriptionKeys `json:"keys"`
}

type PushSubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

func (s PushSubscription) Valid() bool {
	return s.Endpoint != "" && s.Keys.P256dh != "" && s.Keys.Auth != ""
}

type Notification struct {
	Title string
	Body  string
	URL   string
	Icon  string
}

// NotificationPayload es lo que recibe el service worker.
type NotificationPayload struct {
	Title              string           `json:"title"`
	Body               string           `json:"body"`
	URL                string           `json:"url"`
	RequireInteraction bool             `json:"requireInteraction"`
	Data               NotificationData `json:"data"`
	Icon               string           `json:"icon,omitempty"`
}

type NotificationData struct {
	URL string `json:"url"`
}

func (n Notification) Payload() NotificationPayload {
	return NotificationPayload{
		Title:              n.Title,
		Body:               n.Body,
		URL:                n.URL,
		RequireInteraction: true,
		Data:               NotificationData{URL: n.URL},
		Icon:               n.Icon,
	}
}

type GroupDeliveryReport struct {
	Success      []string `json:"success"`
	Error        []string `json:"error"`
	Total        int      `json:"total"`
	SuccessCount int      `json:"success_count"`
	ErrorCount   int      `json:"error_count"`
}
