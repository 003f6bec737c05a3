package handlers

import (
	"net/http"

	"github.com/leoportal/leo-portal-api/notify"
)

// Notification exported for testing purposes
type Notification struct {
	Hub *notify.Hub
}

// HandleNotificationsWebSocket upgrades the request and registers the
// authenticated caller on the hub. Browsers cannot set headers on websocket
// requests, so the token normally arrives as ?access_token.
func (n Notification) HandleNotificationsWebSocket(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	n.Hub.ServeWS(w, r, p.UserID)
}
