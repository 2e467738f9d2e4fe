package main

import (
	"net/http"

	"github.com/Benwil1/latest-copy-sub000/notify"
)

// GET /ws/matches streams the caller's new matches.
func wsMatchesHandler(hub *notify.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, currentUser(r))
	}
}
