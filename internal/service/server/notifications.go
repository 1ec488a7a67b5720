package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// Notifications lists the caller's pending notifications, cache first.
func (s *HttpServer) Notifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, authed := currentUserID(r)
		if !authed {
			fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		if notifications, hit := s.cache.Notifications(r.Context(), userID); hit {
			ok(w, "", notifications)
			return
		}

		notifications, err := s.store.NotificationsFor(r.Context(), userID)
		if err != nil {
			failErr(w, err)
			return
		}
		s.cache.StoreNotifications(r.Context(), userID, notifications)
		ok(w, "", notifications)
	}
}

func (s *HttpServer) DeleteNotification() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, authed := currentUserID(r)
		if !authed {
			fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			fail(w, http.StatusBadRequest, "invalid notification id")
			return
		}

		if err := s.store.DeleteNotification(r.Context(), id, userID); err != nil {
			failErr(w, err)
			return
		}

		// Rebuild the cached view from the store rather than patching it.
		if notifications, err := s.store.NotificationsFor(r.Context(), userID); err == nil {
			s.cache.StoreNotifications(r.Context(), userID, notifications)
		}
		ok(w, "notification deleted", nil)
	}
}
