package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"pairchat/internal/model"
	"pairchat/internal/utils/log"
)

// CreateInvitation starts the friendship handshake. The relational write is
// authoritative; the cache push and websocket nudge after it are best-effort.
func (s *HttpServer) CreateInvitation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inviterID, authed := currentUserID(r)
		if !authed {
			fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		inviteeID, err := strconv.ParseInt(mux.Vars(r)["inviteeId"], 10, 64)
		if err != nil || inviteeID <= 0 {
			fail(w, http.StatusBadRequest, "invitee id is required")
			return
		}
		if inviteeID == inviterID {
			fail(w, http.StatusBadRequest, "cannot invite yourself")
			return
		}

		notification, err := s.store.CreateInvitation(r.Context(), inviterID, inviteeID)
		if err != nil {
			failErr(w, err)
			return
		}

		s.cache.PushNotification(r.Context(), notification)
		s.notify(inviteeID, model.EventInviteNotification, notification)

		ok(w, "invitation sent successfully", notification)
	}
}

// AcceptInvitation completes the handshake. All relational changes committed
// inside the store; everything after is fan-out.
func (s *HttpServer) AcceptInvitation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accepterID, authed := currentUserID(r)
		if !authed {
			fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		invitationID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil || invitationID <= 0 {
			fail(w, http.StatusBadRequest, "invitation id is required")
			return
		}

		res, err := s.store.AcceptInvitation(r.Context(), invitationID, accepterID)
		if err != nil {
			failErr(w, err)
			return
		}

		ctx := r.Context()
		s.cache.RemoveInvitationNotification(ctx, res.Invitation.InviteeID, res.Invitation.ID)
		s.cache.PushNotification(ctx, &res.Notification)
		s.cache.AppendFriend(ctx, res.Invitation.InviterID, res.Invitee)
		s.cache.AppendFriend(ctx, res.Invitation.InviteeID, res.Inviter)
		s.notify(res.Invitation.InviterID, model.EventInviteAccepted, res.Notification)

		ok(w, "invitation accepted successfully", res.Notification)
	}
}

// notify pushes an event to every live connection a user holds.
func (s *HttpServer) notify(userID int64, event string, payload any) {
	ev, err := model.NewEvent(event, payload)
	if err != nil {
		log.Error("marshal event failed", zap.String("event", event), zap.Error(err))
		return
	}
	s.registry.SendToUser(userID, ev)
}
