package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"pairchat/internal/model"
	"pairchat/internal/repository"
	"pairchat/internal/service/cache"
	"pairchat/internal/service/objectstore"
	"pairchat/internal/service/presence"
	"pairchat/internal/utils/log"
)

type (
	HttpServer struct {
		store    *repository.Store
		cache    *cache.Cache
		registry *presence.Registry
		objects  *objectstore.ObjectStore
		addr     string
	}

	response struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
		Data    any    `json:"data,omitempty"`
	}
)

func NewHttpServer(store *repository.Store, cache *cache.Cache, registry *presence.Registry, objects *objectstore.ObjectStore, addr string) *HttpServer {
	return &HttpServer{
		store:    store,
		cache:    cache,
		registry: registry,
		objects:  objects,
		addr:     addr,
	}
}

func (s *HttpServer) Run() error {
	return http.ListenAndServe(s.addr, s.Router())
}

// Router wires the HTTP surface. Session issuance and routing policy live in
// an outer layer; handlers trust the user id it injects via X-User-ID.
func (s *HttpServer) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/user/register", s.Register()).Methods(http.MethodPost)
	api.HandleFunc("/user/login", s.Login()).Methods(http.MethodPost)
	api.HandleFunc("/user/logout", s.Logout()).Methods(http.MethodPost)
	api.HandleFunc("/user/me", s.Me()).Methods(http.MethodGet)
	api.HandleFunc("/user/users", s.SearchUsers()).Methods(http.MethodGet)
	api.HandleFunc("/user/friends", s.Friends()).Methods(http.MethodGet)
	api.HandleFunc("/user/{id}/key", s.PublicKey()).Methods(http.MethodGet)
	api.HandleFunc("/user/avatar", s.UploadAvatar()).Methods(http.MethodPost)

	api.HandleFunc("/invitation/{inviteeId}", s.CreateInvitation()).Methods(http.MethodPost)
	api.HandleFunc("/invitation/{id}/accept", s.AcceptInvitation()).Methods(http.MethodPost)

	api.HandleFunc("/notification", s.Notifications()).Methods(http.MethodGet)
	api.HandleFunc("/notification/{id}", s.DeleteNotification()).Methods(http.MethodDelete)

	api.HandleFunc("/chat", s.SendMessage()).Methods(http.MethodPost)
	api.HandleFunc("/chat/upload", s.UploadAttachment()).Methods(http.MethodPost)
	api.HandleFunc("/chat/{roomId}/messages", s.History()).Methods(http.MethodGet)

	r.HandleFunc("/ws", s.HandleInitWS()).Methods(http.MethodGet)
	return r
}

// currentUserID reads the identity the excluded auth layer injected.
func currentUserID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("write response failed", zap.Error(err))
	}
}

func ok(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, response{Success: true, Message: message, Data: data})
}

func fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Success: false, Message: message})
}

// failErr maps the repository taxonomy onto HTTP statuses, keeping the
// descriptive reason for the client.
func failErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrConflict):
		fail(w, http.StatusConflict, err.Error())
	default:
		log.Error("request failed", zap.Error(err))
		fail(w, http.StatusInternalServerError, "internal server error")
	}
}
