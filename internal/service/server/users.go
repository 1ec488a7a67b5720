package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"pairchat/internal/model"
)

type registerRequest struct {
	FirstName           string `json:"firstName"`
	LastName            string `json:"lastName"`
	Email               string `json:"email"`
	Password            string `json:"password"`
	PublicKey           string `json:"publicKey"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
	PrivateKeyIV        string `json:"privateKeyIV"`
	PrivateKeySalt      string `json:"privateKeySalt"`
}

// Register creates an account. The key pair is generated client-side at
// account creation; only the public key and the password-encrypted private
// key reach the server.
func (s *HttpServer) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			fail(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.Password == "" {
			fail(w, http.StatusBadRequest, "all fields are required")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			failErr(w, err)
			return
		}

		user := &model.User{
			FirstName:           req.FirstName,
			LastName:            req.LastName,
			Email:               req.Email,
			Password:            string(hash),
			PublicKey:           req.PublicKey,
			EncryptedPrivateKey: req.EncryptedPrivateKey,
			PrivateKeyIV:        req.PrivateKeyIV,
			PrivateKeySalt:      req.PrivateKeySalt,
		}
		if err := s.store.CreateUser(r.Context(), user); err != nil {
			failErr(w, err)
			return
		}

		s.cache.StoreCredentials(r.Context(), user.Email, user.ID, user.Password)
		ok(w, "user created successfully", map[string]int64{"userId": user.ID})
	}
}

// Login verifies credentials, consulting the cache before the user table so
// repeat logins skip the row lookup.
func (s *HttpServer) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			fail(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email == "" || req.Password == "" {
			fail(w, http.StatusBadRequest, "both fields are required")
			return
		}

		if userID, hash, hit := s.cache.Credentials(r.Context(), req.Email); hit {
			if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
				fail(w, http.StatusBadRequest, "invalid credentials")
				return
			}
			ok(w, "login successful", map[string]int64{"userId": userID})
			return
		}

		user, err := s.store.GetUserByEmail(r.Context(), req.Email)
		if err != nil {
			fail(w, http.StatusBadRequest, "invalid credentials")
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
			fail(w, http.StatusBadRequest, "invalid credentials")
			return
		}

		s.cache.StoreCredentials(r.Context(), user.Email, user.ID, user.Password)
		ok(w, "login successful", map[string]int64{"userId": user.ID})
	}
}

func (s *HttpServer) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, authed := currentUserID(r)
		if !authed {
			fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.store.GetUserByID(r.Context(), userID)
		if err != nil {
			failErr(w, err)
			return
		}
		s.cache.DropCredentials(r.Context(), user.Email)
		ok(w, "user logged out successfully", nil)
	}
}

// Me returns the caller's own row including the encrypted private key blob
// the client needs to rebuild its session crypto after login.
func (s *HttpServer) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, authed := currentUserID(r)
		if !authed {
			fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.store.GetUserByID(r.Context(), userID)
		if err != nil {
			failErr(w, err)
			return
		}
		ok(w, "", user)
	}
}

func (s *HttpServer) SearchUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, authed := currentUserID(r)
		if !authed {
			fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		query := r.URL.Query().Get("search")

		if users, hit := s.cache.UsersList(r.Context(), query); hit {
			ok(w, "", users)
			return
		}

		users, err := s.store.SearchUsers(r.Context(), query, userID)
		if err != nil {
			failErr(w, err)
			return
		}
		s.cache.StoreUsersList(r.Context(), query, users)
		ok(w, "", users)
	}
}

func (s *HttpServer) Friends() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, authed := currentUserID(r)
		if !authed {
			fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		if friends, hit := s.cache.Friends(r.Context(), userID); hit {
			ok(w, "", friends)
			return
		}

		friends, err := s.store.Friends(r.Context(), userID)
		if err != nil {
			failErr(w, err)
			return
		}
		s.cache.StoreFriends(r.Context(), userID, friends)
		ok(w, "", friends)
	}
}

// PublicKey serves a friend's long-term public key for session derivation.
func (s *HttpServer) PublicKey() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, authed := currentUserID(r); !authed {
			fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			fail(w, http.StatusBadRequest, "invalid user id")
			return
		}
		key, err := s.store.PublicKey(r.Context(), id)
		if err != nil {
			failErr(w, err)
			return
		}
		ok(w, "", map[string]string{"publicKey": key})
	}
}

// UploadAvatar stores the raw image in object storage and records the URL.
func (s *HttpServer) UploadAvatar() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, authed := currentUserID(r)
		if !authed {
			fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if s.objects == nil {
			fail(w, http.StatusServiceUnavailable, "object storage not configured")
			return
		}

		file, header, err := r.FormFile("avatar")
		if err != nil {
			fail(w, http.StatusBadRequest, "no file uploaded")
			return
		}
		defer file.Close()

		url, err := s.objects.Upload(r.Context(), "avatars", header.Filename,
			header.Header.Get("Content-Type"), file, header.Size)
		if err != nil {
			failErr(w, err)
			return
		}
		if err := s.store.UpdateAvatar(r.Context(), userID, url); err != nil {
			failErr(w, err)
			return
		}
		ok(w, "avatar uploaded successfully", map[string]string{"avatarUrl": url})
	}
}
