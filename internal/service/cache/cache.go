// Package cache keeps denormalized per-user views (pending notifications,
// friend lists, user search results, login credentials) in Redis. It is never
// the source of truth: every miss is recomputed from the repository, and
// every failure here is logged and swallowed so it cannot fail a request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pairchat/internal/model"
	"pairchat/internal/service/redis"
	"pairchat/internal/utils/log"
)

const (
	notificationCap = 100
	notificationTTL = 60 * time.Second
	friendsTTL      = 5 * time.Minute
	usersListTTL    = 5 * time.Minute
	credentialsTTL  = 24 * time.Hour
)

// Commands is the slice of the redis wrapper the cache needs. Tests inject a
// map-backed fake.
type Commands interface {
	LPush(ctx context.Context, key string, value ...any) error
	RPush(ctx context.Context, key string, value ...any) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
	Del(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

type Cache struct {
	cmds Commands
}

func New(cmds Commands) *Cache {
	return &Cache{cmds: cmds}
}

func notificationsKey(userID int64) string { return fmt.Sprintf("notifications:%d", userID) }
func friendsKey(userID int64) string       { return fmt.Sprintf("user:friends:%d", userID) }
func usersListKey(query string) string     { return "usersList:" + query }
func credentialsKey(email string) string   { return "user:email:" + email }

// PushNotification prepends one entry to the recipient's capped list.
func (c *Cache) PushNotification(ctx context.Context, n *model.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		log.Error("cache: marshal notification failed", zap.Error(err))
		return
	}
	key := notificationsKey(n.RelatedUserID)
	if err := c.cmds.LPush(ctx, key, data); err != nil {
		log.Error("cache: push notification failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.cmds.LTrim(ctx, key, 0, notificationCap-1); err != nil {
		log.Error("cache: trim notifications failed", zap.String("key", key), zap.Error(err))
	}
	if err := c.cmds.Expire(ctx, key, notificationTTL); err != nil {
		log.Error("cache: expire notifications failed", zap.String("key", key), zap.Error(err))
	}
}

// Notifications returns the cached list newest-first. ok is false on a miss
// or any infrastructure error.
func (c *Cache) Notifications(ctx context.Context, userID int64) ([]model.Notification, bool) {
	vals, err := c.cmds.LRange(ctx, notificationsKey(userID), 0, -1)
	if err != nil {
		log.Error("cache: read notifications failed", zap.Int64("user", userID), zap.Error(err))
		return nil, false
	}
	if len(vals) == 0 {
		return nil, false
	}
	notifications := make([]model.Notification, 0, len(vals))
	for _, v := range vals {
		var n model.Notification
		if err := json.Unmarshal([]byte(v), &n); err != nil {
			log.Error("cache: corrupt notification entry", zap.Int64("user", userID), zap.Error(err))
			return nil, false
		}
		notifications = append(notifications, n)
	}
	return notifications, true
}

// StoreNotifications repopulates the list after a repository read. The input
// is newest-first; appending in order keeps the head newest.
func (c *Cache) StoreNotifications(ctx context.Context, userID int64, notifications []model.Notification) {
	key := notificationsKey(userID)
	if err := c.cmds.Del(ctx, key); err != nil {
		log.Error("cache: reset notifications failed", zap.String("key", key), zap.Error(err))
		return
	}
	for _, n := range notifications {
		data, err := json.Marshal(n)
		if err != nil {
			log.Error("cache: marshal notification failed", zap.Error(err))
			return
		}
		if err := c.cmds.RPush(ctx, key, data); err != nil {
			log.Error("cache: push notification failed", zap.String("key", key), zap.Error(err))
			return
		}
	}
	if len(notifications) > 0 {
		if err := c.cmds.LTrim(ctx, key, 0, notificationCap-1); err != nil {
			log.Error("cache: trim notifications failed", zap.String("key", key), zap.Error(err))
		}
		if err := c.cmds.Expire(ctx, key, notificationTTL); err != nil {
			log.Error("cache: expire notifications failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// RemoveInvitationNotification drops the consumed invitation_sent entry by
// filtered rewrite, leaving unrelated entries in place.
func (c *Cache) RemoveInvitationNotification(ctx context.Context, userID, invitationID int64) {
	key := notificationsKey(userID)
	vals, err := c.cmds.LRange(ctx, key, 0, -1)
	if err != nil {
		log.Error("cache: read notifications failed", zap.String("key", key), zap.Error(err))
		return
	}
	if len(vals) == 0 {
		return
	}

	kept := make([]string, 0, len(vals))
	for _, v := range vals {
		var n model.Notification
		if err := json.Unmarshal([]byte(v), &n); err == nil &&
			n.InvitationID == invitationID && n.Type == model.NotificationInvitationSent {
			continue
		}
		kept = append(kept, v)
	}

	if err := c.cmds.Del(ctx, key); err != nil {
		log.Error("cache: reset notifications failed", zap.String("key", key), zap.Error(err))
		return
	}
	for _, v := range kept {
		if err := c.cmds.RPush(ctx, key, v); err != nil {
			log.Error("cache: push notification failed", zap.String("key", key), zap.Error(err))
			return
		}
	}
	if len(kept) > 0 {
		if err := c.cmds.Expire(ctx, key, notificationTTL); err != nil {
			log.Error("cache: expire notifications failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (c *Cache) Friends(ctx context.Context, userID int64) ([]model.Friend, bool) {
	data, err := c.cmds.Get(ctx, friendsKey(userID))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Error("cache: read friends failed", zap.Int64("user", userID), zap.Error(err))
		}
		return nil, false
	}
	var friends []model.Friend
	if err := json.Unmarshal([]byte(data), &friends); err != nil {
		log.Error("cache: corrupt friends entry", zap.Int64("user", userID), zap.Error(err))
		return nil, false
	}
	return friends, true
}

func (c *Cache) StoreFriends(ctx context.Context, userID int64, friends []model.Friend) {
	data, err := json.Marshal(friends)
	if err != nil {
		log.Error("cache: marshal friends failed", zap.Error(err))
		return
	}
	if err := c.cmds.Set(ctx, friendsKey(userID), data, friendsTTL); err != nil {
		log.Error("cache: store friends failed", zap.Int64("user", userID), zap.Error(err))
	}
}

// AppendFriend adds one peer to an already-cached friend list, saving the
// round trip a wholesale invalidation would cost. A miss is left for the
// next read-through.
func (c *Cache) AppendFriend(ctx context.Context, userID int64, friend model.Friend) {
	cached, ok := c.Friends(ctx, userID)
	if !ok {
		return
	}
	for _, f := range cached {
		if f.FriendID == friend.FriendID {
			return
		}
	}
	c.StoreFriends(ctx, userID, append(cached, friend))
}

func (c *Cache) UsersList(ctx context.Context, query string) ([]model.User, bool) {
	data, err := c.cmds.Get(ctx, usersListKey(query))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Error("cache: read users list failed", zap.String("query", query), zap.Error(err))
		}
		return nil, false
	}
	var users []model.User
	if err := json.Unmarshal([]byte(data), &users); err != nil {
		log.Error("cache: corrupt users list entry", zap.String("query", query), zap.Error(err))
		return nil, false
	}
	return users, true
}

func (c *Cache) StoreUsersList(ctx context.Context, query string, users []model.User) {
	data, err := json.Marshal(users)
	if err != nil {
		log.Error("cache: marshal users list failed", zap.Error(err))
		return
	}
	if err := c.cmds.Set(ctx, usersListKey(query), data, usersListTTL); err != nil {
		log.Error("cache: store users list failed", zap.String("query", query), zap.Error(err))
	}
}

type credentials struct {
	ID       int64  `json:"id"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// StoreCredentials caches the bcrypt hash so a repeat login skips the user
// row lookup.
func (c *Cache) StoreCredentials(ctx context.Context, email string, userID int64, passwordHash string) {
	data, err := json.Marshal(credentials{ID: userID, Password: passwordHash, Email: email})
	if err != nil {
		log.Error("cache: marshal credentials failed", zap.Error(err))
		return
	}
	if err := c.cmds.Set(ctx, credentialsKey(email), data, credentialsTTL); err != nil {
		log.Error("cache: store credentials failed", zap.String("email", email), zap.Error(err))
	}
}

func (c *Cache) Credentials(ctx context.Context, email string) (userID int64, passwordHash string, ok bool) {
	data, err := c.cmds.Get(ctx, credentialsKey(email))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Error("cache: read credentials failed", zap.String("email", email), zap.Error(err))
		}
		return 0, "", false
	}
	var creds credentials
	if err := json.Unmarshal([]byte(data), &creds); err != nil {
		log.Error("cache: corrupt credentials entry", zap.String("email", email), zap.Error(err))
		return 0, "", false
	}
	return creds.ID, creds.Password, true
}

func (c *Cache) DropCredentials(ctx context.Context, email string) {
	if err := c.cmds.Del(ctx, credentialsKey(email)); err != nil {
		log.Error("cache: drop credentials failed", zap.String("email", email), zap.Error(err))
	}
}
