package model

import "time"

type (
	User struct {
		ID        int64     `json:"id"`
		FirstName string    `json:"firstName"`
		LastName  string    `json:"lastName"`
		Email     string    `json:"email"`
		Password  string    `json:"-"`
		Avatar    string    `json:"avatar,omitempty"`
		LastSeen  time.Time `json:"lastSeen"`

		// Long-term key material. The private key only ever exists here
		// encrypted under a password-derived key; the server cannot open it.
		PublicKey           string `json:"publicKey"`
		EncryptedPrivateKey string `json:"encryptedPrivateKey,omitempty"`
		PrivateKeyIV        string `json:"privateKeyIV,omitempty"`
		PrivateKeySalt      string `json:"privateKeySalt,omitempty"`
	}

	// Friend is one row of a user's friend list: the peer plus everything a
	// client needs to open a conversation with them.
	Friend struct {
		FriendID  int64     `json:"friendId"`
		FirstName string    `json:"firstName"`
		LastName  string    `json:"lastName"`
		Avatar    string    `json:"avatar,omitempty"`
		PublicKey string    `json:"publicKey"`
		LastSeen  time.Time `json:"lastSeen"`
	}
)

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
