package auth

import "time"

// Credentials is a submitted login form.
type Credentials struct {
	Username string `form:"username" validate:"required,max=150"`
	Password string `form:"password" validate:"required,maxbytes=72"`
}

// ClientInfo describes the client opening a session.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// LoginSession is the persisted audit row of a signed-in session. The Redis
// session remains the source of truth; rows outlive it only until purged.
type LoginSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
	IP        string
	UserAgent string
}
