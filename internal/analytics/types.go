package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Counters are the site-wide aggregate counters.
//
// OnlineNow is not stored; it is computed from visitor activity within the
// configured online window at read time.
type Counters struct {
	TotalVisitors   int `json:"totalVisitors"`
	PageViews       int `json:"pageViews"`
	RegisteredUsers int `json:"registeredUsers"`
	OnlineNow       int `json:"onlineNow"`
}

// CounterUpdate carries an admin-supplied partial update; nil fields are
// left untouched.
type CounterUpdate struct {
	TotalVisitors   *int `json:"totalVisitors"`
	PageViews       *int `json:"pageViews"`
	RegisteredUsers *int `json:"registeredUsers"`
}

// Visitor is one distinct browser, keyed by a hash of IP and user agent.
type Visitor struct {
	ID           string    `json:"id"`
	IP           string    `json:"ip"`
	UserAgent    string    `json:"userAgent"`
	Location     string    `json:"location"`
	FirstSeen    time.Time `json:"firstSeen"`
	LastActivity time.Time `json:"lastActivity"`
	PageCount    int       `json:"pageCount"`
}

// PageView is one tracked page hit, queued for best-effort recording.
type PageView struct {
	IP        string
	UserAgent string
	Path      string
	At        time.Time
}

// VisitorKey derives the stable visitor identifier from IP and user agent.
func VisitorKey(ip, userAgent string) string {
	h := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(h[:])
}

// Sentinel errors for analytics operations.
var (
	ErrSinkDisabled         = errors.New("influxdb sink is disabled")
	ErrSinkConnectionFailed = errors.New("influxdb connection failed")
	ErrSinkNotConnected     = errors.New("influxdb sink not connected")
)
