package models

import "time"

// User represents an account (and channel) within the VidTube platform.
type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	FullName         string    `json:"fullName"`
	AvatarURL        string    `json:"avatar"`
	CoverImageURL    string    `json:"coverImage"`
	Password         string    `json:"-"`
	RefreshTokenHash string    `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Sanitized returns a copy of the user with credential fields cleared.
func (u User) Sanitized() User {
	u.Password = ""
	u.RefreshTokenHash = ""
	return u
}

// Video is an uploaded video owned by a channel.
type Video struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	VideoURL     string    `json:"videoFile"`
	ThumbnailURL string    `json:"thumbnail"`
	Duration     float64   `json:"duration"`
	Views        int64     `json:"views"`
	Published    bool      `json:"isPublished"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Comment is a remark left on a video.
type Comment struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"video"`
	OwnerID   string    `json:"owner"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Tweet is a short text post on a channel.
type Tweet struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Playlist is an ordered collection of videos curated by its owner.
type Playlist struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	VideoIDs    []string  `json:"videos"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OwnerRef implementations let the ownership guard inspect any owned resource.
func (v Video) OwnerRef() string    { return v.OwnerID }
func (c Comment) OwnerRef() string  { return c.OwnerID }
func (t Tweet) OwnerRef() string    { return t.OwnerID }
func (p Playlist) OwnerRef() string { return p.OwnerID }

// EdgeKind discriminates engagement edges.
type EdgeKind string

const (
	EdgeVideoLike    EdgeKind = "video"
	EdgeCommentLike  EdgeKind = "comment"
	EdgeTweetLike    EdgeKind = "tweet"
	EdgeSubscription EdgeKind = "subscription"
)

// Valid reports whether k is a known edge kind.
func (k EdgeKind) Valid() bool {
	switch k {
	case EdgeVideoLike, EdgeCommentLike, EdgeTweetLike, EdgeSubscription:
		return true
	}
	return false
}

// IsLike reports whether k is one of the like kinds.
func (k EdgeKind) IsLike() bool {
	return k.Valid() && k != EdgeSubscription
}

// Edge is a directed engagement relation. For subscriptions the actor is the
// subscriber and the target the channel.
type Edge struct {
	ActorID  string
	TargetID string
	Kind     EdgeKind
}

// ChannelProfile is a public channel view with subscription counters.
type ChannelProfile struct {
	User
	SubscribersCount  int64 `json:"subscribersCount"`
	SubscribedToCount int64 `json:"channelsSubscribedToCount"`
	IsSubscribed      bool  `json:"isSubscribed"`
}

// Page selects a window of a listing.
type Page struct {
	Number int
	Limit  int
}

// Offset returns the number of rows preceding the page.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// ChannelStats summarizes a channel for its owner's dashboard.
type ChannelStats struct {
	TotalVideos      int64 `json:"totalVideos"`
	TotalSubscribers int64 `json:"totalSubscribers"`
	TotalViews       int64 `json:"totalViews"`
	TotalLikes       int64 `json:"totalLikes"`
}

// ChannelVideo is a dashboard row: one of the owner's videos with its like count.
type ChannelVideo struct {
	Video
	TotalLikes int64 `json:"totalLikes"`
}
