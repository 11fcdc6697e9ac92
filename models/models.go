package models

import (
	"fmt"
	"time"
)

// Platform identifies the social network an item came from
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformX         Platform = "x"
)

// Platforms lists the platforms the dashboard can fetch from
var Platforms = []Platform{PlatformFacebook, PlatformInstagram}

// ParsePlatform converts user input into a Platform
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformFacebook, PlatformInstagram, PlatformX:
		return Platform(s), nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Label returns the display name of the platform
func (p Platform) Label() string {
	switch p {
	case PlatformFacebook:
		return "Facebook"
	case PlatformInstagram:
		return "Instagram"
	case PlatformX:
		return "X"
	}
	return string(p)
}

// Ref is the cross-platform identity of an item. IDs are only unique
// within their platform.
type Ref struct {
	Platform Platform `json:"platform"`
	ID       string   `json:"id"`
}

func (r Ref) String() string {
	return string(r.Platform) + ":" + r.ID
}

// Mention represents a comment or tag that references the connected account
type Mention struct {
	ID          string    `json:"id"`
	Platform    Platform  `json:"platform"`
	Message     string    `json:"message"`
	Time        time.Time `json:"time"`
	Username    string    `json:"username"`
	MediaURL    string    `json:"mediaUrl,omitempty"`
	Permalink   string    `json:"permalink,omitempty"`
	Avatar      string    `json:"avatar,omitempty"`
	Replies     []Reply   `json:"replies"`
	Key         string    `json:"key,omitempty"`
	DisplayTime string    `json:"displayTime,omitempty"`
}

func (m Mention) Ref() Ref { return Ref{Platform: m.Platform, ID: m.ID} }

// Reply is an answer posted under a mention. Sending marks an optimistic
// entry that the backend has not confirmed yet.
type Reply struct {
	ID      string    `json:"id"`
	Text    string    `json:"text"`
	Time    time.Time `json:"time"`
	Author  string    `json:"author"`
	IsMe    bool      `json:"isMe"`
	Sending bool      `json:"sending,omitempty"`
}

// Conversation represents a direct message thread
type Conversation struct {
	ID          string    `json:"id"`
	Platform    Platform  `json:"platform"`
	Username    string    `json:"username"`
	Avatar      string    `json:"avatar"`
	LastMessage string    `json:"lastMessage"`
	Time        time.Time `json:"time"`
	Unread      int       `json:"unread"`
	UserID      string    `json:"userId"`
	Messages    []Message `json:"messages"` // oldest first
	Key         string    `json:"key,omitempty"`
	DisplayTime string    `json:"displayTime,omitempty"`
}

func (c Conversation) Ref() Ref { return Ref{Platform: c.Platform, ID: c.ID} }

// Message is a single direct message
type Message struct {
	ID      string    `json:"id"`
	Text    string    `json:"text"`
	Time    time.Time `json:"time"`
	Sender  string    `json:"sender"`
	IsMe    bool      `json:"isMe"`
	Sending bool      `json:"sending,omitempty"`
}

// Post represents a page post or Instagram media item
type Post struct {
	ID          string    `json:"id"`
	Platform    Platform  `json:"platform"`
	Caption     string    `json:"caption"`
	Content     string    `json:"content"`
	AuthorName  string    `json:"authorName"`
	Timestamp   time.Time `json:"timestamp"`
	MediaURL    string    `json:"mediaUrl,omitempty"`
	Permalink   string    `json:"permalink,omitempty"`
	Sending     bool      `json:"sending,omitempty"`
	Key         string    `json:"key,omitempty"`
	DisplayTime string    `json:"displayTime,omitempty"`
}

func (p Post) Ref() Ref { return Ref{Platform: p.Platform, ID: p.ID} }

// Comment is a comment on one of the account's own posts
type Comment struct {
	ID      string    `json:"id"`
	PostID  string    `json:"postId"`
	Text    string    `json:"text"`
	Time    time.Time `json:"time"`
	Author  string    `json:"author"`
	IsMe    bool      `json:"isMe"`
	Hidden  bool      `json:"hidden"`
	Sending bool      `json:"sending,omitempty"`
	Replies []Comment `json:"replies,omitempty"`
}
