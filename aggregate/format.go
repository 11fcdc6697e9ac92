// Package aggregate fetches a platform's mentions, posts and conversations
// together and prepares them for display.
package aggregate

import (
	"fmt"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"social-dashboard/models"
)

// Item kinds used in render keys
const (
	KindMention = "mention"
	KindPost    = "post"
	KindDM      = "dm"
)

// Formatter tags items with their platform, a display time and a render
// key. It never modifies its input.
type Formatter struct {
	Now func() time.Time
}

func (f Formatter) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

// Key builds the render key platform-kind-id. Items without an id fall
// back to their position, which is not stable across refetches.
func Key(platform models.Platform, kind, id string, index int) string {
	if id == "" {
		id = fmt.Sprintf("%d", index)
	}
	return fmt.Sprintf("%s-%s-%s", platform, kind, id)
}

// DisplayTime renders t relative to now, e.g. "3 minutes ago"
func DisplayTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func (f Formatter) FormatMentions(items []models.Mention, platform models.Platform) []models.Mention {
	now := f.now()
	out := make([]models.Mention, len(items))
	for i, m := range items {
		m.Platform = platform
		m.Key = Key(platform, KindMention, m.ID, i)
		m.DisplayTime = DisplayTime(m.Time, now)
		m.Replies = slices.Clone(m.Replies)
		if m.Replies == nil {
			m.Replies = []models.Reply{}
		}
		out[i] = m
	}
	return out
}

func (f Formatter) FormatPosts(items []models.Post, platform models.Platform) []models.Post {
	now := f.now()
	out := make([]models.Post, len(items))
	for i, p := range items {
		p.Platform = platform
		p.Key = Key(platform, KindPost, p.ID, i)
		p.DisplayTime = DisplayTime(p.Timestamp, now)
		out[i] = p
	}
	return out
}

func (f Formatter) FormatConversations(items []models.Conversation, platform models.Platform) []models.Conversation {
	now := f.now()
	out := make([]models.Conversation, len(items))
	for i, c := range items {
		c.Platform = platform
		c.Key = Key(platform, KindDM, c.ID, i)
		c.DisplayTime = DisplayTime(c.Time, now)
		c.Messages = slices.Clone(c.Messages)
		if c.Messages == nil {
			c.Messages = []models.Message{}
		}
		out[i] = c
	}
	return out
}
