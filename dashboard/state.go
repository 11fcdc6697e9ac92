package dashboard

import (
	"maps"
	"slices"
	"time"

	"social-dashboard/aggregate"
	"social-dashboard/models"
)

// Tab is a top level view of the dashboard
type Tab string

const (
	TabMentions Tab = "mentions"
	TabDMs      Tab = "dms"
	TabPosts    Tab = "posts"
	TabCompose  Tab = "compose"
	TabSettings Tab = "settings"
)

// ParseTab validates a tab name
func ParseTab(s string) (Tab, bool) {
	switch t := Tab(s); t {
	case TabMentions, TabDMs, TabPosts, TabCompose, TabSettings:
		return t, true
	}
	return "", false
}

// keepsSelection reports whether a tab shows the selected mention or DM
func (t Tab) keepsSelection() bool {
	return t == TabMentions || t == TabDMs
}

// Selection is what the user is looking at. Only the id matching the
// active tab is meaningful.
type Selection struct {
	ActiveTab Tab             `json:"activeTab"`
	Platform  models.Platform `json:"selectedPlatform"`
	MessageID string          `json:"selectedMessage,omitempty"`
	DMID      string          `json:"selectedDm,omitempty"`
	PostID    string          `json:"selectedPost,omitempty"`
}

type state struct {
	Selection

	mentions      []models.Mention
	conversations []models.Conversation
	posts         []models.Post

	// comments of the post in commentsFor
	comments    []models.Comment
	commentsFor models.Ref

	drafts      map[string]string
	failures    map[aggregate.Capability]string
	loading     bool
	refreshedAt time.Time
}

func newState() state {
	return state{
		Selection: Selection{
			ActiveTab: TabMentions,
			Platform:  models.PlatformFacebook,
		},
		mentions:      []models.Mention{},
		conversations: []models.Conversation{},
		posts:         []models.Post{},
		comments:      []models.Comment{},
		drafts:        map[string]string{},
		failures:      map[aggregate.Capability]string{},
	}
}

// Snapshot is a consistent copy of the dashboard state. Selected items
// are resolved, nil when the selection no longer exists.
type Snapshot struct {
	Selection
	Version uint64 `json:"version"`

	Mentions      []models.Mention      `json:"mentions"`
	Conversations []models.Conversation `json:"conversations"`
	Posts         []models.Post         `json:"posts"`
	Comments      []models.Comment      `json:"comments"`

	SelectedMessage *models.Mention      `json:"selectedMessageItem"`
	SelectedDM      *models.Conversation `json:"selectedDmItem"`
	SelectedPost    *models.Post         `json:"selectedPostItem"`

	Drafts      map[string]string `json:"drafts"`
	Errors      map[string]string `json:"errors,omitempty"`
	Loading     bool              `json:"loading"`
	RefreshedAt *time.Time        `json:"refreshedAt,omitempty"`
}

func (s *state) snapshot(version uint64) Snapshot {
	snap := Snapshot{
		Selection:     s.Selection,
		Version:       version,
		Mentions:      cloneMentions(s.mentions),
		Conversations: cloneConversations(s.conversations),
		Posts:         slices.Clone(s.posts),
		Comments:      []models.Comment{},
		Drafts:        maps.Clone(s.drafts),
		Loading:       s.loading,
	}
	if s.commentsFor.ID == s.PostID && s.commentsFor.Platform == s.Platform {
		snap.Comments = cloneComments(s.comments)
	}
	if len(s.failures) > 0 {
		snap.Errors = make(map[string]string, len(s.failures))
		for c, msg := range s.failures {
			snap.Errors[string(c)] = msg
		}
	}
	if !s.refreshedAt.IsZero() {
		t := s.refreshedAt
		snap.RefreshedAt = &t
	}

	if s.ActiveTab == TabMentions && s.MessageID != "" {
		if i := s.mentionIndex(s.MessageID); i >= 0 {
			snap.SelectedMessage = &snap.Mentions[i]
		}
	}
	if s.ActiveTab == TabDMs && s.DMID != "" {
		if i := s.conversationIndex(s.DMID); i >= 0 {
			snap.SelectedDM = &snap.Conversations[i]
		}
	}
	if s.ActiveTab == TabPosts && s.PostID != "" {
		if i := s.postIndex(s.PostID); i >= 0 {
			snap.SelectedPost = &snap.Posts[i]
		}
	}
	return snap
}

func (s *state) mentionIndex(id string) int {
	return slices.IndexFunc(s.mentions, func(m models.Mention) bool { return m.ID == id && m.Platform == s.Platform })
}

func (s *state) conversationIndex(id string) int {
	return slices.IndexFunc(s.conversations, func(c models.Conversation) bool { return c.ID == id && c.Platform == s.Platform })
}

func (s *state) postIndex(id string) int {
	return slices.IndexFunc(s.posts, func(p models.Post) bool { return p.ID == id && p.Platform == s.Platform })
}

// pruneSelection drops ids that no longer point at an item
func (s *state) pruneSelection() {
	if s.MessageID != "" && s.mentionIndex(s.MessageID) < 0 {
		s.MessageID = ""
	}
	if s.DMID != "" && s.conversationIndex(s.DMID) < 0 {
		s.DMID = ""
	}
	if s.PostID != "" && s.postIndex(s.PostID) < 0 {
		s.PostID = ""
		s.comments = []models.Comment{}
		s.commentsFor = models.Ref{}
	}
}

func cloneMentions(in []models.Mention) []models.Mention {
	out := make([]models.Mention, len(in))
	for i, m := range in {
		m.Replies = slices.Clone(m.Replies)
		if m.Replies == nil {
			m.Replies = []models.Reply{}
		}
		out[i] = m
	}
	return out
}

func cloneConversations(in []models.Conversation) []models.Conversation {
	out := make([]models.Conversation, len(in))
	for i, c := range in {
		c.Messages = slices.Clone(c.Messages)
		if c.Messages == nil {
			c.Messages = []models.Message{}
		}
		out[i] = c
	}
	return out
}

func cloneComments(in []models.Comment) []models.Comment {
	out := make([]models.Comment, len(in))
	for i, c := range in {
		if c.Replies != nil {
			c.Replies = cloneComments(c.Replies)
		}
		out[i] = c
	}
	return out
}
