package dashboard

import (
	"slices"

	"social-dashboard/actions"
	"social-dashboard/models"
)

var _ actions.Workspace = (*Dashboard)(nil)

func (d *Dashboard) Mention(ref models.Ref) (models.Mention, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.state.mentions {
		if m.Ref() == ref {
			m.Replies = slices.Clone(m.Replies)
			return m, true
		}
	}
	return models.Mention{}, false
}

func (d *Dashboard) Conversation(ref models.Ref) (models.Conversation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.state.conversations {
		if c.Ref() == ref {
			c.Messages = slices.Clone(c.Messages)
			return c, true
		}
	}
	return models.Conversation{}, false
}

func (d *Dashboard) Post(ref models.Ref) (models.Post, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.state.posts {
		if p.Ref() == ref {
			return p, true
		}
	}
	return models.Post{}, false
}

// Update functions hand fn a deep copy and store what it returns, so
// snapshots taken earlier are never modified.

func (d *Dashboard) UpdateMentions(fn func([]models.Mention) []models.Mention) {
	d.mutate(func(s *state) {
		s.mentions = fn(cloneMentions(s.mentions))
		s.pruneSelection()
	})
}

func (d *Dashboard) UpdateConversations(fn func([]models.Conversation) []models.Conversation) {
	d.mutate(func(s *state) {
		s.conversations = fn(cloneConversations(s.conversations))
		s.pruneSelection()
	})
}

func (d *Dashboard) UpdatePosts(fn func([]models.Post) []models.Post) {
	d.mutate(func(s *state) {
		s.posts = fn(slices.Clone(s.posts))
		s.pruneSelection()
	})
}

func (d *Dashboard) UpdateComments(post models.Ref, fn func([]models.Comment) []models.Comment) {
	d.mutate(func(s *state) {
		if s.commentsFor != post {
			return
		}
		s.comments = fn(cloneComments(s.comments))
	})
}
