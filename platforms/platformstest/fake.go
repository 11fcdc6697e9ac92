// Package platformstest provides an in-memory platforms.Adapter for tests.
package platformstest

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"social-dashboard/models"
	"social-dashboard/platforms"
)

// Call records one adapter invocation
type Call struct {
	Method string
	Args   []string
}

// Fake is a scriptable adapter. Errors and Acks are keyed by method name.
// BeforeCall runs before every method returns and may block, which lets
// tests control the order in which responses arrive.
type Fake struct {
	Name          models.Platform
	Mentions      []models.Mention
	Posts         []models.Post
	Conversations []models.Conversation
	Messages      map[string][]models.Message
	Comments      map[string][]models.Comment
	Errors        map[string]error
	Acks          map[string]platforms.Ack
	BeforeCall    func(ctx context.Context, method string, args []string)

	mu    sync.Mutex
	calls []Call
}

var _ platforms.Adapter = (*Fake)(nil)

// New returns an empty fake for platform
func New(platform models.Platform) *Fake {
	return &Fake{
		Name:     platform,
		Messages: map[string][]models.Message{},
		Comments: map[string][]models.Comment{},
		Errors:   map[string]error{},
		Acks:     map[string]platforms.Ack{},
	}
}

// Calls returns a copy of the recorded calls
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallCount counts calls to method, or all calls when method is empty
func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if method == "" || c.Method == method {
			n++
		}
	}
	return n
}

// SetError scripts the error returned by method
func (f *Fake) SetError(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[method] = err
}

func (f *Fake) enter(ctx context.Context, method string, args ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, Args: args})
	hook := f.BeforeCall
	f.mu.Unlock()

	if hook != nil {
		hook(ctx, method, args)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Errors[method]
}

func (f *Fake) ack(method string) platforms.Ack {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Acks[method]
}

func (f *Fake) Platform() models.Platform { return f.Name }

func (f *Fake) FetchMentions(ctx context.Context, accountID, token string) ([]models.Mention, error) {
	if err := f.enter(ctx, "FetchMentions", accountID, token); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Mention, 0, len(f.Mentions))
	for _, m := range f.Mentions {
		m.Replies = slices.Clone(m.Replies)
		if m.Replies == nil {
			m.Replies = []models.Reply{}
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *Fake) FetchPosts(ctx context.Context, accountID, token string) ([]models.Post, error) {
	if err := f.enter(ctx, "FetchPosts", accountID, token); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Clone(f.Posts)
	if out == nil {
		out = []models.Post{}
	}
	return out, nil
}

func (f *Fake) FetchConversations(ctx context.Context, accountID, token string) ([]models.Conversation, error) {
	if err := f.enter(ctx, "FetchConversations", accountID, token); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Conversation, 0, len(f.Conversations))
	for _, c := range f.Conversations {
		c.Messages = slices.Clone(c.Messages)
		if c.Messages == nil {
			c.Messages = []models.Message{}
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *Fake) FetchConversation(ctx context.Context, accountID, conversationID, token string) ([]models.Message, error) {
	if err := f.enter(ctx, "FetchConversation", accountID, conversationID, token); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Clone(f.Messages[conversationID])
	if out == nil {
		out = []models.Message{}
	}
	return out, nil
}

func (f *Fake) FetchComments(ctx context.Context, targetID, token string) ([]models.Comment, error) {
	if err := f.enter(ctx, "FetchComments", targetID, token); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Clone(f.Comments[targetID])
	if out == nil {
		out = []models.Comment{}
	}
	return out, nil
}

func (f *Fake) ReplyToMention(ctx context.Context, targetID, text, token string) (platforms.Ack, error) {
	if err := f.enter(ctx, "ReplyToMention", targetID, text, token); err != nil {
		return platforms.Ack{}, err
	}
	return f.ack("ReplyToMention"), nil
}

func (f *Fake) SendMessage(ctx context.Context, accountID, recipientID, text, token string) (platforms.Ack, error) {
	if err := f.enter(ctx, "SendMessage", accountID, recipientID, text, token); err != nil {
		return platforms.Ack{}, err
	}
	return f.ack("SendMessage"), nil
}

func (f *Fake) CreatePost(ctx context.Context, accountID string, draft platforms.PostDraft, token string) (platforms.Ack, error) {
	if err := f.enter(ctx, "CreatePost", accountID, draft.Content, strconv.Itoa(len(draft.PhotoURLs)), token); err != nil {
		return platforms.Ack{}, err
	}
	return f.ack("CreatePost"), nil
}

func (f *Fake) UpdatePost(ctx context.Context, postID, content, token string) (platforms.Ack, error) {
	if err := f.enter(ctx, "UpdatePost", postID, content, token); err != nil {
		return platforms.Ack{}, err
	}
	return f.ack("UpdatePost"), nil
}

func (f *Fake) DeletePost(ctx context.Context, postID, token string) (platforms.Ack, error) {
	if err := f.enter(ctx, "DeletePost", postID, token); err != nil {
		return platforms.Ack{}, err
	}
	return f.ack("DeletePost"), nil
}

func (f *Fake) ReplyToComment(ctx context.Context, commentID, text, token string) (platforms.Ack, error) {
	if err := f.enter(ctx, "ReplyToComment", commentID, text, token); err != nil {
		return platforms.Ack{}, err
	}
	return f.ack("ReplyToComment"), nil
}

func (f *Fake) HideComment(ctx context.Context, commentID string, hide bool, token string) (platforms.Ack, error) {
	if err := f.enter(ctx, "HideComment", commentID, strconv.FormatBool(hide), token); err != nil {
		return platforms.Ack{}, err
	}
	return f.ack("HideComment"), nil
}

func (f *Fake) DeleteComment(ctx context.Context, commentID, token string) (platforms.Ack, error) {
	if err := f.enter(ctx, "DeleteComment", commentID, token); err != nil {
		return platforms.Ack{}, err
	}
	return f.ack("DeleteComment"), nil
}
