package actions

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"social-dashboard/models"
	"social-dashboard/platforms"
	"social-dashboard/validation"
)

// ErrInFlight is returned when the same target already has an optimistic
// entity waiting for the backend
var ErrInFlight = errors.New("a previous action on this item is still in progress")

// ErrNotFound means the target is not in the current collections
var ErrNotFound = errors.New("item not found")

// Workspace is the state the handler mutates. Update functions receive a
// private copy of the collection and return its replacement.
type Workspace interface {
	Mention(ref models.Ref) (models.Mention, bool)
	Conversation(ref models.Ref) (models.Conversation, bool)
	Post(ref models.Ref) (models.Post, bool)

	UpdateMentions(fn func([]models.Mention) []models.Mention)
	UpdateConversations(fn func([]models.Conversation) []models.Conversation)
	UpdatePosts(fn func([]models.Post) []models.Post)
	// UpdateComments is a no-op when the comments of post are not loaded
	UpdateComments(post models.Ref, fn func([]models.Comment) []models.Comment)

	SetDraft(key, text string)
}

// CredentialSource looks up the stored credential of a platform
type CredentialSource interface {
	Get(ctx context.Context, platform models.Platform) (*models.Credential, error)
}

// Notifier shows outcomes to the user
type Notifier interface {
	Notify(o Outcome)
}

// PostInput is a post being created from the dashboard
type PostInput struct {
	Content   string
	PhotoURLs []string
	Images    []validation.FileUpload
	Video     *validation.FileUpload
}

// MaxVideoSize limits video uploads
const MaxVideoSize int64 = 100 << 20

// Draft keys for the compose boxes
func MentionDraftKey(ref models.Ref) string      { return "reply:" + ref.String() }
func ConversationDraftKey(ref models.Ref) string { return "dm:" + ref.String() }
func PostDraftKey(platform models.Platform) string {
	return "post:" + string(platform)
}
func CommentDraftKey(post models.Ref, commentID string) string {
	return "comment:" + post.String() + ":" + commentID
}

// Handler runs the actions of one dashboard session
type Handler struct {
	ws       Workspace
	creds    CredentialSource
	adapters platforms.Set
	notifier Notifier
	now      func() time.Time

	seq      atomic.Uint64
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewHandler creates an action handler. notifier may be nil.
func NewHandler(ws Workspace, creds CredentialSource, adapters platforms.Set, notifier Notifier) *Handler {
	return &Handler{
		ws:       ws,
		creds:    creds,
		adapters: adapters,
		notifier: notifier,
		now:      time.Now,
		inflight: map[string]struct{}{},
	}
}

// SetClock replaces time.Now for optimistic timestamps
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

// tempID returns a unique local id. The counter keeps ids ordered, the
// uuid keeps them unique across sessions.
func (h *Handler) tempID() string {
	return fmt.Sprintf("tmp_%d_%s", h.seq.Add(1), uuid.NewString())
}

// settle confirms the entry tempID as id. When id is already in the list,
// because a refetch brought it in first, the temp entry is dropped.
func settle[T any](list []T, tempID, id string, idOf func(T) string, confirm func(*T)) []T {
	i := slices.IndexFunc(list, func(v T) bool { return idOf(v) == tempID })
	if i < 0 {
		return list
	}
	if id != "" && slices.ContainsFunc(list, func(v T) bool { return idOf(v) == id }) {
		return slices.Delete(list, i, i+1)
	}
	confirm(&list[i])
	return list
}

// IsTempID reports whether id was created locally
func IsTempID(id string) bool {
	return strings.HasPrefix(id, "tmp_")
}

func (h *Handler) acquire(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, busy := h.inflight[key]; busy {
		return false
	}
	h.inflight[key] = struct{}{}
	return true
}

func (h *Handler) release(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.inflight, key)
}

func (h *Handler) notify(o Outcome) Outcome {
	if h.notifier != nil && o.Message != "" {
		h.notifier.Notify(o)
	}
	return o
}

// prepare checks credentials and resolves the adapter. No network call is
// made when it fails.
func (h *Handler) prepare(ctx context.Context, platform models.Platform) (platforms.Adapter, *models.Credential, *Outcome) {
	cred, err := h.creds.Get(ctx, platform)
	if err != nil {
		o := failed(err, "Could not read stored credentials")
		return nil, nil, &o
	}

	var token, account string
	if cred != nil {
		token, account = cred.Token(), cred.AccountID
	}
	if r := validation.ValidateCredentials(validation.CredentialInput{
		AccessToken: token,
		UserID:      &account,
		Platform:    platform,
	}); !r.IsValid {
		o := invalid(r.Message)
		return nil, nil, &o
	}

	adapter, err := h.adapters.Get(platform)
	if err != nil {
		o := failed(err, platform.Label()+" is not available")
		return nil, nil, &o
	}
	return adapter, cred, nil
}

// ReplyToMention appends an optimistic reply to the mention and sends it
func (h *Handler) ReplyToMention(ctx context.Context, ref models.Ref, text string) Outcome {
	adapter, cred, bad := h.prepare(ctx, ref.Platform)
	if bad != nil {
		return h.notify(*bad)
	}
	if r := validation.ValidatePostContent(text, validation.ReplyOptions()); !r.IsValid {
		return h.notify(invalid(r.Message))
	}
	if _, ok := h.ws.Mention(ref); !ok {
		return h.notify(failed(ErrNotFound, "Mention not found"))
	}

	lock := "mention:" + ref.String()
	if !h.acquire(lock) {
		return h.notify(failed(ErrInFlight, ErrInFlight.Error()))
	}
	defer h.release(lock)

	tempID := h.tempID()
	draftKey := MentionDraftKey(ref)
	replace := func(fn func([]models.Reply) []models.Reply) {
		h.ws.UpdateMentions(func(list []models.Mention) []models.Mention {
			for i := range list {
				if list[i].Ref() == ref {
					list[i].Replies = fn(list[i].Replies)
				}
			}
			return list
		})
	}

	var confirmed string
	o := Run(ctx, Optimistic[platforms.Ack]{
		Name: "reply_to_mention",
		Apply: func() {
			replace(func(replies []models.Reply) []models.Reply {
				return append(replies, models.Reply{
					ID:      tempID,
					Text:    text,
					Time:    h.now().UTC(),
					Author:  "You",
					IsMe:    true,
					Sending: true,
				})
			})
			h.ws.SetDraft(draftKey, "")
		},
		Remote: func(ctx context.Context) (platforms.Ack, error) {
			return adapter.ReplyToMention(ctx, ref.ID, text, cred.Token())
		},
		Reconcile: func(ack platforms.Ack) {
			confirmed = ack.ID
			replace(func(replies []models.Reply) []models.Reply {
				return settle(replies, tempID, ack.ID, func(r models.Reply) string { return r.ID }, func(r *models.Reply) {
					if ack.ID != "" {
						r.ID = ack.ID
					}
					r.Sending = false
				})
			})
		},
		Rollback: func() {
			replace(func(replies []models.Reply) []models.Reply {
				return slices.DeleteFunc(replies, func(r models.Reply) bool { return r.ID == tempID })
			})
			h.ws.SetDraft(draftKey, text)
		},
		SuccessMessage: "Reply sent",
		FailureMessage: "Failed to send reply",
	})
	o.ID = confirmed
	return h.notify(o)
}

// SendMessage appends an optimistic message to the conversation and
// sends it to the other participant. The conversation keeps its position.
func (h *Handler) SendMessage(ctx context.Context, ref models.Ref, text string) Outcome {
	adapter, cred, bad := h.prepare(ctx, ref.Platform)
	if bad != nil {
		return h.notify(*bad)
	}
	if r := validation.ValidatePostContent(text, validation.ReplyOptions()); !r.IsValid {
		return h.notify(invalid(r.Message))
	}
	conv, ok := h.ws.Conversation(ref)
	if !ok {
		return h.notify(failed(ErrNotFound, "Conversation not found"))
	}
	if conv.UserID == "" {
		return h.notify(invalid("This conversation has no recipient to reply to"))
	}

	lock := "dm:" + ref.String()
	if !h.acquire(lock) {
		return h.notify(failed(ErrInFlight, ErrInFlight.Error()))
	}
	defer h.release(lock)

	tempID := h.tempID()
	draftKey := ConversationDraftKey(ref)
	update := func(fn func(*models.Conversation)) {
		h.ws.UpdateConversations(func(list []models.Conversation) []models.Conversation {
			for i := range list {
				if list[i].Ref() == ref {
					fn(&list[i])
				}
			}
			return list
		})
	}
	previous := conv.LastMessage

	var confirmed string
	o := Run(ctx, Optimistic[platforms.Ack]{
		Name: "send_message",
		Apply: func() {
			update(func(c *models.Conversation) {
				c.Messages = append(c.Messages, models.Message{
					ID:      tempID,
					Text:    text,
					Time:    h.now().UTC(),
					Sender:  "You",
					IsMe:    true,
					Sending: true,
				})
				c.LastMessage = text
			})
			h.ws.SetDraft(draftKey, "")
		},
		Remote: func(ctx context.Context) (platforms.Ack, error) {
			return adapter.SendMessage(ctx, cred.AccountID, conv.UserID, text, cred.Token())
		},
		Reconcile: func(ack platforms.Ack) {
			confirmed = ack.ID
			update(func(c *models.Conversation) {
				c.Messages = settle(c.Messages, tempID, ack.ID, func(m models.Message) string { return m.ID }, func(m *models.Message) {
					if ack.ID != "" {
						m.ID = ack.ID
					}
					m.Sending = false
				})
			})
		},
		Rollback: func() {
			update(func(c *models.Conversation) {
				c.Messages = slices.DeleteFunc(c.Messages, func(m models.Message) bool { return m.ID == tempID })
				c.LastMessage = previous
			})
			h.ws.SetDraft(draftKey, text)
		},
		SuccessMessage: "Message sent",
		FailureMessage: "Failed to send message",
	})
	o.ID = confirmed
	return h.notify(o)
}

func (h *Handler) validatePost(platform models.Platform, in PostInput) validation.Result {
	opts := validation.DefaultPostOptions()
	if platform == models.PlatformInstagram {
		opts = validation.CaptionOptions()
	}

	results := []validation.Result{validation.ValidatePostContent(in.Content, opts)}
	if platform == models.PlatformInstagram {
		switch {
		case in.Video != nil:
			results = append(results, validation.Result{Message: "Instagram posts support images only"})
		case len(in.PhotoURLs)+len(in.Images) > 1:
			results = append(results, validation.Result{Message: "Instagram posts support a single image"})
		}
	}
	for _, u := range in.PhotoURLs {
		results = append(results, validation.ValidateImageURL(u))
	}
	for _, img := range in.Images {
		results = append(results, validation.ValidateFileUpload(img, validation.FileOptions{AllowedTypes: validation.ImageTypes}))
	}
	if in.Video != nil {
		results = append(results, validation.ValidateFileUpload(*in.Video, validation.FileOptions{
			AllowedTypes: validation.VideoTypes,
			MaxSize:      MaxVideoSize,
		}))
	}
	return validation.First(results...)
}

func uploads(files []validation.FileUpload) []platforms.Upload {
	out := make([]platforms.Upload, 0, len(files))
	for _, f := range files {
		out = append(out, platforms.Upload{Name: f.Name, ContentType: f.ContentType, Data: f.Data})
	}
	return out
}

// CreatePost shows the new post at the top of the list while it is
// being published
func (h *Handler) CreatePost(ctx context.Context, platform models.Platform, in PostInput) Outcome {
	adapter, cred, bad := h.prepare(ctx, platform)
	if bad != nil {
		return h.notify(*bad)
	}
	if r := h.validatePost(platform, in); !r.IsValid {
		return h.notify(invalid(r.Message))
	}

	draft := platforms.PostDraft{Content: in.Content, PhotoURLs: in.PhotoURLs, Images: uploads(in.Images)}
	if in.Video != nil {
		video := uploads([]validation.FileUpload{*in.Video})[0]
		draft.Video = &video
	}
	if platform == models.PlatformInstagram && len(draft.PhotoURLs) == 0 && len(draft.Images) == 0 {
		return h.notify(invalid(platforms.ErrMediaRequired.Error()))
	}

	lock := "post:create:" + string(platform)
	if !h.acquire(lock) {
		return h.notify(failed(ErrInFlight, ErrInFlight.Error()))
	}
	defer h.release(lock)

	tempID := h.tempID()
	draftKey := PostDraftKey(platform)
	local := models.Post{
		ID:         tempID,
		Platform:   platform,
		Content:    in.Content,
		AuthorName: "You",
		Timestamp:  h.now().UTC(),
		Sending:    true,
		Key:        string(platform) + "-post-" + tempID,
	}
	if platform == models.PlatformInstagram {
		local.Caption = in.Content
	}
	if len(in.PhotoURLs) > 0 {
		local.MediaURL = in.PhotoURLs[0]
	}

	var confirmed string
	o := Run(ctx, Optimistic[platforms.Ack]{
		Name: "create_post",
		Apply: func() {
			h.ws.UpdatePosts(func(list []models.Post) []models.Post {
				return append([]models.Post{local}, list...)
			})
			h.ws.SetDraft(draftKey, "")
		},
		Remote: func(ctx context.Context) (platforms.Ack, error) {
			return adapter.CreatePost(ctx, cred.AccountID, draft, cred.Token())
		},
		Reconcile: func(ack platforms.Ack) {
			confirmed = ack.ID
			h.ws.UpdatePosts(func(list []models.Post) []models.Post {
				return settle(list, tempID, ack.ID, func(p models.Post) string { return p.ID }, func(p *models.Post) {
					if ack.ID != "" {
						p.ID = ack.ID
						p.Key = string(platform) + "-post-" + ack.ID
					}
					if ack.Permalink != "" {
						p.Permalink = ack.Permalink
					}
					p.Sending = false
				})
			})
		},
		Rollback: func() {
			h.ws.UpdatePosts(func(list []models.Post) []models.Post {
				return slices.DeleteFunc(list, func(p models.Post) bool { return p.ID == tempID })
			})
			h.ws.SetDraft(draftKey, in.Content)
		},
		SuccessMessage: "Post published",
		FailureMessage: "Failed to publish post",
	})
	o.ID = confirmed
	return h.notify(o)
}

// UpdatePost changes the text of a post, restoring the old text if the
// backend refuses
func (h *Handler) UpdatePost(ctx context.Context, ref models.Ref, content string) Outcome {
	adapter, cred, bad := h.prepare(ctx, ref.Platform)
	if bad != nil {
		return h.notify(*bad)
	}
	if r := validation.ValidatePostContent(content, validation.DefaultPostOptions()); !r.IsValid {
		return h.notify(invalid(r.Message))
	}
	before, ok := h.ws.Post(ref)
	if !ok {
		return h.notify(failed(ErrNotFound, "Post not found"))
	}

	lock := "post:" + ref.String()
	if !h.acquire(lock) {
		return h.notify(failed(ErrInFlight, ErrInFlight.Error()))
	}
	defer h.release(lock)

	set := func(fn func(*models.Post)) {
		h.ws.UpdatePosts(func(list []models.Post) []models.Post {
			for i := range list {
				if list[i].Ref() == ref {
					fn(&list[i])
				}
			}
			return list
		})
	}

	return h.notify(Run(ctx, Optimistic[platforms.Ack]{
		Name: "update_post",
		Apply: func() {
			set(func(p *models.Post) {
				p.Content = content
				p.Sending = true
			})
		},
		Remote: func(ctx context.Context) (platforms.Ack, error) {
			return adapter.UpdatePost(ctx, ref.ID, content, cred.Token())
		},
		Reconcile: func(platforms.Ack) {
			set(func(p *models.Post) { p.Sending = false })
		},
		Rollback: func() {
			set(func(p *models.Post) {
				p.Content = before.Content
				p.Sending = false
			})
		},
		SuccessMessage: "Post updated",
		FailureMessage: "Failed to update post",
	}))
}

// DeletePost removes the post immediately and puts it back at the same
// position if the delete fails
func (h *Handler) DeletePost(ctx context.Context, ref models.Ref) Outcome {
	adapter, cred, bad := h.prepare(ctx, ref.Platform)
	if bad != nil {
		return h.notify(*bad)
	}
	if _, ok := h.ws.Post(ref); !ok {
		return h.notify(failed(ErrNotFound, "Post not found"))
	}

	lock := "post:" + ref.String()
	if !h.acquire(lock) {
		return h.notify(failed(ErrInFlight, ErrInFlight.Error()))
	}
	defer h.release(lock)

	var (
		removed models.Post
		index   = -1
	)
	return h.notify(Run(ctx, Optimistic[platforms.Ack]{
		Name: "delete_post",
		Apply: func() {
			h.ws.UpdatePosts(func(list []models.Post) []models.Post {
				index = slices.IndexFunc(list, func(p models.Post) bool { return p.Ref() == ref })
				if index < 0 {
					return list
				}
				removed = list[index]
				return slices.Delete(list, index, index+1)
			})
		},
		Remote: func(ctx context.Context) (platforms.Ack, error) {
			return adapter.DeletePost(ctx, ref.ID, cred.Token())
		},
		Rollback: func() {
			if index < 0 {
				return
			}
			h.ws.UpdatePosts(func(list []models.Post) []models.Post {
				return slices.Insert(list, min(index, len(list)), removed)
			})
		},
		AllowAmbiguous:   true,
		SuccessMessage:   "Post deleted",
		FailureMessage:   "Failed to delete post",
		AmbiguousMessage: "The post was probably deleted, but the platform's answer could not be read. Refresh to confirm.",
	}))
}

// ReplyToComment appends an optimistic reply under a comment of post
func (h *Handler) ReplyToComment(ctx context.Context, post models.Ref, commentID, text string) Outcome {
	adapter, cred, bad := h.prepare(ctx, post.Platform)
	if bad != nil {
		return h.notify(*bad)
	}
	if r := validation.ValidatePostContent(text, validation.ReplyOptions()); !r.IsValid {
		return h.notify(invalid(r.Message))
	}

	lock := "comment:" + post.String() + ":" + commentID
	if !h.acquire(lock) {
		return h.notify(failed(ErrInFlight, ErrInFlight.Error()))
	}
	defer h.release(lock)

	tempID := h.tempID()
	draftKey := CommentDraftKey(post, commentID)
	update := func(fn func(*models.Comment)) {
		h.ws.UpdateComments(post, func(list []models.Comment) []models.Comment {
			for i := range list {
				if list[i].ID == commentID {
					fn(&list[i])
				}
			}
			return list
		})
	}

	var confirmed string
	o := Run(ctx, Optimistic[platforms.Ack]{
		Name: "reply_to_comment",
		Apply: func() {
			update(func(c *models.Comment) {
				c.Replies = append(c.Replies, models.Comment{
					ID:      tempID,
					PostID:  post.ID,
					Text:    text,
					Time:    h.now().UTC(),
					Author:  "You",
					IsMe:    true,
					Sending: true,
				})
			})
			h.ws.SetDraft(draftKey, "")
		},
		Remote: func(ctx context.Context) (platforms.Ack, error) {
			return adapter.ReplyToComment(ctx, commentID, text, cred.Token())
		},
		Reconcile: func(ack platforms.Ack) {
			confirmed = ack.ID
			update(func(c *models.Comment) {
				c.Replies = settle(c.Replies, tempID, ack.ID, func(r models.Comment) string { return r.ID }, func(r *models.Comment) {
					if ack.ID != "" {
						r.ID = ack.ID
					}
					r.Sending = false
				})
			})
		},
		Rollback: func() {
			update(func(c *models.Comment) {
				c.Replies = slices.DeleteFunc(c.Replies, func(r models.Comment) bool { return r.ID == tempID })
			})
			h.ws.SetDraft(draftKey, text)
		},
		SuccessMessage: "Reply sent",
		FailureMessage: "Failed to send reply",
	})
	o.ID = confirmed
	return h.notify(o)
}

// HideComment hides or unhides a comment
func (h *Handler) HideComment(ctx context.Context, post models.Ref, commentID string, hide bool) Outcome {
	adapter, cred, bad := h.prepare(ctx, post.Platform)
	if bad != nil {
		return h.notify(*bad)
	}

	lock := "comment:" + post.String() + ":" + commentID
	if !h.acquire(lock) {
		return h.notify(failed(ErrInFlight, ErrInFlight.Error()))
	}
	defer h.release(lock)

	set := func(hidden bool) {
		h.ws.UpdateComments(post, func(list []models.Comment) []models.Comment {
			return mapComments(list, commentID, func(c *models.Comment) { c.Hidden = hidden })
		})
	}

	success := "Comment unhidden"
	if hide {
		success = "Comment hidden"
	}
	return h.notify(Run(ctx, Optimistic[platforms.Ack]{
		Name:  "hide_comment",
		Apply: func() { set(hide) },
		Remote: func(ctx context.Context) (platforms.Ack, error) {
			return adapter.HideComment(ctx, commentID, hide, cred.Token())
		},
		Rollback:       func() { set(!hide) },
		SuccessMessage: success,
		FailureMessage: "Failed to update comment visibility",
	}))
}

// DeleteComment removes a comment or a reply to a comment
func (h *Handler) DeleteComment(ctx context.Context, post models.Ref, commentID string) Outcome {
	adapter, cred, bad := h.prepare(ctx, post.Platform)
	if bad != nil {
		return h.notify(*bad)
	}

	lock := "comment:" + post.String() + ":" + commentID
	if !h.acquire(lock) {
		return h.notify(failed(ErrInFlight, ErrInFlight.Error()))
	}
	defer h.release(lock)

	var removed *removedComment
	return h.notify(Run(ctx, Optimistic[platforms.Ack]{
		Name: "delete_comment",
		Apply: func() {
			h.ws.UpdateComments(post, func(list []models.Comment) []models.Comment {
				var out []models.Comment
				out, removed = removeComment(list, commentID)
				return out
			})
		},
		Remote: func(ctx context.Context) (platforms.Ack, error) {
			return adapter.DeleteComment(ctx, commentID, cred.Token())
		},
		Rollback: func() {
			if removed == nil {
				return
			}
			h.ws.UpdateComments(post, func(list []models.Comment) []models.Comment {
				return restoreComment(list, *removed)
			})
		},
		AllowAmbiguous:   true,
		SuccessMessage:   "Comment deleted",
		FailureMessage:   "Failed to delete comment",
		AmbiguousMessage: "The comment was probably deleted, but the platform's answer could not be read. Refresh to confirm.",
	}))
}

func mapComments(list []models.Comment, id string, fn func(*models.Comment)) []models.Comment {
	for i := range list {
		if list[i].ID == id {
			fn(&list[i])
		}
		if len(list[i].Replies) > 0 {
			list[i].Replies = mapComments(list[i].Replies, id, fn)
		}
	}
	return list
}

type removedComment struct {
	comment  models.Comment
	parentID string
	index    int
}

func removeComment(list []models.Comment, id string) ([]models.Comment, *removedComment) {
	if i := slices.IndexFunc(list, func(c models.Comment) bool { return c.ID == id }); i >= 0 {
		removed := &removedComment{comment: list[i], index: i}
		return slices.Delete(list, i, i+1), removed
	}
	for i := range list {
		replies, removed := removeComment(list[i].Replies, id)
		if removed != nil {
			list[i].Replies = replies
			if removed.parentID == "" {
				removed.parentID = list[i].ID
			}
			return list, removed
		}
	}
	return list, nil
}

func restoreComment(list []models.Comment, r removedComment) []models.Comment {
	if r.parentID == "" {
		return slices.Insert(list, min(r.index, len(list)), r.comment)
	}
	return mapComments(list, r.parentID, func(c *models.Comment) {
		c.Replies = slices.Insert(c.Replies, min(r.index, len(c.Replies)), r.comment)
	})
}
