package actions

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-dashboard/models"
	"social-dashboard/platforms"
	"social-dashboard/platforms/platformstest"
	"social-dashboard/store"
	"social-dashboard/validation"
)

// memWorkspace is a minimal Workspace for exercising the handler
type memWorkspace struct {
	mu            sync.Mutex
	mentions      []models.Mention
	conversations []models.Conversation
	posts         []models.Post
	comments      map[models.Ref][]models.Comment
	drafts        map[string]string
}

func newWorkspace() *memWorkspace {
	return &memWorkspace{comments: map[models.Ref][]models.Comment{}, drafts: map[string]string{}}
}

func (w *memWorkspace) Mention(ref models.Ref) (models.Mention, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range w.mentions {
		if m.Ref() == ref {
			return m, true
		}
	}
	return models.Mention{}, false
}

func (w *memWorkspace) Conversation(ref models.Ref) (models.Conversation, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range w.conversations {
		if c.Ref() == ref {
			return c, true
		}
	}
	return models.Conversation{}, false
}

func (w *memWorkspace) Post(ref models.Ref) (models.Post, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.posts {
		if p.Ref() == ref {
			return p, true
		}
	}
	return models.Post{}, false
}

func (w *memWorkspace) UpdateMentions(fn func([]models.Mention) []models.Mention) {
	w.mu.Lock()
	defer w.mu.Unlock()
	list := make([]models.Mention, len(w.mentions))
	for i, m := range w.mentions {
		m.Replies = slices.Clone(m.Replies)
		list[i] = m
	}
	w.mentions = fn(list)
}

func (w *memWorkspace) UpdateConversations(fn func([]models.Conversation) []models.Conversation) {
	w.mu.Lock()
	defer w.mu.Unlock()
	list := make([]models.Conversation, len(w.conversations))
	for i, c := range w.conversations {
		c.Messages = slices.Clone(c.Messages)
		list[i] = c
	}
	w.conversations = fn(list)
}

func (w *memWorkspace) UpdatePosts(fn func([]models.Post) []models.Post) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.posts = fn(slices.Clone(w.posts))
}

func (w *memWorkspace) UpdateComments(post models.Ref, fn func([]models.Comment) []models.Comment) {
	w.mu.Lock()
	defer w.mu.Unlock()
	list, ok := w.comments[post]
	if !ok {
		return
	}
	w.comments[post] = fn(cloneCommentTree(list))
}

func cloneCommentTree(in []models.Comment) []models.Comment {
	out := make([]models.Comment, len(in))
	for i, c := range in {
		if c.Replies != nil {
			c.Replies = cloneCommentTree(c.Replies)
		}
		out[i] = c
	}
	return out
}

func (w *memWorkspace) SetDraft(key, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.drafts[key] = text
}

func (w *memWorkspace) replies(ref models.Ref) []models.Reply {
	m, _ := w.Mention(ref)
	return m.Replies
}

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (n *recordingNotifier) Notify(o Outcome) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, o)
}

var (
	fbMention = models.Ref{Platform: models.PlatformFacebook, ID: "m1"}
	fbPost    = models.Ref{Platform: models.PlatformFacebook, ID: "p1"}
)

type fixture struct {
	ws       *memWorkspace
	fake     *platformstest.Fake
	creds    *store.Credentials
	notifier *recordingNotifier
	handler  *Handler
}

func newFixture(t *testing.T, connected bool) *fixture {
	t.Helper()
	f := &fixture{
		ws:       newWorkspace(),
		fake:     platformstest.New(models.PlatformFacebook),
		creds:    store.NewCredentials(store.NewMemoryKV(), "s1"),
		notifier: &recordingNotifier{},
	}
	if connected {
		require.NoError(t, f.creds.SaveCredential(context.Background(), models.Credential{
			Platform:    models.PlatformFacebook,
			AccessToken: "tok",
			AccountID:   "page-1",
		}))
	}
	f.handler = NewHandler(f.ws, f.creds, platforms.Set{models.PlatformFacebook: f.fake}, f.notifier)
	f.handler.SetClock(func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) })
	return f
}

func TestRun(t *testing.T) {
	boom := &platforms.APIError{StatusCode: 500, Body: ""}

	tests := []struct {
		name           string
		err            error
		allowAmbiguous bool
		wantStatus     Status
		wantRollback   bool
		wantReconcile  bool
	}{
		{name: "success", wantStatus: StatusSuccess, wantReconcile: true},
		{name: "failure", err: errors.New("down"), wantStatus: StatusFailed, wantRollback: true},
		{name: "ambiguous allowed", err: boom, allowAmbiguous: true, wantStatus: StatusWarning, wantReconcile: true},
		{name: "ambiguous not allowed", err: boom, wantStatus: StatusFailed, wantRollback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var steps []string
			o := Run(context.Background(), Optimistic[string]{
				Name:  tt.name,
				Apply: func() { steps = append(steps, "apply") },
				Remote: func(context.Context) (string, error) {
					steps = append(steps, "remote")
					return "ok", tt.err
				},
				Reconcile:      func(string) { steps = append(steps, "reconcile") },
				Rollback:       func() { steps = append(steps, "rollback") },
				AllowAmbiguous: tt.allowAmbiguous,
				FailureMessage: "generic",
			})

			assert.Equal(t, tt.wantStatus, o.Status)
			assert.Equal(t, []string{"apply", "remote"}, steps[:2])
			assert.Equal(t, tt.wantRollback, slices.Contains(steps, "rollback"))
			assert.Equal(t, tt.wantReconcile, slices.Contains(steps, "reconcile"))
			assert.Len(t, steps, 3)
		})
	}
}

func TestOutcome_JSON(t *testing.T) {
	data, err := json.Marshal(Outcome{Status: StatusWarning, Message: "maybe"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"warning":true,"message":"maybe"}`, string(data))

	data, err = json.Marshal(Outcome{Status: StatusInvalid, Message: "missing"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"message":"missing"}`, string(data))
}

func TestReplyToMention_ConfirmReplacesTempEntry(t *testing.T) {
	f := newFixture(t, true)
	f.ws.mentions = []models.Mention{{ID: "m1", Platform: models.PlatformFacebook, Replies: []models.Reply{}}}
	f.fake.Acks["ReplyToMention"] = platforms.Ack{ID: "r99"}

	var inFlight []models.Reply
	f.fake.BeforeCall = func(context.Context, string, []string) {
		inFlight = f.ws.replies(fbMention)
	}

	o := f.handler.ReplyToMention(context.Background(), fbMention, "hi")

	require.True(t, o.Success())
	assert.Equal(t, "r99", o.ID)

	require.Len(t, inFlight, 1)
	assert.Equal(t, "hi", inFlight[0].Text)
	assert.True(t, inFlight[0].Sending)
	assert.True(t, IsTempID(inFlight[0].ID))

	final := f.ws.replies(fbMention)
	require.Len(t, final, 1)
	assert.Equal(t, "r99", final[0].ID)
	assert.Equal(t, "hi", final[0].Text)
	assert.False(t, final[0].Sending)
	assert.True(t, final[0].IsMe)
}

func TestReplyToMention_RollbackRestoresRepliesAndDraft(t *testing.T) {
	f := newFixture(t, true)
	before := []models.Reply{{ID: "r1", Text: "earlier"}}
	f.ws.mentions = []models.Mention{{ID: "m1", Platform: models.PlatformFacebook, Replies: slices.Clone(before)}}
	f.ws.drafts[MentionDraftKey(fbMention)] = "hi there"
	f.fake.SetError("ReplyToMention", &platforms.APIError{StatusCode: 400, Detail: "(#10) Permission denied"})

	var draftDuringCall string
	f.fake.BeforeCall = func(context.Context, string, []string) {
		f.ws.mu.Lock()
		draftDuringCall = f.ws.drafts[MentionDraftKey(fbMention)]
		f.ws.mu.Unlock()
	}

	o := f.handler.ReplyToMention(context.Background(), fbMention, "hi there")

	assert.False(t, o.Success())
	assert.Equal(t, StatusFailed, o.Status)
	assert.Equal(t, "(#10) Permission denied", o.Message)
	assert.Equal(t, before, f.ws.replies(fbMention))
	assert.Equal(t, "", draftDuringCall)
	assert.Equal(t, "hi there", f.ws.drafts[MentionDraftKey(fbMention)])

	require.Len(t, f.notifier.outcomes, 1)
	assert.Equal(t, StatusFailed, f.notifier.outcomes[0].Status)
}

func TestReplyToMention_NetworkFailureUsesGenericMessage(t *testing.T) {
	f := newFixture(t, true)
	f.ws.mentions = []models.Mention{{ID: "m1", Platform: models.PlatformFacebook}}
	f.fake.SetError("ReplyToMention", &platforms.NetworkError{Op: "POST /facebook/sent_private", Err: context.DeadlineExceeded})

	o := f.handler.ReplyToMention(context.Background(), fbMention, "hi")

	assert.Equal(t, StatusFailed, o.Status)
	assert.Equal(t, "Failed to send reply", o.Message)
	assert.Empty(t, f.ws.replies(fbMention))
}

func TestMutations_MissingTokenMakesNoNetworkCall(t *testing.T) {
	f := newFixture(t, false)
	f.ws.mentions = []models.Mention{{ID: "m1", Platform: models.PlatformFacebook}}
	f.ws.conversations = []models.Conversation{{ID: "t1", Platform: models.PlatformFacebook, UserID: "psid"}}
	f.ws.posts = []models.Post{{ID: "p1", Platform: models.PlatformFacebook}}
	ctx := context.Background()
	dm := models.Ref{Platform: models.PlatformFacebook, ID: "t1"}

	outcomes := []Outcome{
		f.handler.ReplyToMention(ctx, fbMention, "hi"),
		f.handler.SendMessage(ctx, dm, "hi"),
		f.handler.CreatePost(ctx, models.PlatformFacebook, PostInput{Content: "hello"}),
		f.handler.UpdatePost(ctx, fbPost, "hello"),
		f.handler.DeletePost(ctx, fbPost),
		f.handler.ReplyToComment(ctx, fbPost, "c1", "hi"),
		f.handler.HideComment(ctx, fbPost, "c1", true),
		f.handler.DeleteComment(ctx, fbPost, "c1"),
	}

	for _, o := range outcomes {
		assert.Equal(t, StatusInvalid, o.Status)
		assert.False(t, o.Success())
		assert.Contains(t, o.Message, "access token is missing")
	}
	assert.Equal(t, 0, f.fake.CallCount(""))
	assert.Empty(t, f.ws.replies(fbMention))
	assert.Len(t, f.ws.posts, 1)
}

func TestReplyToMention_InvalidContentMakesNoCall(t *testing.T) {
	f := newFixture(t, true)
	f.ws.mentions = []models.Mention{{ID: "m1", Platform: models.PlatformFacebook}}

	o := f.handler.ReplyToMention(context.Background(), fbMention, "   ")

	assert.Equal(t, StatusInvalid, o.Status)
	assert.Equal(t, 0, f.fake.CallCount(""))
	assert.Empty(t, f.ws.replies(fbMention))
}

func TestReplyToMention_OneInFlightPerTarget(t *testing.T) {
	f := newFixture(t, true)
	f.ws.mentions = []models.Mention{{ID: "m1", Platform: models.PlatformFacebook}}
	f.fake.Acks["ReplyToMention"] = platforms.Ack{ID: "r1"}

	var second Outcome
	var repliesDuringSecond int
	f.fake.BeforeCall = func(ctx context.Context, method string, args []string) {
		if second.Status != "" {
			return
		}
		second = f.handler.ReplyToMention(ctx, fbMention, "again")
		repliesDuringSecond = len(f.ws.replies(fbMention))
	}

	first := f.handler.ReplyToMention(context.Background(), fbMention, "hi")

	assert.Equal(t, StatusSuccess, first.Status)
	assert.Equal(t, StatusFailed, second.Status)
	assert.ErrorIs(t, second.Err, ErrInFlight)
	assert.Equal(t, 1, repliesDuringSecond)
	assert.Equal(t, 1, f.fake.CallCount("ReplyToMention"))
	assert.Len(t, f.ws.replies(fbMention), 1)
}

func TestSendMessage_AppendsWithoutReordering(t *testing.T) {
	f := newFixture(t, true)
	f.ws.conversations = []models.Conversation{
		{ID: "t0", Platform: models.PlatformFacebook, UserID: "psid-0"},
		{ID: "t1", Platform: models.PlatformFacebook, UserID: "psid-1", LastMessage: "old", Messages: []models.Message{{ID: "mid.1", Text: "old"}}},
	}
	f.fake.Acks["SendMessage"] = platforms.Ack{ID: "mid.2"}
	ref := models.Ref{Platform: models.PlatformFacebook, ID: "t1"}

	o := f.handler.SendMessage(context.Background(), ref, "thanks")

	require.True(t, o.Success())
	calls := f.fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"page-1", "psid-1", "thanks", "tok"}, calls[0].Args)

	assert.Equal(t, "t0", f.ws.conversations[0].ID)
	conv := f.ws.conversations[1]
	assert.Equal(t, "thanks", conv.LastMessage)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "mid.2", conv.Messages[1].ID)
	assert.False(t, conv.Messages[1].Sending)
}

func TestSendMessage_RollbackRestoresLastMessage(t *testing.T) {
	f := newFixture(t, true)
	f.ws.conversations = []models.Conversation{{ID: "t1", Platform: models.PlatformFacebook, UserID: "psid-1", LastMessage: "old"}}
	f.fake.SetError("SendMessage", &platforms.APIError{StatusCode: 400, Detail: "Outside of allowed window"})
	ref := models.Ref{Platform: models.PlatformFacebook, ID: "t1"}

	o := f.handler.SendMessage(context.Background(), ref, "late reply")

	assert.Equal(t, "Outside of allowed window", o.Message)
	assert.Equal(t, "old", f.ws.conversations[0].LastMessage)
	assert.Empty(t, f.ws.conversations[0].Messages)
	assert.Equal(t, "late reply", f.ws.drafts[ConversationDraftKey(ref)])
}

func TestCreatePost_ConfirmReplacesTempPost(t *testing.T) {
	f := newFixture(t, true)
	f.ws.posts = []models.Post{{ID: "old", Platform: models.PlatformFacebook}}
	f.fake.Acks["CreatePost"] = platforms.Ack{ID: "page-1_9", Permalink: "https://fb.com/9"}

	o := f.handler.CreatePost(context.Background(), models.PlatformFacebook, PostInput{
		Content:   "grand opening",
		PhotoURLs: []string{"https://img/1.png"},
	})

	require.True(t, o.Success())
	require.Len(t, f.ws.posts, 2)
	created := f.ws.posts[0]
	assert.Equal(t, "page-1_9", created.ID)
	assert.Equal(t, "facebook-post-page-1_9", created.Key)
	assert.Equal(t, "https://fb.com/9", created.Permalink)
	assert.Equal(t, "grand opening", created.Content)
	assert.False(t, created.Sending)
}

func TestCreatePost_InvalidPhotoURLMakesNoCall(t *testing.T) {
	f := newFixture(t, true)

	o := f.handler.CreatePost(context.Background(), models.PlatformFacebook, PostInput{
		Content:   "grand opening",
		PhotoURLs: []string{"ftp://img/1.png"},
	})

	assert.Equal(t, StatusInvalid, o.Status)
	assert.Equal(t, 0, f.fake.CallCount(""))
	assert.Empty(t, f.ws.posts)
}

func TestDeletePost_AmbiguousSuccessIsWarning(t *testing.T) {
	f := newFixture(t, true)
	f.ws.posts = []models.Post{{ID: "p1", Platform: models.PlatformFacebook}}
	f.fake.SetError("DeletePost", &platforms.APIError{StatusCode: 500, Body: ""})

	o := f.handler.DeletePost(context.Background(), fbPost)

	assert.True(t, o.Success())
	assert.Equal(t, StatusWarning, o.Status)
	assert.NotEmpty(t, o.Message)
	assert.Empty(t, f.ws.posts)
}

func TestDeletePost_RealFailureRestoresPosition(t *testing.T) {
	f := newFixture(t, true)
	f.ws.posts = []models.Post{
		{ID: "p0", Platform: models.PlatformFacebook},
		{ID: "p1", Platform: models.PlatformFacebook},
		{ID: "p2", Platform: models.PlatformFacebook},
	}
	f.fake.SetError("DeletePost", &platforms.APIError{StatusCode: 500, Body: `{"detail":"Permission denied"}`, Detail: "Permission denied"})

	o := f.handler.DeletePost(context.Background(), fbPost)

	assert.False(t, o.Success())
	assert.Equal(t, "Permission denied", o.Message)
	ids := []string{f.ws.posts[0].ID, f.ws.posts[1].ID, f.ws.posts[2].ID}
	assert.Equal(t, []string{"p0", "p1", "p2"}, ids)
}

func TestUpdatePost_UnsupportedRestoresContent(t *testing.T) {
	f := newFixture(t, true)
	f.ws.posts = []models.Post{{ID: "p1", Platform: models.PlatformFacebook, Content: "before"}}
	f.fake.SetError("UpdatePost", platforms.ErrUnsupported)

	o := f.handler.UpdatePost(context.Background(), fbPost, "after")

	assert.Equal(t, StatusFailed, o.Status)
	assert.Equal(t, platforms.ErrUnsupported.Error(), o.Message)
	assert.Equal(t, "before", f.ws.posts[0].Content)
	assert.False(t, f.ws.posts[0].Sending)
}

func TestDeleteComment_NestedRollback(t *testing.T) {
	f := newFixture(t, true)
	tree := []models.Comment{
		{ID: "c1", Replies: []models.Comment{{ID: "c1a"}, {ID: "c1b"}}},
		{ID: "c2"},
	}
	f.ws.comments[fbPost] = cloneCommentTree(tree)
	f.fake.SetError("DeleteComment", &platforms.APIError{StatusCode: 403, Detail: "Not allowed"})

	var during []models.Comment
	f.fake.BeforeCall = func(context.Context, string, []string) {
		f.ws.mu.Lock()
		during = cloneCommentTree(f.ws.comments[fbPost])
		f.ws.mu.Unlock()
	}

	o := f.handler.DeleteComment(context.Background(), fbPost, "c1a")

	assert.Equal(t, StatusFailed, o.Status)
	require.Len(t, during, 2)
	assert.Len(t, during[0].Replies, 1)
	assert.Equal(t, tree, f.ws.comments[fbPost])
}

func TestHideComment(t *testing.T) {
	f := newFixture(t, true)
	f.ws.comments[fbPost] = []models.Comment{{ID: "c1"}}

	o := f.handler.HideComment(context.Background(), fbPost, "c1", true)

	require.True(t, o.Success())
	assert.True(t, f.ws.comments[fbPost][0].Hidden)
	assert.Equal(t, []string{"c1", "true", "tok"}, f.fake.Calls()[0].Args)
}

func TestReplyToComment_Confirm(t *testing.T) {
	f := newFixture(t, true)
	f.ws.comments[fbPost] = []models.Comment{{ID: "c1"}}
	f.fake.Acks["ReplyToComment"] = platforms.Ack{ID: "c1_r"}

	o := f.handler.ReplyToComment(context.Background(), fbPost, "c1", "thank you")

	require.True(t, o.Success())
	replies := f.ws.comments[fbPost][0].Replies
	require.Len(t, replies, 1)
	assert.Equal(t, "c1_r", replies[0].ID)
	assert.False(t, replies[0].Sending)
}

func TestCreatePost_AckOfListedPostDropsTempEntry(t *testing.T) {
	f := newFixture(t, true)
	f.ws.posts = []models.Post{{ID: "p1", Platform: models.PlatformFacebook}}
	f.fake.Acks["CreatePost"] = platforms.Ack{ID: "p2"}
	f.fake.BeforeCall = func(ctx context.Context, method string, args []string) {
		if method == "CreatePost" {
			// a refetch lands first and already lists the new post
			f.ws.UpdatePosts(func(list []models.Post) []models.Post {
				return slices.Insert(list, 1, models.Post{ID: "p2", Platform: models.PlatformFacebook})
			})
		}
	}

	o := f.handler.CreatePost(context.Background(), models.PlatformFacebook, PostInput{Content: "sale"})

	require.True(t, o.Success())
	assert.Equal(t, "p2", o.ID)
	var ids []string
	for _, p := range f.ws.posts {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"p2", "p1"}, ids)
}

func TestSendMessage_AckOfListedMessageDropsTempEntry(t *testing.T) {
	f := newFixture(t, true)
	ref := models.Ref{Platform: models.PlatformFacebook, ID: "t1"}
	f.ws.conversations = []models.Conversation{{ID: "t1", Platform: models.PlatformFacebook, UserID: "psid-1"}}
	f.fake.Acks["SendMessage"] = platforms.Ack{ID: "mid.1"}
	f.fake.BeforeCall = func(ctx context.Context, method string, args []string) {
		if method == "SendMessage" {
			f.ws.UpdateConversations(func(list []models.Conversation) []models.Conversation {
				list[0].Messages = append([]models.Message{{ID: "mid.1", Text: "hi"}}, list[0].Messages...)
				return list
			})
		}
	}

	o := f.handler.SendMessage(context.Background(), ref, "hi")

	require.True(t, o.Success())
	conv, _ := f.ws.Conversation(ref)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "mid.1", conv.Messages[0].ID)
	assert.False(t, conv.Messages[0].Sending)
}

func TestCreatePost_InstagramMediaLimits(t *testing.T) {
	ctx := context.Background()
	ig := platformstest.New(models.PlatformInstagram)
	creds := store.NewCredentials(store.NewMemoryKV(), "s1")
	require.NoError(t, creds.SaveCredential(ctx, models.Credential{
		Platform:    models.PlatformInstagram,
		AccessToken: "tok",
		AccountID:   "ig-1",
	}))
	ws := newWorkspace()
	h := NewHandler(ws, creds, platforms.Set{models.PlatformInstagram: ig}, nil)

	tests := []struct {
		name    string
		input   PostInput
		message string
	}{
		{
			name:    "two photo urls",
			input:   PostInput{Content: "sunset", PhotoURLs: []string{"https://img/1.png", "https://img/2.png"}},
			message: "Instagram posts support a single image",
		},
		{
			name: "video",
			input: PostInput{
				Content:   "sunset",
				PhotoURLs: []string{"https://img/1.png"},
				Video:     &validation.FileUpload{Name: "clip.mp4", ContentType: "video/mp4", Size: 10, Data: []byte("0000")},
			},
			message: "Instagram posts support images only",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := h.CreatePost(ctx, models.PlatformInstagram, tt.input)
			assert.Equal(t, StatusInvalid, o.Status)
			assert.Equal(t, tt.message, o.Message)
		})
	}
	assert.Equal(t, 0, ig.CallCount(""))
	assert.Empty(t, ws.posts)
}
