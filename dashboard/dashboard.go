// Package dashboard owns the state of one user's dashboard: the fetched
// collections, the compose drafts and what is selected. Network calls are
// made without holding the lock and their responses are dropped when the
// selection they were made for has changed.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"social-dashboard/actions"
	"social-dashboard/aggregate"
	"social-dashboard/models"
	"social-dashboard/platforms"
	"social-dashboard/store"
	"social-dashboard/validation"
)

// ErrStale is returned when a response arrived after the selection it was
// requested for changed. The response is discarded.
var ErrStale = errors.New("response is no longer relevant")

// Publisher receives toasts and state change notifications
type Publisher interface {
	Notify(o actions.Outcome)
	Changed(version uint64)
}

// Options configures a Dashboard
type Options struct {
	Credentials *store.Credentials
	Adapters    platforms.Set
	Auth        *platforms.AuthClient
	Publisher   Publisher
	Now         func() time.Time
}

// Dashboard is the state controller of one browser session
type Dashboard struct {
	id        string
	creds     *store.Credentials
	adapters  platforms.Set
	auth      *platforms.AuthClient
	publisher Publisher
	fetcher   *aggregate.Fetcher
	actions   *actions.Handler
	now       func() time.Time

	mu      sync.Mutex
	state   state
	version uint64
	// selectionGen changes whenever the platform changes or a refresh
	// starts, so late responses can be recognised
	selectionGen uint64
	refreshGen   uint64
}

// New creates a dashboard for session id
func New(id string, opts Options) *Dashboard {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	d := &Dashboard{
		id:        id,
		creds:     opts.Credentials,
		adapters:  opts.Adapters,
		auth:      opts.Auth,
		publisher: opts.Publisher,
		fetcher:   &aggregate.Fetcher{Formatter: aggregate.Formatter{Now: now}},
		now:       now,
		state:     newState(),
	}
	d.actions = actions.NewHandler(d, opts.Credentials, opts.Adapters, d)
	d.actions.SetClock(now)
	return d
}

// ID returns the session id
func (d *Dashboard) ID() string { return d.id }

// Actions returns the optimistic action handler bound to this dashboard
func (d *Dashboard) Actions() *actions.Handler { return d.actions }

// Credentials returns the session's credential store
func (d *Dashboard) Credentials() *store.Credentials { return d.creds }

// Snapshot returns a consistent copy of the current state
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.snapshot(d.version)
}

// Notify forwards a toast to the publisher
func (d *Dashboard) Notify(o actions.Outcome) {
	if d.publisher != nil {
		d.publisher.Notify(o)
	}
}

// mutate applies fn under the lock and publishes the change
func (d *Dashboard) mutate(fn func(s *state)) {
	d.mu.Lock()
	fn(&d.state)
	d.version++
	version := d.version
	d.mu.Unlock()

	if d.publisher != nil {
		d.publisher.Changed(version)
	}
}

// SetActiveTab switches tabs. Leaving the mentions and DM tabs clears the
// selected mention and conversation.
func (d *Dashboard) SetActiveTab(tab Tab) {
	d.mutate(func(s *state) {
		s.ActiveTab = tab
		if !tab.keepsSelection() {
			s.MessageID = ""
			s.DMID = ""
		}
	})
}

// SelectPlatform clears the lists and the selection, then fetches the
// newly selected platform
func (d *Dashboard) SelectPlatform(ctx context.Context, platform models.Platform) error {
	if _, err := d.adapters.Get(platform); err != nil {
		return err
	}

	d.mutate(func(s *state) {
		s.Platform = platform
		s.MessageID, s.DMID, s.PostID = "", "", ""
		s.mentions = []models.Mention{}
		s.conversations = []models.Conversation{}
		s.posts = []models.Post{}
		s.comments = []models.Comment{}
		s.commentsFor = models.Ref{}
		s.failures = map[aggregate.Capability]string{}
		d.selectionGen++
	})
	return d.Refresh(ctx)
}

// Refresh refetches the selected platform. Only the latest refresh is
// applied. Selections survive when their item is still present.
func (d *Dashboard) Refresh(ctx context.Context) error {
	var (
		platform models.Platform
		gen      uint64
	)
	d.mutate(func(s *state) {
		platform = s.Platform
		s.loading = true
		d.refreshGen++
		gen = d.refreshGen
	})

	adapter, err := d.adapters.Get(platform)
	if err != nil {
		d.mutate(func(s *state) { s.loading = false })
		return err
	}
	cred, err := d.creds.Get(ctx, platform)
	if err != nil {
		d.mutate(func(s *state) { s.loading = false })
		return fmt.Errorf("failed to read credentials: %w", err)
	}

	result := d.fetcher.FetchAll(ctx, adapter, cred)

	stale := false
	d.mutate(func(s *state) {
		if gen != d.refreshGen || s.Platform != platform {
			stale = true
			return
		}
		s.loading = false
		s.mentions = carryReplies(s.mentions, result.Mentions)
		s.conversations = carryMessages(s.conversations, result.Conversations)
		s.posts = append(pendingPosts(s.posts, result.Posts), result.Posts...)
		s.failures = map[aggregate.Capability]string{}
		for c, ferr := range result.Failures {
			s.failures[c] = platforms.ErrorMessage(ferr, "Could not load "+string(c))
		}
		s.refreshedAt = d.now().UTC()
		s.pruneSelection()
	})
	if stale {
		slog.Debug("Discarding stale refresh", "session", d.id, "platform", platform)
		return ErrStale
	}

	if err := result.Err(); err != nil && !errors.Is(err, aggregate.ErrMissingCredentials) {
		d.Notify(actions.Outcome{
			Status:  actions.StatusWarning,
			Message: "Some " + platform.Label() + " data could not be loaded",
			Err:     err,
		})
	}
	return nil
}

// pendingPosts keeps posts still being published across a refresh,
// unless the fetched list already holds them
func pendingPosts(posts, fetched []models.Post) []models.Post {
	var out []models.Post
	for _, p := range posts {
		if !p.Sending || !actions.IsTempID(p.ID) {
			continue
		}
		if slices.ContainsFunc(fetched, func(f models.Post) bool { return f.ID == p.ID }) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// carryReplies moves replies still being sent onto the fetched mentions
func carryReplies(old, fetched []models.Mention) []models.Mention {
	for i := range fetched {
		j := slices.IndexFunc(old, func(m models.Mention) bool { return m.Ref() == fetched[i].Ref() })
		if j < 0 {
			continue
		}
		var pending []models.Reply
		for _, r := range old[j].Replies {
			if r.Sending {
				pending = append(pending, r)
			}
		}
		if len(pending) > 0 {
			fetched[i].Replies = append(slices.Clone(fetched[i].Replies), pending...)
		}
	}
	return fetched
}

// carryMessages moves messages still being sent onto the fetched
// conversations
func carryMessages(old, fetched []models.Conversation) []models.Conversation {
	for i := range fetched {
		j := slices.IndexFunc(old, func(c models.Conversation) bool { return c.Ref() == fetched[i].Ref() })
		if j < 0 {
			continue
		}
		pending := pendingMessages(old[j].Messages)
		if len(pending) == 0 {
			continue
		}
		fetched[i].Messages = append(slices.Clone(fetched[i].Messages), pending...)
		fetched[i].LastMessage = pending[len(pending)-1].Text
	}
	return fetched
}

// Overview fetches every connected platform and merges the results into
// one newest-first view. The dashboard state is not changed.
func (d *Dashboard) Overview(ctx context.Context) (aggregate.Result, error) {
	var results []aggregate.Result
	for _, platform := range models.Platforms {
		adapter, err := d.adapters.Get(platform)
		if err != nil {
			continue
		}
		cred, err := d.creds.Get(ctx, platform)
		if err != nil {
			return aggregate.Result{}, fmt.Errorf("failed to read credentials: %w", err)
		}
		if cred == nil || cred.AccountID == "" {
			continue
		}
		results = append(results, d.fetcher.FetchAll(ctx, adapter, cred))
	}
	return aggregate.Merge(results...), nil
}

// SelectMention shows a mention
func (d *Dashboard) SelectMention(id string) error {
	var err error
	d.mutate(func(s *state) {
		if s.mentionIndex(id) < 0 {
			err = actions.ErrNotFound
			return
		}
		s.ActiveTab = TabMentions
		s.MessageID = id
	})
	return err
}

// SelectConversation selects the conversation right away and then loads
// its full history. The history is dropped if the user has moved on.
func (d *Dashboard) SelectConversation(ctx context.Context, id string) error {
	var (
		err      error
		platform models.Platform
		gen      uint64
	)
	d.mutate(func(s *state) {
		i := s.conversationIndex(id)
		if i < 0 {
			err = actions.ErrNotFound
			return
		}
		s.ActiveTab = TabDMs
		s.DMID = id
		platform = s.Platform
		gen = d.selectionGen

		conversations := slices.Clone(s.conversations)
		conversations[i].Unread = 0
		s.conversations = conversations
	})
	if err != nil {
		return err
	}

	adapter, cred, err := d.connection(ctx, platform)
	if err != nil {
		return err
	}

	messages, err := adapter.FetchConversation(ctx, cred.AccountID, id, cred.Token())
	if err != nil {
		slog.Error("Failed to load conversation", "session", d.id, "conversation", id, "error", err)
		d.Notify(actions.Outcome{Status: actions.StatusFailed, Message: platforms.ErrorMessage(err, "Failed to load conversation"), Err: err})
		return err
	}

	stale := false
	d.mutate(func(s *state) {
		if gen != d.selectionGen || s.Platform != platform || s.DMID != id {
			stale = true
			return
		}
		i := s.conversationIndex(id)
		if i < 0 {
			stale = true
			return
		}
		conversations := cloneConversations(s.conversations)
		conversations[i].Messages = append(messages, pendingMessages(conversations[i].Messages)...)
		s.conversations = conversations
	})
	if stale {
		slog.Debug("Discarding stale conversation", "session", d.id, "conversation", id)
		return ErrStale
	}
	return nil
}

// pendingMessages keeps messages still being sent when history arrives
func pendingMessages(messages []models.Message) []models.Message {
	var out []models.Message
	for _, m := range messages {
		if m.Sending {
			out = append(out, m)
		}
	}
	return out
}

// SelectPost shows a post and loads its comments
func (d *Dashboard) SelectPost(ctx context.Context, id string) error {
	var (
		err      error
		platform models.Platform
		gen      uint64
	)
	d.mutate(func(s *state) {
		if s.postIndex(id) < 0 {
			err = actions.ErrNotFound
			return
		}
		s.ActiveTab = TabPosts
		s.PostID = id
		s.comments = []models.Comment{}
		s.commentsFor = models.Ref{Platform: s.Platform, ID: id}
		platform = s.Platform
		gen = d.selectionGen
	})
	if err != nil {
		return err
	}
	if actions.IsTempID(id) {
		return nil
	}

	adapter, cred, err := d.connection(ctx, platform)
	if err != nil {
		return err
	}

	comments, err := adapter.FetchComments(ctx, id, cred.Token())
	if err != nil {
		slog.Error("Failed to load comments", "session", d.id, "post", id, "error", err)
		d.Notify(actions.Outcome{Status: actions.StatusFailed, Message: platforms.ErrorMessage(err, "Failed to load comments"), Err: err})
		return err
	}

	stale := false
	d.mutate(func(s *state) {
		if gen != d.selectionGen || s.PostID != id || s.commentsFor != (models.Ref{Platform: platform, ID: id}) {
			stale = true
			return
		}
		s.comments = comments
	})
	if stale {
		return ErrStale
	}
	return nil
}

// connection returns the adapter and a usable credential for platform
func (d *Dashboard) connection(ctx context.Context, platform models.Platform) (platforms.Adapter, *models.Credential, error) {
	adapter, err := d.adapters.Get(platform)
	if err != nil {
		return nil, nil, err
	}
	cred, err := d.creds.Get(ctx, platform)
	if err != nil {
		return nil, nil, err
	}
	if cred == nil || cred.Token() == "" || cred.AccountID == "" {
		return nil, nil, aggregate.ErrMissingCredentials
	}
	return adapter, cred, nil
}

// SetDraft stores compose box text
func (d *Dashboard) SetDraft(key, text string) {
	d.mutate(func(s *state) {
		drafts := make(map[string]string, len(s.drafts)+1)
		for k, v := range s.drafts {
			drafts[k] = v
		}
		if text == "" {
			delete(drafts, key)
		} else {
			drafts[key] = text
		}
		s.drafts = drafts
	})
}

// Draft returns compose box text
func (d *Dashboard) Draft(key string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.drafts[key]
}

// Connect stores a platform credential after checking it is complete,
// then refreshes when the platform is the one on screen
func (d *Dashboard) Connect(ctx context.Context, cred models.Credential) error {
	if r := validation.ValidateCredentials(validation.CredentialInput{
		AccessToken: cred.AccessToken,
		UserID:      &cred.AccountID,
		Platform:    cred.Platform,
	}); !r.IsValid {
		return &InvalidError{Message: r.Message}
	}
	if err := d.creds.SaveCredential(ctx, cred); err != nil {
		return err
	}

	d.mu.Lock()
	current := d.state.Platform
	d.mu.Unlock()
	if current == cred.Platform {
		if err := d.Refresh(ctx); err != nil && !errors.Is(err, ErrStale) {
			return err
		}
	}
	return nil
}

// Disconnect clears stored credentials for a platform or everything
func (d *Dashboard) Disconnect(ctx context.Context, target string) error {
	if err := d.creds.Clear(ctx, target); err != nil {
		return err
	}
	d.mutate(func(s *state) {
		if target == store.ClearAll || target == string(s.Platform) {
			s.mentions = []models.Mention{}
			s.conversations = []models.Conversation{}
			s.posts = []models.Post{}
			s.comments = []models.Comment{}
			s.commentsFor = models.Ref{}
			s.MessageID, s.DMID, s.PostID = "", "", ""
			d.selectionGen++
		}
	})
	return nil
}

// InvalidError carries a validation message for the user
type InvalidError struct {
	Message string
}

func (e *InvalidError) Error() string { return e.Message }

// Account describes the connected accounts without exposing tokens
type Account struct {
	User        *models.AuthUser                       `json:"user"`
	Theme       string                                 `json:"theme"`
	Connections map[models.Platform]*models.Credential `json:"connections"`
}

// Account reads the session's account information
func (d *Dashboard) Account(ctx context.Context) (Account, error) {
	user, err := d.creds.AuthUser(ctx)
	if err != nil {
		return Account{}, err
	}
	theme, err := d.creds.Theme(ctx)
	if err != nil {
		return Account{}, err
	}

	account := Account{User: user, Theme: theme, Connections: map[models.Platform]*models.Credential{}}
	for _, p := range models.Platforms {
		cred, err := d.creds.Get(ctx, p)
		if err != nil {
			return Account{}, err
		}
		if cred != nil {
			masked := cred.Masked()
			masked.Platform = p
			account.Connections[p] = &masked
		}
	}
	return account, nil
}

// Login signs the user in with the backend and remembers them
func (d *Dashboard) Login(ctx context.Context, email, password string) (models.AuthUser, error) {
	if d.auth == nil {
		return models.AuthUser{}, platforms.ErrNotConfigured
	}
	user, err := d.auth.Login(ctx, email, password)
	if err != nil {
		return models.AuthUser{}, err
	}
	if err := d.creds.SetAuthUser(ctx, user); err != nil {
		return models.AuthUser{}, err
	}
	return user, nil
}

// Signup creates a backend account and signs it in
func (d *Dashboard) Signup(ctx context.Context, req platforms.SignupRequest) (models.AuthUser, error) {
	if d.auth == nil {
		return models.AuthUser{}, platforms.ErrNotConfigured
	}
	user, err := d.auth.Signup(ctx, req)
	if err != nil {
		return models.AuthUser{}, err
	}
	if err := d.creds.SetAuthUser(ctx, user); err != nil {
		return models.AuthUser{}, err
	}
	return user, nil
}

// Logout ends the backend session and forgets every credential. The
// local state is cleared even when the backend call fails.
func (d *Dashboard) Logout(ctx context.Context) error {
	var logoutErr error
	if d.auth != nil {
		logoutErr = d.auth.Logout(ctx)
		if logoutErr != nil {
			slog.Warn("Backend logout failed", "session", d.id, "error", logoutErr)
		}
	}
	if err := d.Disconnect(ctx, store.ClearAll); err != nil {
		return err
	}
	d.mutate(func(s *state) {
		s.drafts = map[string]string{}
	})
	return logoutErr
}
