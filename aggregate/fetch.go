package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"social-dashboard/models"
	"social-dashboard/platforms"
)

// Capability names one of the concurrently fetched streams
type Capability string

const (
	Mentions      Capability = "mentions"
	Posts         Capability = "posts"
	Conversations Capability = "conversations"
)

// Capabilities lists the streams in reporting order
var Capabilities = []Capability{Mentions, Posts, Conversations}

// ErrMissingCredentials means no token or account id is stored for the
// platform. Nothing is fetched.
var ErrMissingCredentials = errors.New("missing access token or account id")

// Result is the combined data of one fetch. Failed streams hold empty
// lists and their error is kept in Failures.
type Result struct {
	Platform      models.Platform       `json:"platform"`
	Mentions      []models.Mention      `json:"mentions"`
	Posts         []models.Post         `json:"posts"`
	Conversations []models.Conversation `json:"conversations"`
	Failures      map[Capability]error  `json:"-"`
}

// Err joins the failures, nil when every stream succeeded
func (r Result) Err() error {
	var errs []error
	for _, c := range Capabilities {
		if err, ok := r.Failures[c]; ok {
			errs = append(errs, fmt.Errorf("%s: %w", c, err))
		}
	}
	return errors.Join(errs...)
}

// Failed reports whether stream c failed
func (r Result) Failed(c Capability) bool {
	_, ok := r.Failures[c]
	return ok
}

// Fetcher runs the per-capability fetches of a platform concurrently
type Fetcher struct {
	Formatter Formatter
}

// FetchAll fetches mentions, posts and conversations at the same time.
// One stream failing does not affect the others.
func (f *Fetcher) FetchAll(ctx context.Context, adapter platforms.Adapter, cred *models.Credential) Result {
	platform := adapter.Platform()
	result := Result{
		Platform:      platform,
		Mentions:      []models.Mention{},
		Posts:         []models.Post{},
		Conversations: []models.Conversation{},
		Failures:      map[Capability]error{},
	}

	if cred == nil || cred.Token() == "" || cred.AccountID == "" {
		for _, c := range Capabilities {
			result.Failures[c] = ErrMissingCredentials
		}
		return result
	}

	var (
		g                               errgroup.Group
		mentions                        []models.Mention
		posts                           []models.Post
		conversations                   []models.Conversation
		mentionsErr, postsErr, convsErr error
	)
	token := cred.Token()

	g.Go(func() error {
		mentions, mentionsErr = adapter.FetchMentions(ctx, cred.AccountID, token)
		return nil
	})
	g.Go(func() error {
		posts, postsErr = adapter.FetchPosts(ctx, cred.AccountID, token)
		return nil
	})
	g.Go(func() error {
		conversations, convsErr = adapter.FetchConversations(ctx, cred.AccountID, token)
		return nil
	})
	_ = g.Wait()

	record := func(c Capability, err error) bool {
		if err == nil {
			return true
		}
		result.Failures[c] = err
		slog.Warn("Platform fetch failed", "platform", platform, "capability", c, "error", err)
		return false
	}

	if record(Mentions, mentionsErr) {
		result.Mentions = f.Formatter.FormatMentions(mentions, platform)
	}
	if record(Posts, postsErr) {
		result.Posts = f.Formatter.FormatPosts(posts, platform)
	}
	if record(Conversations, convsErr) {
		result.Conversations = f.Formatter.FormatConversations(conversations, platform)
	}
	return result
}

// Merge combines results from several platforms into one view, newest
// first, keeping the first occurrence of each (platform, id)
func Merge(results ...Result) Result {
	merged := Result{
		Mentions:      []models.Mention{},
		Posts:         []models.Post{},
		Conversations: []models.Conversation{},
		Failures:      map[Capability]error{},
	}

	seen := map[string]bool{}
	fresh := func(kind string, ref models.Ref) bool {
		if ref.ID == "" {
			return true
		}
		key := kind + ":" + ref.String()
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	}

	for _, r := range results {
		for _, m := range r.Mentions {
			if fresh(KindMention, m.Ref()) {
				merged.Mentions = append(merged.Mentions, m)
			}
		}
		for _, p := range r.Posts {
			if fresh(KindPost, p.Ref()) {
				merged.Posts = append(merged.Posts, p)
			}
		}
		for _, c := range r.Conversations {
			if fresh(KindDM, c.Ref()) {
				merged.Conversations = append(merged.Conversations, c)
			}
		}
		for c, err := range r.Failures {
			merged.Failures[c] = errors.Join(merged.Failures[c], fmt.Errorf("%s: %w", r.Platform, err))
		}
	}

	sortNewestFirst(merged.Mentions, func(m models.Mention) time.Time { return m.Time })
	sortNewestFirst(merged.Posts, func(p models.Post) time.Time { return p.Timestamp })
	sortNewestFirst(merged.Conversations, func(c models.Conversation) time.Time { return c.Time })
	return merged
}

func sortNewestFirst[T any](items []T, at func(T) time.Time) {
	slices.SortStableFunc(items, func(a, b T) int {
		return at(b).Compare(at(a))
	})
}
