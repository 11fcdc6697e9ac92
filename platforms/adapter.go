package platforms

import (
	"context"

	"social-dashboard/models"
)

// Adapter wraps one platform's backend routes. Fetches return unified
// models; mutations return the backend's acknowledgement. Every method
// issues at most one HTTP request and never swallows errors.
type Adapter interface {
	Platform() models.Platform

	FetchMentions(ctx context.Context, accountID, token string) ([]models.Mention, error)
	FetchPosts(ctx context.Context, accountID, token string) ([]models.Post, error)
	FetchConversations(ctx context.Context, accountID, token string) ([]models.Conversation, error)
	// FetchConversation returns the full message history, oldest first
	FetchConversation(ctx context.Context, accountID, conversationID, token string) ([]models.Message, error)
	FetchComments(ctx context.Context, targetID, token string) ([]models.Comment, error)

	ReplyToMention(ctx context.Context, targetID, text, token string) (Ack, error)
	SendMessage(ctx context.Context, accountID, recipientID, text, token string) (Ack, error)
	CreatePost(ctx context.Context, accountID string, draft PostDraft, token string) (Ack, error)
	UpdatePost(ctx context.Context, postID, content, token string) (Ack, error)
	DeletePost(ctx context.Context, postID, token string) (Ack, error)
	ReplyToComment(ctx context.Context, commentID, text, token string) (Ack, error)
	HideComment(ctx context.Context, commentID string, hide bool, token string) (Ack, error)
	DeleteComment(ctx context.Context, commentID, token string) (Ack, error)
}

// PostDraft is the content of a post being created
type PostDraft struct {
	Content   string
	PhotoURLs []string
	Images    []Upload
	Video     *Upload
}

// HasMedia reports whether the draft carries any photo or video
func (d PostDraft) HasMedia() bool {
	return len(d.PhotoURLs) > 0 || len(d.Images) > 0 || d.Video != nil
}

// Set maps platforms to their adapters
type Set map[models.Platform]Adapter

// NewSet builds the default adapters over one backend client
func NewSet(client *Client) Set {
	return Set{
		models.PlatformFacebook:  NewFacebook(client),
		models.PlatformInstagram: NewInstagram(client),
	}
}

// Get returns the adapter for a platform or ErrNotConfigured
func (s Set) Get(platform models.Platform) (Adapter, error) {
	adapter, ok := s[platform]
	if !ok {
		return nil, ErrNotConfigured
	}
	return adapter, nil
}
