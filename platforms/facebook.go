package platforms

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"social-dashboard/models"
)

// Facebook adapts the backend's /facebook routes
type Facebook struct {
	client *Client
}

var _ Adapter = (*Facebook)(nil)

// NewFacebook creates the Facebook adapter
func NewFacebook(client *Client) *Facebook {
	return &Facebook{client: client}
}

func (f *Facebook) Platform() models.Platform { return models.PlatformFacebook }

type fbComment struct {
	ID          flexString       `json:"id"`
	Message     string           `json:"message"`
	CreatedTime flexString       `json:"created_time"`
	From        *graphUser       `json:"from"`
	IsHidden    bool             `json:"is_hidden"`
	Comments    *edge[fbComment] `json:"comments"`
}

type fbMention struct {
	ID           flexString       `json:"id"`
	Message      string           `json:"message"`
	Story        string           `json:"story"`
	CreatedTime  flexString       `json:"created_time"`
	From         *graphUser       `json:"from"`
	PermalinkURL string           `json:"permalink_url"`
	FullPicture  string           `json:"full_picture"`
	Comments     *edge[fbComment] `json:"comments"`
}

type fbPost struct {
	ID           flexString `json:"id"`
	Message      string     `json:"message"`
	Story        string     `json:"story"`
	CreatedTime  flexString `json:"created_time"`
	From         *graphUser `json:"from"`
	FullPicture  string     `json:"full_picture"`
	PermalinkURL string     `json:"permalink_url"`
}

type fbMessage struct {
	ID          flexString `json:"id"`
	Message     string     `json:"message"`
	CreatedTime flexString `json:"created_time"`
	From        *graphUser `json:"from"`
}

type fbConversation struct {
	ID           flexString       `json:"id"`
	UpdatedTime  flexString       `json:"updated_time"`
	UnreadCount  int              `json:"unread_count"`
	Snippet      string           `json:"snippet"`
	Participants *edge[graphUser] `json:"participants"`
	Messages     *edge[fbMessage] `json:"messages"`
}

func (f *Facebook) FetchMentions(ctx context.Context, accountID, token string) ([]models.Mention, error) {
	const path = "/facebook/mentions"
	body, err := f.client.get(ctx, path, url.Values{"access_token": {token}, "page_id": {accountID}})
	if err != nil {
		return nil, err
	}

	raw, err := decodeList[fbMention](body, "GET "+path, "data")
	if err != nil {
		return nil, err
	}

	now := f.client.Now()
	mentions := make([]models.Mention, 0, len(raw))
	for _, m := range raw {
		mentions = append(mentions, models.Mention{
			ID:        string(m.ID),
			Platform:  models.PlatformFacebook,
			Message:   firstNonEmpty(m.Message, m.Story),
			Time:      parseTime(m.CreatedTime, now),
			Username:  firstNonEmpty(m.From.display(), UnknownUser),
			MediaURL:  m.FullPicture,
			Permalink: m.PermalinkURL,
			Avatar:    m.From.avatar(),
			Replies:   fbReplies(m.Comments, accountID, now),
		})
	}
	return mentions, nil
}

func fbReplies(comments *edge[fbComment], accountID string, now time.Time) []models.Reply {
	replies := []models.Reply{}
	if comments == nil {
		return replies
	}
	for _, c := range comments.Data {
		replies = append(replies, models.Reply{
			ID:     string(c.ID),
			Text:   c.Message,
			Time:   parseTime(c.CreatedTime, now),
			Author: firstNonEmpty(c.From.display(), UnknownUser),
			IsMe:   accountID != "" && c.From.id() == accountID,
		})
	}
	sortOldestFirst(replies, func(r models.Reply) time.Time { return r.Time })
	return replies
}

func (f *Facebook) FetchPosts(ctx context.Context, accountID, token string) ([]models.Post, error) {
	const path = "/facebook/posts"
	body, err := f.client.get(ctx, path, url.Values{"access_token": {token}, "page_id": {accountID}})
	if err != nil {
		return nil, err
	}

	// the route has shipped both envelopes
	raw, err := decodeList[fbPost](body, "GET "+path, "posts", "data")
	if err != nil {
		return nil, err
	}

	now := f.client.Now()
	posts := make([]models.Post, 0, len(raw))
	for _, p := range raw {
		posts = append(posts, models.Post{
			ID:         string(p.ID),
			Platform:   models.PlatformFacebook,
			Caption:    p.Story,
			Content:    p.Message,
			AuthorName: p.From.display(),
			Timestamp:  parseTime(p.CreatedTime, now),
			MediaURL:   p.FullPicture,
			Permalink:  p.PermalinkURL,
		})
	}
	return posts, nil
}

func (f *Facebook) FetchConversations(ctx context.Context, accountID, token string) ([]models.Conversation, error) {
	const path = "/facebook/conversations"
	body, err := f.client.get(ctx, path, url.Values{"access_token": {token}, "page_id": {accountID}})
	if err != nil {
		return nil, err
	}

	raw, err := decodeList[fbConversation](body, "GET "+path, "conversations")
	if err != nil {
		return nil, err
	}

	now := f.client.Now()
	conversations := make([]models.Conversation, 0, len(raw))
	for _, c := range raw {
		var other *graphUser
		if c.Participants != nil {
			for i := range c.Participants.Data {
				if string(c.Participants.Data[i].ID) != accountID {
					other = &c.Participants.Data[i]
					break
				}
			}
		}

		messages := []models.Message{}
		if c.Messages != nil {
			messages = fbMessages(c.Messages.Data, accountID, now)
		}

		conv := models.Conversation{
			ID:          string(c.ID),
			Platform:    models.PlatformFacebook,
			Username:    firstNonEmpty(other.display(), UnknownUser),
			Avatar:      other.avatar(),
			LastMessage: c.Snippet,
			Time:        parseTime(c.UpdatedTime, time.Time{}),
			Unread:      c.UnreadCount,
			UserID:      other.id(),
			Messages:    messages,
		}
		if n := len(messages); n > 0 {
			last := messages[n-1]
			conv.LastMessage = firstNonEmpty(conv.LastMessage, last.Text)
			if conv.Time.IsZero() {
				conv.Time = last.Time
			}
		}
		if conv.Time.IsZero() {
			conv.Time = now
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

func (f *Facebook) FetchConversation(ctx context.Context, accountID, conversationID, token string) ([]models.Message, error) {
	path := "/facebook/conversations/" + segment(conversationID) + "/messages"
	body, err := f.client.get(ctx, path, url.Values{"access_token": {token}, "page_id": {accountID}})
	if err != nil {
		return nil, err
	}

	raw, err := decodeList[fbMessage](body, "GET /facebook/conversations/{id}/messages", "messages")
	if err != nil {
		return nil, err
	}
	return fbMessages(raw, accountID, f.client.Now()), nil
}

// fbMessages normalizes Graph messages (newest first) to oldest first
func fbMessages(raw []fbMessage, accountID string, now time.Time) []models.Message {
	messages := make([]models.Message, 0, len(raw))
	for _, m := range raw {
		messages = append(messages, models.Message{
			ID:     string(m.ID),
			Text:   m.Message,
			Time:   parseTime(m.CreatedTime, now),
			Sender: firstNonEmpty(m.From.display(), UnknownUser),
			IsMe:   accountID != "" && m.From.id() == accountID,
		})
	}
	sortOldestFirst(messages, func(m models.Message) time.Time { return m.Time })
	return messages
}

func (f *Facebook) FetchComments(ctx context.Context, postID, token string) ([]models.Comment, error) {
	const path = "/facebook/post/comments"
	body, err := f.client.get(ctx, path, url.Values{"access_token": {token}, "post_id": {postID}})
	if err != nil {
		return nil, err
	}

	raw, err := decodeList[fbComment](body, "GET "+path, "data")
	if err != nil {
		return nil, err
	}
	return fbComments(raw, postID, f.client.Now()), nil
}

func fbComments(raw []fbComment, postID string, now time.Time) []models.Comment {
	comments := make([]models.Comment, 0, len(raw))
	for _, c := range raw {
		comment := models.Comment{
			ID:     string(c.ID),
			PostID: postID,
			Text:   c.Message,
			Time:   parseTime(c.CreatedTime, now),
			Author: firstNonEmpty(c.From.display(), UnknownUser),
			Hidden: c.IsHidden,
		}
		if c.Comments != nil && len(c.Comments.Data) > 0 {
			comment.Replies = fbComments(c.Comments.Data, postID, now)
		}
		comments = append(comments, comment)
	}
	sortOldestFirst(comments, func(c models.Comment) time.Time { return c.Time })
	return comments
}

func (f *Facebook) ReplyToMention(ctx context.Context, targetID, text, token string) (Ack, error) {
	const path = "/facebook/sent_private"
	query := url.Values{"post_id": {targetID}, "message": {text}, "access_token": {token}}
	body, err := f.client.do(ctx, http.MethodPost, path, query, nil, "")
	if err != nil {
		return Ack{}, err
	}
	return decodeAck(body, "POST "+path)
}

func (f *Facebook) SendMessage(ctx context.Context, accountID, recipientID, text, token string) (Ack, error) {
	const path = "/facebook/message/send"
	form := newForm().
		field("page_id", accountID).
		field("access_token", token).
		field("recipient_psid", recipientID).
		field("message_text", text)

	body, err := f.client.sendForm(ctx, http.MethodPost, path, form)
	if err != nil {
		return Ack{}, err
	}
	return decodeAck(body, "POST "+path)
}

func (f *Facebook) CreatePost(ctx context.Context, accountID string, draft PostDraft, token string) (Ack, error) {
	const path = "/facebook/posts"
	form := newForm().
		field("message", draft.Content).
		field("page_id", accountID).
		field("access_token", token)
	for _, u := range draft.PhotoURLs {
		form.field("photo_urls", u)
	}
	for _, img := range draft.Images {
		form.file("image_files", img)
	}
	if draft.Video != nil {
		form.file("video_file", *draft.Video)
	}

	body, err := f.client.sendForm(ctx, http.MethodPost, path, form)
	if err != nil {
		return Ack{}, err
	}
	return decodeAck(body, "POST "+path)
}

func (f *Facebook) UpdatePost(ctx context.Context, postID, content, token string) (Ack, error) {
	form := newForm().
		field("new_message", content).
		field("access_token", token)

	body, err := f.client.sendForm(ctx, http.MethodPut, "/facebook/posts/"+segment(postID), form)
	if err != nil {
		return Ack{}, err
	}
	return decodeAck(body, "PUT /facebook/posts/{id}")
}

func (f *Facebook) DeletePost(ctx context.Context, postID, token string) (Ack, error) {
	body, err := f.client.do(ctx, http.MethodDelete, "/facebook/posts/"+segment(postID), url.Values{"access_token": {token}}, nil, "")
	if err != nil {
		return Ack{}, err
	}
	return decodeAck(body, "DELETE /facebook/posts/{id}")
}

func (f *Facebook) ReplyToComment(ctx context.Context, commentID, text, token string) (Ack, error) {
	const path = "/facebook/post/comment/reply"
	query := url.Values{"comment_id": {commentID}, "message": {text}, "access_token": {token}}
	body, err := f.client.do(ctx, http.MethodPost, path, query, nil, "")
	if err != nil {
		return Ack{}, err
	}
	return decodeAck(body, "POST "+path)
}

func (f *Facebook) HideComment(ctx context.Context, commentID string, hide bool, token string) (Ack, error) {
	const path = "/facebook/post/comment/hide"
	query := url.Values{"comment_id": {commentID}, "hide": {strconv.FormatBool(hide)}, "access_token": {token}}
	body, err := f.client.do(ctx, http.MethodPost, path, query, nil, "")
	if err != nil {
		return Ack{}, err
	}
	return decodeAck(body, "POST "+path)
}

func (f *Facebook) DeleteComment(ctx context.Context, commentID, token string) (Ack, error) {
	body, err := f.client.do(ctx, http.MethodDelete, "/facebook/post/comment/"+segment(commentID), url.Values{"access_token": {token}}, nil, "")
	if err != nil {
		return Ack{}, err
	}
	return decodeAck(body, "DELETE /facebook/post/comment/{id}")
}
