package platforms

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"social-dashboard/models"
)

// Instagram adapts the backend's /instagram routes. The account id is the
// Instagram business user id linked to the Facebook page.
type Instagram struct {
	client *Client
}

var _ Adapter = (*Instagram)(nil)

// NewInstagram creates the Instagram adapter
func NewInstagram(client *Client) *Instagram {
	return &Instagram{client: client}
}

func (i *Instagram) Platform() models.Platform { return models.PlatformInstagram }

type igComment struct {
	ID        flexString       `json:"id"`
	Text      string           `json:"text"`
	Timestamp flexString       `json:"timestamp"`
	Username  string           `json:"username"`
	From      *graphUser       `json:"from"`
	Hidden    bool             `json:"hidden"`
	Replies   *edge[igComment] `json:"replies"`
}

func (c igComment) author() string {
	return firstNonEmpty(c.Username, c.From.display(), UnknownUser)
}

type igMedia struct {
	ID        flexString       `json:"id"`
	Caption   string           `json:"caption"`
	Timestamp flexString       `json:"timestamp"`
	Username  string           `json:"username"`
	MediaURL  string           `json:"media_url"`
	Permalink string           `json:"permalink"`
	Owner     *graphUser       `json:"owner"`
	Comments  *edge[igComment] `json:"comments"`
}

type igMessage struct {
	ID          flexString `json:"id"`
	Message     string     `json:"message"`
	CreatedTime flexString `json:"created_time"`
	From        *graphUser `json:"from"`
}

type igConversation struct {
	ID           flexString       `json:"id"`
	UpdatedTime  flexString       `json:"updated_time"`
	UnreadCount  int              `json:"unread_count"`
	Participants *edge[graphUser] `json:"participants"`
	Messages     *edge[igMessage] `json:"messages"`
}

func (i *Instagram) query(accountID, token string) url.Values {
	return url.Values{"access_token": {token}, "ig_user_id": {accountID}}
}

func (i *Instagram) FetchMentions(ctx context.Context, accountID, token string) ([]models.Mention, error) {
	const path = "/instagram/mentions"
	body, err := i.client.get(ctx, path, i.query(accountID, token))
	if err != nil {
		return nil, err
	}

	raw, err := decodeList[igMedia](body, "GET "+path, "data")
	if err != nil {
		return nil, err
	}

	now := i.client.Now()
	mentions := make([]models.Mention, 0, len(raw))
	for _, m := range raw {
		replies := []models.Reply{}
		if m.Comments != nil {
			for _, c := range m.Comments.Data {
				replies = append(replies, models.Reply{
					ID:     string(c.ID),
					Text:   c.Text,
					Time:   parseTime(c.Timestamp, now),
					Author: c.author(),
					IsMe:   accountID != "" && c.From.id() == accountID,
				})
			}
			sortOldestFirst(replies, func(r models.Reply) time.Time { return r.Time })
		}

		mentions = append(mentions, models.Mention{
			ID:        string(m.ID),
			Platform:  models.PlatformInstagram,
			Message:   m.Caption,
			Time:      parseTime(m.Timestamp, now),
			Username:  firstNonEmpty(m.Username, m.Owner.display(), UnknownUser),
			MediaURL:  m.MediaURL,
			Permalink: m.Permalink,
			Avatar:    m.Owner.avatar(),
			Replies:   replies,
		})
	}
	return mentions, nil
}

func (i *Instagram) FetchPosts(ctx context.Context, accountID, token string) ([]models.Post, error) {
	const path = "/instagram/posts"
	body, err := i.client.get(ctx, path, i.query(accountID, token))
	if err != nil {
		return nil, err
	}

	raw, err := decodeList[igMedia](body, "GET "+path, "data")
	if err != nil {
		return nil, err
	}

	now := i.client.Now()
	posts := make([]models.Post, 0, len(raw))
	for _, p := range raw {
		posts = append(posts, models.Post{
			ID:         string(p.ID),
			Platform:   models.PlatformInstagram,
			Caption:    p.Caption,
			Content:    p.Caption,
			AuthorName: firstNonEmpty(p.Username, p.Owner.display()),
			Timestamp:  parseTime(p.Timestamp, now),
			MediaURL:   p.MediaURL,
			Permalink:  p.Permalink,
		})
	}
	return posts, nil
}

func (i *Instagram) FetchConversations(ctx context.Context, accountID, token string) ([]models.Conversation, error) {
	const path = "/instagram/conversations"
	body, err := i.client.get(ctx, path, i.query(accountID, token))
	if err != nil {
		return nil, err
	}

	raw, err := decodeList[igConversation](body, "GET "+path, "conversations")
	if err != nil {
		return nil, err
	}

	now := i.client.Now()
	conversations := make([]models.Conversation, 0, len(raw))
	for _, c := range raw {
		var other *graphUser
		if c.Participants != nil {
			for j := range c.Participants.Data {
				if string(c.Participants.Data[j].ID) != accountID {
					other = &c.Participants.Data[j]
					break
				}
			}
		}

		messages := []models.Message{}
		if c.Messages != nil {
			messages = igMessages(c.Messages.Data, accountID, now)
		}

		conv := models.Conversation{
			ID:       string(c.ID),
			Platform: models.PlatformInstagram,
			Username: firstNonEmpty(other.display(), UnknownUser),
			Avatar:   other.avatar(),
			Time:     parseTime(c.UpdatedTime, time.Time{}),
			Unread:   c.UnreadCount,
			UserID:   other.id(),
			Messages: messages,
		}
		if n := len(messages); n > 0 {
			conv.LastMessage = messages[n-1].Text
			if conv.Time.IsZero() {
				conv.Time = messages[n-1].Time
			}
		}
		if conv.Time.IsZero() {
			conv.Time = now
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

func (i *Instagram) FetchConversation(ctx context.Context, accountID, conversationID, token string) ([]models.Message, error) {
	body, err := i.client.get(ctx, "/instagram/conversations/"+segment(conversationID)+"/messages", i.query(accountID, token))
	if err != nil {
		return nil, err
	}

	raw, err := decodeList[igMessage](body, "GET /instagram/conversations/{id}/messages", "messages")
	if err != nil {
		return nil, err
	}
	return igMessages(raw, accountID, i.client.Now()), nil
}

func igMessages(raw []igMessage, accountID string, now time.Time) []models.Message {
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

func (i *Instagram) FetchComments(ctx context.Context, mediaID, token string) ([]models.Comment, error) {
	const path = "/instagram/post/comments"
	body, err := i.client.get(ctx, path, url.Values{"access_token": {token}, "media_id": {mediaID}})
	if err != nil {
		return nil, err
	}

	raw, err := decodeList[igComment](body, "GET "+path, "data")
	if err != nil {
		return nil, err
	}
	return igComments(raw, mediaID, i.client.Now()), nil
}

func igComments(raw []igComment, mediaID string, now time.Time) []models.Comment {
	comments := make([]models.Comment, 0, len(raw))
	for _, c := range raw {
		comment := models.Comment{
			ID:     string(c.ID),
			PostID: mediaID,
			Text:   c.Text,
			Time:   parseTime(c.Timestamp, now),
			Author: c.author(),
			Hidden: c.Hidden,
		}
		if c.Replies != nil && len(c.Replies.Data) > 0 {
			comment.Replies = igComments(c.Replies.Data, mediaID, now)
		}
		comments = append(comments, comment)
	}
	sortOldestFirst(comments, func(c models.Comment) time.Time { return c.Time })
	return comments
}

func (i *Instagram) ReplyToMention(ctx context.Context, mediaID, text, token string) (Ack, error) {
	const path = "/instagram/mention/reply"
	query := url.Values{"media_id": {mediaID}, "message": {text}, "access_token": {token}}
	body, err := i.client.do(ctx, http.MethodPost, path, query, nil, "")
	if err != nil {
		return Ack{}, err
	}
	return decodeAck(body, "POST "+path)
}

func (i *Instagram) SendMessage(ctx context.Context, accountID, recipientID, text, token string) (Ack, error) {
	const path = "/instagram/message/send"
	form := newForm().
		field("ig_user_id", accountID).
		field("access_token", token).
		field("recipient_id", recipientID).
		field("message_text", text)

	body, err := i.client.sendForm(ctx, http.MethodPost, path, form)
	if err != nil {
		return Ack{}, err
	}
	return decodeAck(body, "POST "+path)
}

// CreatePost publishes a single image with a caption. Instagram needs
// media: an uploaded image goes to /instagram/posts/upload, otherwise the
// first photo URL is published by reference.
func (i *Instagram) CreatePost(ctx context.Context, accountID string, draft PostDraft, token string) (Ack, error) {
	path := "/instagram/posts"
	form := newForm().
		field("caption", draft.Content).
		field("ig_user_id", accountID).
		field("access_token", token)

	switch {
	case len(draft.Images) > 0:
		path = "/instagram/posts/upload"
		form.file("image_file", draft.Images[0])
	case len(draft.PhotoURLs) > 0:
		form.field("image_url", draft.PhotoURLs[0])
	default:
		return Ack{}, ErrMediaRequired
	}

	body, err := i.client.sendForm(ctx, http.MethodPost, path, form)
	if err != nil {
		return Ack{}, err
	}
	return decodeAck(body, "POST "+path)
}

// UpdatePost is not offered by the Instagram Graph API
func (i *Instagram) UpdatePost(context.Context, string, string, string) (Ack, error) {
	return Ack{}, ErrUnsupported
}

// DeletePost is not offered by the Instagram Graph API
func (i *Instagram) DeletePost(context.Context, string, string) (Ack, error) {
	return Ack{}, ErrUnsupported
}

func (i *Instagram) ReplyToComment(ctx context.Context, commentID, text, token string) (Ack, error) {
	const path = "/instagram/comment/reply"
	query := url.Values{"comment_id": {commentID}, "message": {text}, "access_token": {token}}
	body, err := i.client.do(ctx, http.MethodPost, path, query, nil, "")
	if err != nil {
		return Ack{}, err
	}
	return decodeAck(body, "POST "+path)
}

func (i *Instagram) HideComment(ctx context.Context, commentID string, hide bool, token string) (Ack, error) {
	const path = "/instagram/comment/hide"
	query := url.Values{"comment_id": {commentID}, "hide": {strconv.FormatBool(hide)}, "access_token": {token}}
	body, err := i.client.do(ctx, http.MethodPost, path, query, nil, "")
	if err != nil {
		return Ack{}, err
	}
	return decodeAck(body, "POST "+path)
}

func (i *Instagram) DeleteComment(ctx context.Context, commentID, token string) (Ack, error) {
	body, err := i.client.do(ctx, http.MethodDelete, "/instagram/comment/"+segment(commentID), url.Values{"access_token": {token}}, nil, "")
	if err != nil {
		return Ack{}, err
	}
	return decodeAck(body, "DELETE /instagram/comment/{id}")
}
