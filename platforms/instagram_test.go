package platforms

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-dashboard/models"
)

func TestInstagram_FetchPosts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instagram/posts", r.URL.Path)
		assert.Equal(t, "ig-1", r.URL.Query().Get("ig_user_id"))
		w.Write([]byte(`{"data":[{"id":"1789","caption":"sunset","media_url":"https://cdn/1789.jpg","timestamp":"2024-04-30T10:00:00+0000","username":"cafe"}]}`))
	})

	posts, err := NewInstagram(client).FetchPosts(context.Background(), "ig-1", "tok")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, models.PlatformInstagram, posts[0].Platform)
	assert.Equal(t, "sunset", posts[0].Caption)
	assert.Equal(t, "sunset", posts[0].Content)
	assert.Equal(t, "cafe", posts[0].AuthorName)
}

func TestInstagram_FetchMentionsDefaults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"17"}]}`))
	})

	mentions, err := NewInstagram(client).FetchMentions(context.Background(), "ig-1", "tok")
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.Equal(t, UnknownUser, mentions[0].Username)
	assert.Equal(t, testNow, mentions[0].Time)
	assert.NotNil(t, mentions[0].Replies)
}

func TestInstagram_CreatePostByURL(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instagram/posts", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "sunset", r.FormValue("caption"))
		assert.Equal(t, "https://cdn/1.jpg", r.FormValue("image_url"))
		w.Write([]byte(`{"id":"1790"}`))
	})

	ack, err := NewInstagram(client).CreatePost(context.Background(), "ig-1", PostDraft{
		Content:   "sunset",
		PhotoURLs: []string{"https://cdn/1.jpg"},
	}, "tok")
	require.NoError(t, err)
	assert.Equal(t, "1790", ack.ID)
}

func TestInstagram_CreatePostByFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instagram/posts/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("image_file")
		require.NoError(t, err)
		assert.Equal(t, "a.jpg", header.Filename)
		w.Write([]byte(`{"id":"1791"}`))
	})

	_, err := NewInstagram(client).CreatePost(context.Background(), "ig-1", PostDraft{
		Content: "sunset",
		Images:  []Upload{{Name: "a.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}}},
	}, "tok")
	require.NoError(t, err)
}

func TestInstagram_UnsupportedOperationsMakeNoRequest(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	ig := NewInstagram(client)

	_, err := ig.UpdatePost(context.Background(), "1789", "new", "tok")
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = ig.DeletePost(context.Background(), "1789", "tok")
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = ig.CreatePost(context.Background(), "ig-1", PostDraft{Content: "text only"}, "tok")
	assert.ErrorIs(t, err, ErrMediaRequired)

	assert.Equal(t, int32(0), calls.Load())
}
