package platforms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// decodeList decodes the array stored under the first of keys present in
// a JSON object. A missing key or a non-array value is a *ShapeError; an
// explicit null is an empty list.
func decodeList[T any](body []byte, endpoint string, keys ...string) ([]T, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || envelope == nil {
		return nil, &ShapeError{Endpoint: endpoint, Reason: "body is not a JSON object"}
	}

	for _, key := range keys {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		if string(bytes.TrimSpace(raw)) == "null" {
			return []T{}, nil
		}

		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &ShapeError{Endpoint: endpoint, Reason: fmt.Sprintf("%q is not a list of items: %v", key, err)}
		}
		if items == nil {
			items = []T{}
		}
		return items, nil
	}

	return nil, &ShapeError{Endpoint: endpoint, Reason: "missing " + strings.Join(keys, " or ")}
}

// Ack is the backend's confirmation of a mutation
type Ack struct {
	ID        string          `json:"id,omitempty"`
	Permalink string          `json:"permalink,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// decodeAck understands {id, permalink} and {success, data: {...}}.
// success=false is reported as an *APIError so it takes the failure path.
func decodeAck(body []byte, endpoint string) (Ack, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Ack{}, nil
	}

	var payload struct {
		ID           flexString `json:"id"`
		MessageID    flexString `json:"message_id"`
		Permalink    string     `json:"permalink"`
		PermalinkURL string     `json:"permalink_url"`
		Success      *bool      `json:"success"`
		Data         *struct {
			ID        flexString `json:"id"`
			MessageID flexString `json:"message_id"`
			CommentID flexString `json:"comment_id"`
			Permalink string     `json:"permalink"`
		} `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return Ack{}, &ShapeError{Endpoint: endpoint, Reason: "body is not a JSON object"}
	}

	if payload.Success != nil && !*payload.Success {
		detail := extractDetail(trimmed)
		if detail == "" {
			detail = "request was not successful"
		}
		return Ack{}, &APIError{Endpoint: endpoint, StatusCode: 200, Detail: detail, Body: string(trimmed)}
	}

	ack := Ack{Raw: json.RawMessage(trimmed)}
	ids := []flexString{payload.ID, payload.MessageID}
	links := []string{payload.Permalink, payload.PermalinkURL}
	if payload.Data != nil {
		ids = append(ids, payload.Data.ID, payload.Data.MessageID, payload.Data.CommentID)
		links = append(links, payload.Data.Permalink)
	}
	for _, id := range ids {
		if id != "" {
			ack.ID = string(id)
			break
		}
	}
	for _, link := range links {
		if link != "" {
			ack.Permalink = link
			break
		}
	}
	return ack, nil
}

// flexString accepts JSON strings and numbers. Some backend routes echo
// Graph ids as numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// timeLayouts are tried in order; the second is the Graph API format
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTime converts a Graph or backend timestamp. Unix seconds and
// milliseconds are accepted. Missing or unreadable values give fallback.
func parseTime(raw flexString, fallback time.Time) time.Time {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return fallback
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// sortOldestFirst orders items by time keeping the backend order for ties
func sortOldestFirst[T any](items []T, at func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return at(items[i]).Before(at(items[j]))
	})
}

// graphUser is the {id, name, username, picture} object Graph returns
type graphUser struct {
	ID       flexString `json:"id"`
	Name     string     `json:"name"`
	Username string     `json:"username"`
	Picture  *struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
	ProfilePic string `json:"profile_pic"`
}

func (u *graphUser) display() string {
	if u == nil {
		return ""
	}
	return firstNonEmpty(u.Name, u.Username)
}

func (u *graphUser) avatar() string {
	if u == nil {
		return ""
	}
	if u.Picture != nil && u.Picture.Data.URL != "" {
		return u.Picture.Data.URL
	}
	return u.ProfilePic
}

func (u *graphUser) id() string {
	if u == nil {
		return ""
	}
	return string(u.ID)
}

// edge is a Graph connection: {"data": [...]}
type edge[T any] struct {
	Data []T `json:"data"`
}

// UnknownUser is shown when a payload carries no author
const UnknownUser = "Unknown"
