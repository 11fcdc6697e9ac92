package models

// Credential holds the tokens needed to call the backend for one platform.
// AccountID is the Facebook page id or the Instagram business user id.
type Credential struct {
	Platform        Platform `json:"platform"`
	AccessToken     string   `json:"accessToken"`
	AccountID       string   `json:"accountId"`
	PageAccessToken string   `json:"pageAccessToken,omitempty"`
	User            string   `json:"user,omitempty"`
}

// Token returns the token adapters should send: the page token when the
// login exchange produced one, otherwise the user token.
func (c *Credential) Token() string {
	if c == nil {
		return ""
	}
	if c.PageAccessToken != "" {
		return c.PageAccessToken
	}
	return c.AccessToken
}

// Masked returns a copy that is safe to hand to the presentation layer
func (c Credential) Masked() Credential {
	c.AccessToken = mask(c.AccessToken)
	c.PageAccessToken = mask(c.PageAccessToken)
	return c
}

func mask(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}

// AuthUser is the dashboard account returned by the backend's /auth endpoints
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
