package store

import (
	"context"
	"encoding/json"
	"fmt"

	"social-dashboard/models"
)

// Storage keys, kept identical to the ones the browser client used
const (
	KeyFacebookUser    = "fbUser"
	KeyAccessToken     = "fbAccessToken"
	KeyPageID          = "fbPageId"
	KeyInstagramID     = "fbInstagramId"
	KeyPageAccessToken = "fbPageAccessToken"
	KeyTheme           = "theme"
	KeyAuthUser        = "authUser"
)

// ClearAll clears every platform credential and the signed-in user
const ClearAll = "all"

// SecretKeys are the keys worth sealing at rest
var SecretKeys = []string{KeyAccessToken, KeyPageAccessToken}

var facebookKeys = []string{KeyFacebookUser, KeyAccessToken, KeyPageID, KeyPageAccessToken}

// Values is a partial set of keys to write
type Values map[string]string

// Credentials reads and writes one session's credentials. It performs no
// validation.
type Credentials struct {
	kv        KV
	namespace string
}

// NewCredentials binds a credential store to a namespace
func NewCredentials(kv KV, namespace string) *Credentials {
	return &Credentials{kv: kv, namespace: namespace}
}

// Get returns the stored credential for a platform, or nil when nothing
// is stored for it
func (c *Credentials) Get(ctx context.Context, platform models.Platform) (*models.Credential, error) {
	var accountKey string
	switch platform {
	case models.PlatformFacebook:
		accountKey = KeyPageID
	case models.PlatformInstagram:
		accountKey = KeyInstagramID
	default:
		return nil, nil
	}

	token, err := c.get(ctx, KeyAccessToken)
	if err != nil {
		return nil, err
	}
	account, err := c.get(ctx, accountKey)
	if err != nil {
		return nil, err
	}
	if token == "" && account == "" {
		return nil, nil
	}

	pageToken, err := c.get(ctx, KeyPageAccessToken)
	if err != nil {
		return nil, err
	}
	user, err := c.get(ctx, KeyFacebookUser)
	if err != nil {
		return nil, err
	}

	return &models.Credential{
		Platform:        platform,
		AccessToken:     token,
		AccountID:       account,
		PageAccessToken: pageToken,
		User:            user,
	}, nil
}

// Save writes only the provided keys. Keys that are not present in values
// keep their stored value.
func (c *Credentials) Save(ctx context.Context, values Values) error {
	for key, value := range values {
		if err := c.kv.Set(ctx, c.namespace, key, value); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}
	}
	return nil
}

// SaveCredential writes the non-empty fields of a credential
func (c *Credentials) SaveCredential(ctx context.Context, cred models.Credential) error {
	values := Values{}
	set := func(key, value string) {
		if value != "" {
			values[key] = value
		}
	}

	set(KeyAccessToken, cred.AccessToken)
	set(KeyPageAccessToken, cred.PageAccessToken)
	set(KeyFacebookUser, cred.User)
	switch cred.Platform {
	case models.PlatformFacebook:
		set(KeyPageID, cred.AccountID)
	case models.PlatformInstagram:
		set(KeyInstagramID, cred.AccountID)
	default:
		return fmt.Errorf("credentials for %s cannot be stored", cred.Platform)
	}

	return c.Save(ctx, values)
}

// Clear removes the keys of one platform, or everything with ClearAll.
// The theme preference is kept.
func (c *Credentials) Clear(ctx context.Context, target string) error {
	var keys []string
	switch target {
	case string(models.PlatformFacebook):
		keys = facebookKeys
	case string(models.PlatformInstagram):
		keys = []string{KeyInstagramID}
	case ClearAll:
		keys = append(append([]string{}, facebookKeys...), KeyInstagramID, KeyAuthUser)
	default:
		return fmt.Errorf("unknown clear target %q", target)
	}
	return c.kv.Delete(ctx, c.namespace, keys...)
}

// Theme returns the stored theme preference
func (c *Credentials) Theme(ctx context.Context) (string, error) {
	return c.get(ctx, KeyTheme)
}

// SetTheme stores the theme preference
func (c *Credentials) SetTheme(ctx context.Context, theme string) error {
	return c.Save(ctx, Values{KeyTheme: theme})
}

// AuthUser returns the signed-in dashboard user, if any
func (c *Credentials) AuthUser(ctx context.Context) (*models.AuthUser, error) {
	raw, err := c.get(ctx, KeyAuthUser)
	if err != nil || raw == "" {
		return nil, err
	}

	var user models.AuthUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to decode auth user: %w", err)
	}
	return &user, nil
}

// SetAuthUser stores the signed-in dashboard user
func (c *Credentials) SetAuthUser(ctx context.Context, user models.AuthUser) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.Save(ctx, Values{KeyAuthUser: string(raw)})
}

func (c *Credentials) get(ctx context.Context, key string) (string, error) {
	value, _, err := c.kv.Get(ctx, c.namespace, key)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}
