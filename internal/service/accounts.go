package service

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/social"
	"github.com/maheshrc27/postflow/pkg/utils"
)

// accountKey is the registry id of a stored account.
func accountKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// toSocial decrypts a stored account into its registry form.
func toSocial(sa *models.SocialAccount, key []byte) (social.SocialAccount, error) {
	platform, err := social.ParsePlatform(sa.Platform)
	if err != nil {
		return social.SocialAccount{}, err
	}
	access, err := utils.Decrypt(sa.AccessToken, key)
	if err != nil {
		return social.SocialAccount{}, fmt.Errorf("decrypt access token of account %d: %w", sa.ID, err)
	}
	refresh, err := utils.Decrypt(sa.RefreshToken, key)
	if err != nil {
		return social.SocialAccount{}, fmt.Errorf("decrypt refresh token of account %d: %w", sa.ID, err)
	}

	var metadata social.AccountMetadata
	if len(sa.Metadata) > 0 {
		if err := json.Unmarshal(sa.Metadata, &metadata); err != nil {
			return social.SocialAccount{}, fmt.Errorf("decode metadata of account %d: %w", sa.ID, err)
		}
	}
	for i, page := range metadata.Pages {
		if metadata.Pages[i].AccessToken, err = utils.Decrypt(page.AccessToken, key); err != nil {
			return social.SocialAccount{}, fmt.Errorf("decrypt page token of account %d: %w", sa.ID, err)
		}
	}

	return social.SocialAccount{
		ID:           accountKey(sa.ID),
		UserID:       sa.UserID,
		Platform:     platform,
		PlatformID:   sa.AccountID,
		Username:     sa.Username,
		DisplayName:  sa.AccountName,
		AvatarURL:    sa.ProfilePicture,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    sa.TokenExpiresAt,
		IsConnected:  sa.IsConnected,
		Scopes:       sa.Scopes,
		Metadata:     metadata,
	}, nil
}

// fromSocial encrypts a registry account into its stored form. Page tokens
// inside the metadata are encrypted as well.
func fromSocial(acc social.SocialAccount, key []byte) (*models.SocialAccount, error) {
	access, err := utils.Encrypt(acc.AccessToken, key)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.Encrypt(acc.RefreshToken, key)
	if err != nil {
		return nil, err
	}

	metadata := acc.Metadata
	metadata.Pages = make([]social.FacebookPage, len(acc.Metadata.Pages))
	for i, page := range acc.Metadata.Pages {
		if page.AccessToken, err = utils.Encrypt(page.AccessToken, key); err != nil {
			return nil, err
		}
		metadata.Pages[i] = page
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}

	sa := &models.SocialAccount{
		UserID:         acc.UserID,
		Platform:       string(acc.Platform),
		AccountID:      acc.PlatformID,
		AccountName:    acc.DisplayName,
		Username:       acc.Username,
		ProfilePicture: acc.AvatarURL,
		AccessToken:    access,
		RefreshToken:   refresh,
		TokenExpiresAt: acc.ExpiresAt,
		Scopes:         acc.Scopes,
		Metadata:       raw,
		IsConnected:    acc.IsConnected,
	}
	if acc.ID != "" {
		if sa.ID, err = strconv.ParseInt(acc.ID, 10, 64); err != nil {
			return nil, fmt.Errorf("account id %q: %w", acc.ID, err)
		}
	}
	return sa, nil
}
