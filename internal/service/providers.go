package service

import (
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/social"
	"github.com/maheshrc27/postflow/internal/social/facebook"
	"github.com/maheshrc27/postflow/internal/social/instagram"
	"github.com/maheshrc27/postflow/internal/social/linkedin"
	"github.com/maheshrc27/postflow/internal/social/tiktok"
	"github.com/maheshrc27/postflow/internal/social/twitter"
	"github.com/maheshrc27/postflow/internal/social/youtube"
)

// NewProviders builds a provider for every platform with client credentials
// configured. opts apply to the requester of each one.
func NewProviders(cfg *config.Config, opts ...social.RequesterOption) []social.Provider {
	var providers []social.Provider
	if cfg.Twitter.Enabled() {
		providers = append(providers, twitter.New(twitter.Config{
			ClientID:     cfg.Twitter.ClientID,
			ClientSecret: cfg.Twitter.ClientSecret,
			RedirectURI:  cfg.Twitter.RedirectURI,
		}, opts...))
	}
	if cfg.Facebook.Enabled() {
		providers = append(providers, facebook.New(facebook.Config{
			AppID:       cfg.Facebook.ClientID,
			AppSecret:   cfg.Facebook.ClientSecret,
			RedirectURI: cfg.Facebook.RedirectURI,
		}, opts...))
	}
	if cfg.Instagram.Enabled() {
		providers = append(providers, instagram.New(instagram.Config{
			AppID:       cfg.Instagram.ClientID,
			AppSecret:   cfg.Instagram.ClientSecret,
			RedirectURI: cfg.Instagram.RedirectURI,
		}, opts...))
	}
	if cfg.LinkedIn.Enabled() {
		providers = append(providers, linkedin.New(linkedin.Config{
			ClientID:     cfg.LinkedIn.ClientID,
			ClientSecret: cfg.LinkedIn.ClientSecret,
			RedirectURI:  cfg.LinkedIn.RedirectURI,
		}, opts...))
	}
	if cfg.Tiktok.Enabled() {
		providers = append(providers, tiktok.New(tiktok.Config{
			ClientKey:    cfg.Tiktok.ClientID,
			ClientSecret: cfg.Tiktok.ClientSecret,
			RedirectURI:  cfg.Tiktok.RedirectURI,
		}, opts...))
	}
	if cfg.Google.Enabled() {
		providers = append(providers, youtube.New(youtube.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURI:  cfg.Google.RedirectURI,
		}, opts...))
	}
	return providers
}
