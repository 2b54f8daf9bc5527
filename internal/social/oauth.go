package social

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ExchangeOAuth2 trades an authorization code for a token through cfg, using
// the requester's HTTP client.
func ExchangeOAuth2(ctx context.Context, r *Requester, cfg *oauth2.Config, code string, opts ...oauth2.AuthCodeOption) (*APIResponse[TokenResponse], error) {
	if code == "" {
		return Fail[TokenResponse](CodeTokenExchange, "authorization code is empty"), nil
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.Client())
	tok, err := cfg.Exchange(ctx, code, opts...)
	if err != nil {
		return tokenFailure(r.Platform(), err, false)
	}
	return OK(FromOAuth2(tok)), nil
}

// RefreshOAuth2 obtains a fresh access token for refreshToken.
func RefreshOAuth2(ctx context.Context, r *Requester, cfg *oauth2.Config, refreshToken string) (*APIResponse[TokenResponse], error) {
	if refreshToken == "" {
		return nil, NewAuthenticationError(r.Platform(), "no refresh token, reconnect the account")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.Client())
	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return tokenFailure(r.Platform(), err, true)
	}
	return OK(FromOAuth2(tok)), nil
}

func FromOAuth2(tok *oauth2.Token) TokenResponse {
	t := TokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		t.ExpiresAt = &expiry
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		t.Scopes = strings.Fields(strings.ReplaceAll(scope, ",", " "))
	}
	return t
}

// tokenFailure classifies token endpoint errors. A rejected refresh means the
// user has to link the account again.
func tokenFailure(platform Platform, err error, refresh bool) (*APIResponse[TokenResponse], error) {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return Fail[TokenResponse](CodeTokenExchange, err.Error()), nil
	}

	msg := re.ErrorDescription
	if msg == "" {
		msg = re.ErrorCode
	}
	if msg == "" {
		msg = ErrorMessage(re.Body)
	}
	if msg == "" {
		msg = http.StatusText(re.Response.StatusCode)
	}

	switch status := re.Response.StatusCode; {
	case status == http.StatusTooManyRequests:
		return nil, NewRateLimitError(platform, RetryAfter(re.Response.Header, time.Now()), msg)
	case status == http.StatusUnauthorized, refresh && re.ErrorCode == "invalid_grant":
		return nil, NewAuthenticationError(platform, msg)
	}
	return Fail[TokenResponse](CodeTokenExchange, msg), nil
}
