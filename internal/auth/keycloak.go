package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Nerzal/gocloak/v13"
)

const defaultProviderTimeout = 10 * time.Second

// KeycloakIntrospector checks tokens against a Keycloak realm's introspection endpoint
// using confidential client credentials.
type KeycloakIntrospector struct {
	client       *gocloak.GoCloak
	endpoint     string
	clientID     string
	clientSecret string
}

func NewKeycloakIntrospector(baseURL, realm, clientID, clientSecret string) *KeycloakIntrospector {
	baseURL = strings.TrimRight(baseURL, "/")
	client := gocloak.NewClient(baseURL)
	client.RestyClient().SetTimeout(defaultProviderTimeout)
	return &KeycloakIntrospector{
		client:       client,
		endpoint:     baseURL + "/realms/" + realm + "/protocol/openid-connect/token/introspect",
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// introspectionResponse extends gocloak's result with the identity claims Keycloak
// returns alongside it.
type introspectionResponse struct {
	gocloak.IntroSpectTokenResult
	Subject  string `json:"sub"`
	Username string `json:"username"`
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
}

// Introspect asks Keycloak whether token is active. Transport failures and error
// responses from Keycloak are reported as KindProvider.
func (k *KeycloakIntrospector) Introspect(ctx context.Context, token string) (*TokenInfo, error) {
	var result introspectionResponse
	resp, err := k.client.GetRequestWithBasicAuth(ctx, k.clientID, k.clientSecret).
		SetFormData(map[string]string{
			"token_type_hint": "requesting_party_token",
			"token":           token,
		}).
		SetResult(&result).
		Post(k.endpoint)
	if err != nil {
		return nil, providerError(err)
	}
	if resp.IsError() {
		apiErr := &gocloak.APIError{Code: resp.StatusCode(), Message: resp.Status()}
		if body, ok := resp.Error().(*gocloak.HTTPErrorResponse); ok && body.NotEmpty() {
			apiErr.Message = fmt.Sprintf("%s: %s", resp.Status(), body)
		}
		return nil, &Error{Kind: KindProvider, Detail: apiErr.Error(), Err: apiErr}
	}
	if result.Active == nil {
		return nil, unexpectedError(errors.New("introspection response has no active field"))
	}

	info := &TokenInfo{
		Active:   *result.Active,
		Subject:  result.Subject,
		Username: result.Username,
		ClientID: result.ClientID,
		Scope:    result.Scope,
	}
	if result.Jti != nil {
		info.TokenID = *result.Jti
	}
	if result.Type != nil {
		info.TokenType = *result.Type
	}
	if result.Exp != nil {
		info.ExpiresAt = time.Unix(int64(*result.Exp), 0).UTC()
	}
	if result.Iat != nil {
		info.IssuedAt = time.Unix(int64(*result.Iat), 0).UTC()
	}
	return info, nil
}
