package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	authorizer "github.com/localnerve/authorizer-go"
	"github.com/localnerve/vaxtrack/internal/utils"
	"go.uber.org/zap"
)

// AuthorizerAuthenticator validates the Authorizer session cookie.
// The client is created on first use, after the service answers a ping.
type AuthorizerAuthenticator struct {
	url         string
	clientID    string
	redirectURL string
	log         *zap.Logger

	mu     sync.Mutex
	client *authorizer.AuthorizerClient
}

// NewAuthorizerAuthenticator configures, but does not contact, the Authorizer service
func NewAuthorizerAuthenticator(url, clientID, redirectURL string, log *zap.Logger) *AuthorizerAuthenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthorizerAuthenticator{
		url:         url,
		clientID:    clientID,
		redirectURL: redirectURL,
		log:         log,
	}
}

// authorizerUser is the subset of the Authorizer user we read
type authorizerUser struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

func (a *AuthorizerAuthenticator) getClient() (*authorizer.AuthorizerClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	if err := utils.PingAuthorizer(a.url); err != nil {
		return nil, fmt.Errorf("authorizer ping failed: %w", err)
	}

	a.log.Info("initializing authorizer client",
		zap.String("authorizer_url", a.url),
		zap.String("client_id", a.clientID),
		zap.String("redirect_url", a.redirectURL))

	client, err := authorizer.NewAuthorizerClient(a.clientID, a.url, a.redirectURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorizer client: %w", err)
	}
	a.client = client
	return client, nil
}

// Authenticate validates the session cookie value with Authorizer
func (a *AuthorizerAuthenticator) Authenticate(_ context.Context, token string) (*Session, error) {
	client, err := a.getClient()
	if err != nil {
		return nil, err
	}

	res, err := client.ValidateSession(&authorizer.ValidateSessionInput{
		Cookie: token,
	})
	if err != nil {
		return nil, fmt.Errorf("session validation failed: %w", err)
	}
	if res == nil || !res.IsValid {
		return nil, fmt.Errorf("session is not valid")
	}

	// Decode through JSON so optional provider fields map onto plain strings.
	raw, err := json.Marshal(res.User)
	if err != nil {
		return nil, fmt.Errorf("invalid user data format: %w", err)
	}
	var user authorizerUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("invalid user data format: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("user ID not found")
	}

	name := user.GivenName
	if user.FamilyName != "" {
		if name != "" {
			name += " "
		}
		name += user.FamilyName
	}

	return NewSession(token, Identity{ID: user.ID, Email: user.Email, Name: name}), nil
}
