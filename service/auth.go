package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/zlnvch/notes/auth"
	"github.com/zlnvch/notes/models"
	"github.com/zlnvch/notes/worker"
	"golang.org/x/oauth2"
)

// Provider-specific structs
type gitHubUser struct {
	Login string `json:"login"`
	ID    int    `json:"id"`
	Email string `json:"email"`
}

type googleUser struct {
	Email string `json:"email"`
	Sub   string `json:"sub"`
}

// OAuthAPI is the profile endpoint queried after a code exchange.
type OAuthAPI struct {
	URL     string
	Headers map[string]string
}

func defaultOAuthAPIs() map[string]OAuthAPI {
	return map[string]OAuthAPI{
		"github": {
			URL: "https://api.github.com/user",
			Headers: map[string]string{
				"X-GitHub-Api-Version": "2022-11-28",
			},
		},
		"google": {
			URL:     "https://openidconnect.googleapis.com/v1/userinfo",
			Headers: map[string]string{},
		},
	}
}

var oauthConfigsTemplate = map[string]*oauth2.Config{
	"github": {
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://github.com/login/oauth/authorize",
			TokenURL: "https://github.com/login/oauth/access_token",
		},
		Scopes: []string{"user:email"},
	},
	"google": {
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		Scopes: []string{"openid", "email"},
	},
}

func addOauthEndpointsAndScopes(oauthConfigs map[string]*oauth2.Config) (map[string]*oauth2.Config, error) {
	for provider := range oauthConfigs {
		template, ok := oauthConfigsTemplate[provider]
		if !ok {
			return nil, fmt.Errorf("unsupported provider: %s", provider)
		}
		oauthConfigs[provider].Endpoint = template.Endpoint
		oauthConfigs[provider].Scopes = template.Scopes
	}

	return oauthConfigs, nil
}

func (s *Service) HandleOauth(ctx context.Context, provider string, code string) (models.User, error) {
	conf, ok := s.OAuthConfigs[provider]
	if !ok {
		return models.User{}, fmt.Errorf("unsupported provider: %s", provider)
	}
	api, ok := s.OAuthAPIs[provider]
	if !ok {
		return models.User{}, fmt.Errorf("unsupported provider: %s", provider)
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		log.Println("Error:", err)
		return models.User{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api.URL, nil)
	if err != nil {
		return models.User{}, err
	}
	for k, v := range api.Headers {
		req.Header.Set(k, v)
	}

	resp, err := conf.Client(ctx, tok).Do(req)
	if err != nil {
		log.Println("Error:", err)
		return models.User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.User{}, fmt.Errorf("profile request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Println("Error:", err)
		return models.User{}, err
	}

	return parseUser(body, provider)
}

func parseUser(jsonData []byte, provider string) (models.User, error) {
	var u models.User
	u.Provider = provider

	switch provider {
	case "github":
		var gh gitHubUser
		if err := json.Unmarshal(jsonData, &gh); err != nil {
			return models.User{}, err
		}
		if gh.ID == 0 || gh.Login == "" {
			return models.User{}, errors.New("github profile missing id or login")
		}
		u.Username = gh.Login
		u.ProviderId = strconv.Itoa(gh.ID)
		u.Email = gh.Email
		if u.Email == "" {
			// Private email: fall back to the account's noreply address
			u.Email = fmt.Sprintf("%d+%s@users.noreply.github.com", gh.ID, gh.Login)
		}
	case "google":
		var g googleUser
		if err := json.Unmarshal(jsonData, &g); err != nil {
			return models.User{}, err
		}
		if g.Sub == "" || g.Email == "" {
			return models.User{}, errors.New("google profile missing sub or email")
		}
		u.Username = g.Email
		u.ProviderId = g.Sub
		u.Email = g.Email
	default:
		return models.User{}, fmt.Errorf("unsupported provider: %s", provider)
	}

	u.Id = UserIdFor(u.Provider, u.ProviderId)
	return u, nil
}

// UserIdFor derives a stable user id from the provider identity, so signing
// in twice with the same account always yields the same id.
func UserIdFor(provider string, providerId string) string {
	return uuid.NewV5(uuid.NamespaceURL, "notes:user:"+strings.ToLower(provider)+"#"+providerId).String()
}

// AuthenticateToken proves identity only. It does not touch the store.
func (s *Service) AuthenticateToken(token string) (auth.Claims, error) {
	if len(token) == 0 {
		return auth.Claims{}, errors.New("token not provided")
	}

	return s.Tokens.Verify(token)
}

func (s *Service) Login(ctx context.Context, provider, code string) (models.User, string, error) {
	user, err := s.HandleOauth(ctx, provider, code)
	if err != nil {
		return models.User{}, "", fmt.Errorf("oauth failed: %w", err)
	}

	createdUser, err := s.Store.CreateUser(ctx, user)
	if err != nil {
		return models.User{}, "", fmt.Errorf("create user failed: %w", err)
	}

	token, err := s.Tokens.Issue(auth.Claims{UserId: createdUser.Id, Email: createdUser.Email})
	if err != nil {
		return models.User{}, "", fmt.Errorf("token generation failed: %w", err)
	}

	return createdUser, token, nil
}

func (s *Service) GetUser(ctx context.Context, userId string) (models.User, error) {
	return s.Store.GetUser(ctx, userId)
}

type UserDeletedMessage struct {
	UserId string
}

func (s *Service) DeleteUser(ctx context.Context, userId string) error {
	if err := s.Store.DeleteUser(ctx, userId); err != nil {
		return err
	}

	// Async side-effects - return to caller as soon as the store operation is done
	go func() {
		userDeletedMsg := UserDeletedMessage{UserId: userId}
		if msgBytes, err := json.Marshal(userDeletedMsg); err == nil {
			if err := s.Cache.Publish(context.Background(), UserDeletedChannel, msgBytes); err != nil {
				log.Printf("Failed to publish user-deleted for %s: %v", userId, err)
			}
		}

		msg := worker.DeleteUserNotesMessage{UserId: userId}
		if msgBytes, err := json.Marshal(msg); err == nil {
			if err := s.MQ.Send(context.Background(), string(msgBytes)); err != nil {
				log.Printf("Failed to enqueue note cleanup for %s: %v", userId, err)
			}
		}
	}()

	return nil
}
