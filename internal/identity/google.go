package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrInvalidAssertion is returned when an identity assertion cannot be
// verified by the upstream provider
var ErrInvalidAssertion = errors.New("invalid identity assertion")

// Profile is the verified identity returned by an upstream provider
type Profile struct {
	SubjectID     string
	Email         string
	EmailVerified bool
	DisplayName   string
	AvatarURL     string
}

// Verifier exchanges an opaque identity assertion (e.g. a Google ID
// token) for a verified profile
type Verifier interface {
	Verify(ctx context.Context, assertion string) (*Profile, error)
}

const googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// GoogleVerifier validates Google ID tokens against the tokeninfo
// endpoint and checks the audience matches our client id
type GoogleVerifier struct {
	clientID string
	client   *http.Client
}

// NewGoogleVerifier creates a new Google ID token verifier
func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{
		clientID: clientID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenInfoResponse struct {
	Sub           string `json:"sub"`
	Aud           string `json:"aud"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (v *GoogleVerifier) Verify(ctx context.Context, assertion string) (*Profile, error) {
	if assertion == "" {
		return nil, ErrInvalidAssertion
	}
	if v.clientID == "" {
		return nil, errors.New("google login is not configured (missing client id)")
	}

	reqURL := fmt.Sprintf("%s?id_token=%s", googleTokenInfoURL, url.QueryEscape(assertion))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach identity provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrInvalidAssertion
	}

	var info tokenInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, ErrInvalidAssertion
	}

	if info.Aud != v.clientID || info.Sub == "" {
		return nil, ErrInvalidAssertion
	}

	return &Profile{
		SubjectID:     info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified == "true",
		DisplayName:   info.Name,
		AvatarURL:     info.Picture,
	}, nil
}
