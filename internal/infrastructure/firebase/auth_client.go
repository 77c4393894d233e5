package firebase

import (
	"context"
	"fmt"
	"sync"

	"firebase.google.com/go/v4/auth"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/service"
)

// TokenVerifier is the part of the Firebase auth client used here.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type FirebaseAuthClient struct {
	client TokenVerifier
}

func NewFirebaseAuthClient(client TokenVerifier) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", err
	}

	return result.UID, nil
}

// SessionIdentity is the signed-in user of this engine process. The session
// token is verified once at sign in; later requests are checked against the
// same uid.
type SessionIdentity struct {
	auth *FirebaseAuthClient

	mu  sync.RWMutex
	uid string
}

var _ service.Identity = (*SessionIdentity)(nil)

func NewSessionIdentity(authClient *FirebaseAuthClient) *SessionIdentity {
	return &SessionIdentity{auth: authClient}
}

func (s *SessionIdentity) SignIn(ctx context.Context, idToken string) (string, error) {
	if idToken == "" {
		return "", fmt.Errorf("session token is empty")
	}
	uid, err := s.auth.VerifyToken(ctx, idToken)
	if err != nil {
		return "", fmt.Errorf("failed to verify session token: %v", err)
	}

	s.mu.Lock()
	s.uid = uid
	s.mu.Unlock()
	return uid, nil
}

// Authorize verifies a caller's token and checks it belongs to the session user.
func (s *SessionIdentity) Authorize(ctx context.Context, idToken string) (string, error) {
	uid, err := s.auth.VerifyToken(ctx, idToken)
	if err != nil {
		return "", err
	}
	if current := s.CurrentUserID(); current == "" || uid != current {
		return "", fmt.Errorf("token belongs to %s, not the session user", uid)
	}
	return uid, nil
}

func (s *SessionIdentity) SignOut() {
	s.mu.Lock()
	s.uid = ""
	s.mu.Unlock()
}

func (s *SessionIdentity) CurrentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uid
}
