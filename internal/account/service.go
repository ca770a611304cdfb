package account

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/weiliu/h5client/internal/api"
	"github.com/weiliu/h5client/internal/logging"
	"github.com/weiliu/h5client/internal/models"
	"github.com/weiliu/h5client/internal/navigation"
	"github.com/weiliu/h5client/internal/session"
)

// ErrNoProfile indicates an operation needs a cached profile that is missing.
var ErrNoProfile = errors.New("no cached profile")

// Doer issues gateway requests. *api.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req api.Request, out any) api.Result
}

// Session is the subset of the session context the account flows write to.
type Session interface {
	Token() string
	Profile() *models.Profile
	SetToken(ctx context.Context, token string) error
	SetProfile(ctx context.Context, profile models.Profile) error
	Clear(ctx context.Context) error
}

// Credentials are the login details produced by a registration.
type Credentials struct {
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

// Service implements registration, login and profile management.
type Service struct {
	client  Doer
	session Session
	nav     navigation.Navigator
}

// NewService wires the account flows to the gateway and session.
func NewService(client Doer, sess Session, nav navigation.Navigator) *Service {
	if nav == nil {
		nav = navigation.Discard
	}
	return &Service{client: client, session: sess, nav: nav}
}

// Login authenticates, stores tokenHead+token as the bearer credential,
// caches the viewer's profile and navigates to the profile view.
func (s *Service) Login(ctx context.Context, form LoginForm) (models.Profile, error) {
	if err := form.Validate(); err != nil {
		return models.Profile{}, err
	}
	profile, err := s.signIn(ctx, form)
	if err != nil {
		return models.Profile{}, err
	}
	s.nav.Navigate(navigation.Profile)
	return profile, nil
}

func (s *Service) signIn(ctx context.Context, form LoginForm) (models.Profile, error) {
	var tokens models.LoginTokens
	res := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/admin/appLogin",
		Body:   map[string]string{"username": form.Username, "password": form.Password},
	}, &tokens)
	if err := res.Err(); err != nil {
		return models.Profile{}, err
	}
	if tokens.Token == "" {
		return models.Profile{}, api.Result{Kind: api.KindApplication, Message: api.MessageRequestFailed}.Err()
	}

	if err := s.session.SetToken(ctx, tokens.Bearer()); err != nil {
		return models.Profile{}, fmt.Errorf("store token: %w", err)
	}
	return s.RefreshProfile(ctx)
}

// Register creates an account, signs in with it and caches the profile.
func (s *Service) Register(ctx context.Context, form RegisterForm) (models.Profile, error) {
	if err := form.Validate(); err != nil {
		return models.Profile{}, err
	}

	body := map[string]string{
		"username": form.Account,
		"nickName": form.Nickname,
		"password": form.Password,
	}
	if form.Icon != "" {
		body["icon"] = form.Icon
	}
	res := s.client.Do(ctx, api.Request{Method: http.MethodPost, Path: "/admin/appRegister", Body: body}, nil)
	if err := res.Err(); err != nil {
		return models.Profile{}, err
	}

	profile, err := s.signIn(ctx, LoginForm{Username: form.Account, Password: form.Password})
	if err != nil {
		return models.Profile{}, err
	}
	s.nav.Navigate(navigation.RegisterSuccess)
	return profile, nil
}

// QuickRegister registers a generated account and returns its credentials so
// the viewer can note them down.
func (s *Service) QuickRegister(ctx context.Context) (Credentials, models.Profile, error) {
	creds, err := GenerateCredentials()
	if err != nil {
		return Credentials{}, models.Profile{}, err
	}
	profile, err := s.Register(ctx, RegisterForm{
		Account:         creds.Username,
		Nickname:        creds.Nickname,
		Password:        creds.Password,
		ConfirmPassword: creds.Password,
	})
	if err != nil {
		return creds, models.Profile{}, err
	}
	return creds, profile, nil
}

// RefreshProfile fetches the signed-in viewer's profile and caches it.
func (s *Service) RefreshProfile(ctx context.Context) (models.Profile, error) {
	if s.session.Token() == "" {
		return models.Profile{}, session.ErrNotLoggedIn
	}

	var profile models.Profile
	res := s.client.Do(ctx, api.Request{Method: http.MethodPost, Path: "/admin/currentInfo"}, &profile)
	if err := res.Err(); err != nil {
		return models.Profile{}, err
	}
	if err := s.session.SetProfile(ctx, profile); err != nil {
		return models.Profile{}, fmt.Errorf("cache profile: %w", err)
	}
	return profile, nil
}

// SaveProfile applies form to the cached profile, persists it remotely and
// updates the cache on success.
func (s *Service) SaveProfile(ctx context.Context, form ProfileForm) (models.Profile, error) {
	if err := form.Validate(); err != nil {
		return models.Profile{}, err
	}
	current := s.session.Profile()
	if current == nil {
		return models.Profile{}, ErrNoProfile
	}

	updated := *current
	if form.NickName != nil {
		updated.NickName = strings.TrimSpace(*form.NickName)
	}
	if form.Note != nil {
		updated.Note = *form.Note
	}
	if form.Icon != nil {
		updated.Icon = *form.Icon
	}
	if form.Email != nil {
		updated.Email = *form.Email
	}

	res := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/admin/update/" + strconv.FormatInt(updated.ID, 10),
		Body:   updated,
	}, nil)
	if err := res.Err(); err != nil {
		return models.Profile{}, err
	}
	if err := s.session.SetProfile(ctx, updated); err != nil {
		return models.Profile{}, fmt.Errorf("cache profile: %w", err)
	}
	return updated, nil
}

// UpdatePassword changes the signed-in viewer's password.
func (s *Service) UpdatePassword(ctx context.Context, form PasswordForm) error {
	if err := form.Validate(); err != nil {
		return err
	}
	current := s.session.Profile()
	if current == nil {
		return ErrNoProfile
	}

	res := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/admin/updatePassword",
		Body: map[string]string{
			"username":        current.Username,
			"oldPassword":     form.OldPassword,
			"newPassword":     form.NewPassword,
			"confirmPassword": form.ConfirmPassword,
		},
	}, nil)
	return res.Err()
}

// Logout ends the remote session. The local session is cleared whatever the
// backend answers, and the returned error only reports the remote outcome.
func (s *Service) Logout(ctx context.Context) error {
	var remote error
	if s.session.Token() != "" {
		remote = s.client.Do(ctx, api.Request{Method: http.MethodPost, Path: "/admin/logout"}, nil).Err()
	}
	if err := s.session.Clear(ctx); err != nil {
		logging.FromContext(ctx).Error("clear session", slog.String("error", err.Error()))
		return errors.Join(remote, err)
	}
	s.nav.Navigate(navigation.Login)
	return remote
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateCredentials produces a quick-registration account: user<6 digits>,
// 用户<6 digits> and an 8 character password that passes registration rules.
func GenerateCredentials() (Credentials, error) {
	userDigits, err := randomInt(1_000_000)
	if err != nil {
		return Credentials{}, err
	}
	nickDigits, err := randomInt(1_000_000)
	if err != nil {
		return Credentials{}, err
	}

	var password string
	for {
		password, err = randomString(passwordAlphabet, 8)
		if err != nil {
			return Credentials{}, err
		}
		if strings.ContainsAny(password, "0123456789") && strings.ContainsAny(password, "abcdefghijklmnopqrstuvwxyz") {
			break
		}
	}

	return Credentials{
		Username: fmt.Sprintf("user%06d", userDigits),
		Nickname: fmt.Sprintf("用户%06d", nickDigits),
		Password: password,
	}, nil
}

func randomInt(limit int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(limit))
	if err != nil {
		return 0, fmt.Errorf("generate random number: %w", err)
	}
	return n.Int64(), nil
}

func randomString(alphabet string, length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		idx, err := randomInt(int64(len(alphabet)))
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx])
	}
	return b.String(), nil
}
