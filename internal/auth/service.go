package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/store"
)

const (
	defaultAccessTTL = 60 * time.Minute
	roleClaim        = "role"
)

// Roles a user may hold.
const (
	RoleAdmin      = "admin"
	RoleAccountant = "accountant"
	RoleViewer     = "viewer"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleAccountant, RoleViewer:
		return true
	}
	return false
}

// UserStore is the subset of queries the auth service needs.
type UserStore interface {
	CountUsers(ctx context.Context) (int64, error)
	CreateUser(ctx context.Context, arg store.CreateUserParams) (store.User, error)
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
	GetUserByID(ctx context.Context, id int64) (store.User, error)
}

// Config configures the auth service.
type Config struct {
	Users          UserStore
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
	ClockSkew      time.Duration
}

// Service handles admin logins and session tokens.
type Service struct {
	users     UserStore
	secret    []byte
	accessTTL time.Duration
	issuer    string
	audience  string
	clockSkew time.Duration
	validator TokenValidator
	now       func() time.Time
}

// Claims is what a verified access token carries.
type Claims struct {
	UserID int64
	Role   string
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	User         store.User `json:"user"`
	AccessToken  string     `json:"access_token"`
	AccessExpiry time.Time  `json:"access_token_expires_at"`
}

// NewService constructs a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Users == nil {
		return nil, errors.New("auth: user store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "invoice-manager"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "invoice-manager-admin"
	}
	skew := cfg.ClockSkew
	if skew < 0 {
		skew = 0
	}
	return &Service{
		users:     cfg.Users,
		secret:    []byte(secret),
		accessTTL: ttl,
		issuer:    issuer,
		audience:  audience,
		clockSkew: skew,
		validator: TokenValidator{Issuer: issuer, Audience: audience, ClockSkew: skew, Algorithm: jwa.HS256},
		now:       time.Now,
	}, nil
}

// WithNow overrides the clock in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// HashPassword hashes a password with argon2id default parameters.
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, argon2id.DefaultParams)
}

// CreateUser stores a new user with a hashed password.
func (s *Service) CreateUser(ctx context.Context, username, email, password, role string) (store.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return store.User{}, common.Validation("username is required")
	}
	if len(password) < 8 {
		return store.User{}, common.Validation("password must be at least 8 characters")
	}
	if !ValidRole(role) {
		return store.User{}, common.Validation("unknown role")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}
	var emailPtr *string
	if e := strings.TrimSpace(strings.ToLower(email)); e != "" {
		emailPtr = &e
	}
	u, err := s.users.CreateUser(ctx, store.CreateUserParams{Username: username, Email: emailPtr, PasswordHash: hash, Role: role})
	if err != nil {
		if store.IsUniqueViolation(err, "") {
			return store.User{}, common.Conflict("USERNAME_TAKEN", "username is already registered")
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// EnsureAdmin creates an admin user when the users table is empty. created
// reports whether this call inserted it.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (created bool, err error) {
	n, err := s.users.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.CreateUser(ctx, username, "", password, RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	invalid := common.NewAppError("INVALID_CREDENTIALS", "invalid username or password", http.StatusUnauthorized, nil)
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, invalid
	}
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if store.IsNotFound(err) {
			return LoginResult{}, invalid
		}
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}
	ok, err := argon2id.ComparePasswordAndHash(password, u.PasswordHash)
	if err != nil || !ok {
		return LoginResult{}, invalid
	}
	token, expiry, err := s.signAccessToken(u)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign token: %w", err)
	}
	return LoginResult{User: u, AccessToken: token, AccessExpiry: expiry}, nil
}

// Me returns the user behind a verified token.
func (s *Service) Me(ctx context.Context, userID int64) (store.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if store.IsNotFound(err) {
			return store.User{}, common.NotFound("user")
		}
		return store.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// ParseAccessToken verifies signature and registered claims and returns the
// user id and role.
func (s *Service) ParseAccessToken(token string) (Claims, error) {
	invalid := func(err error) error {
		return common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Claims{}, common.Unauthorized("missing token")
	}
	algorithm, err := tokenAlgorithm(trimmed)
	if err != nil {
		return Claims{}, invalid(err)
	}
	if algorithm != s.validator.Algorithm {
		return Claims{}, invalid(fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, invalid(err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return Claims{}, invalid(err)
	}
	id, err := strconv.ParseInt(parsed.Subject(), 10, 64)
	if err != nil || id <= 0 {
		return Claims{}, invalid(errors.New("auth: subject is not a user id"))
	}
	raw, _ := parsed.Get(roleClaim)
	role, _ := raw.(string)
	if !ValidRole(role) {
		return Claims{}, invalid(errors.New("auth: token role missing"))
	}
	return Claims{UserID: id, Role: role}, nil
}

func (s *Service) signAccessToken(u store.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	token, err := jwt.NewBuilder().
		Subject(strconv.FormatInt(u.ID, 10)).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt).
		Claim(roleClaim, u.Role).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	msg, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return "", errors.New("auth: expected exactly one signature")
	}
	headers := sigs[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	if alg == "" || alg == jwa.NoSignature {
		return "", errors.New("auth: token missing algorithm")
	}
	return alg, nil
}
