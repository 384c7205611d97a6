package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adergachev/taskkeep/internal/models"
	"github.com/adergachev/taskkeep/internal/storage"
)

type authServiceImpl struct {
	logger             zerolog.Logger
	store              storage.Storage
	jwtIssuer          string
	jwtSigningKey      []byte
	jwtAccessTokenTTL  time.Duration
	jwtRefreshTokenTTL time.Duration

	// Guards the read-modify-write cycles on the users and
	// sessions entries.
	mu sync.Mutex
}

func NewAuthService(
	logger zerolog.Logger,
	store storage.Storage,
	jwtIssuer string,
	jwtSigningKey []byte,
	jwtAccessTokenTTL time.Duration,
	jwtRefreshTokenTTL time.Duration,
) AuthService {
	return &authServiceImpl{
		logger:             logger,
		store:              store,
		jwtIssuer:          jwtIssuer,
		jwtSigningKey:      jwtSigningKey,
		jwtAccessTokenTTL:  jwtAccessTokenTTL,
		jwtRefreshTokenTTL: jwtRefreshTokenTTL,
	}
}

func (s *authServiceImpl) Login(ctx context.Context, params LoginParams) (*LoginResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := loadEntry[models.User](ctx, s.store, storage.KeyUsers)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to load users")
		return nil, err
	}

	i := slices.IndexFunc(users, func(u models.User) bool {
		return u.Email == params.Email
	})
	if i < 0 {
		s.logger.Error().
			Str("email", params.Email).
			Msg("user not found")
		return nil, ErrUserNotFound
	}
	user := users[i]

	match, err := argon2id.ComparePasswordAndHash(params.Password, user.Password)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to compare password")
		return nil, err
	} else if !match {
		s.logger.Error().Msg("passwords do not match")
		return nil, ErrUserPasswordMismatch
	}

	sessions, err := loadEntry[models.Session](ctx, s.store, storage.KeySessions)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to load sessions")
		return nil, err
	}

	// Logging in invalidates every previous session of the user.
	kept := slices.DeleteFunc(slices.Clone(sessions), func(sess models.Session) bool {
		return sess.UserID == user.ID
	})
	s.logger.Debug().
		Str("user_id", user.ID).
		Int("dropped", len(sessions)-len(kept)).
		Msg("dropped previous sessions")

	session, err := s.newSession(user.ID, params.Fingerprint)
	if err != nil {
		return nil, err
	}
	kept = append(kept, *session)

	err = saveEntry(ctx, s.store, storage.KeySessions, kept)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to save sessions")
		return nil, err
	}

	accessToken, accessTokenExpiresAt, err := s.generateAccessToken(session.ID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate access token")
		return nil, err
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("session_id", session.ID).
		Msg("logged in")
	return &LoginResult{
		UserID:                user.ID,
		SessionID:             session.ID,
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessTokenExpiresAt,
		RefreshToken:          session.RefreshToken,
		RefreshTokenExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *authServiceImpl) Refresh(ctx context.Context, params RefreshParams) (*LoginResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := loadEntry[models.Session](ctx, s.store, storage.KeySessions)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to load sessions")
		return nil, err
	}

	i := slices.IndexFunc(sessions, func(sess models.Session) bool {
		return sess.RefreshToken == params.RefreshToken &&
			sess.Fingerprint == params.Fingerprint
	})
	if i < 0 {
		s.logger.Error().Msg("session not found")
		return nil, ErrSessionNotFound
	}
	session := sessions[i]

	if session.ExpiresAt.Before(time.Now()) {
		s.logger.Error().
			Str("session_id", session.ID).
			Time("expires_at", session.ExpiresAt).
			Msg("session expired")
		return nil, ErrSessionExpired
	}

	refreshToken, err := s.generateRefreshToken()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate refresh token")
		return nil, err
	}

	now := time.Now()
	session.RefreshToken = refreshToken
	session.ExpiresAt = now.Add(s.jwtRefreshTokenTTL)
	session.UpdatedAt = now
	sessions[i] = session

	err = saveEntry(ctx, s.store, storage.KeySessions, sessions)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to save sessions")
		return nil, err
	}

	accessToken, accessTokenExpiresAt, err := s.generateAccessToken(session.ID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate access token")
		return nil, err
	}
	s.logger.Info().
		Str("user_id", session.UserID).
		Str("session_id", session.ID).
		Msg("refreshed session")

	return &LoginResult{
		UserID:                session.UserID,
		SessionID:             session.ID,
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessTokenExpiresAt,
		RefreshToken:          session.RefreshToken,
		RefreshTokenExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *authServiceImpl) Register(ctx context.Context, params LoginParams) (*LoginResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := loadEntry[models.User](ctx, s.store, storage.KeyUsers)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to load users")
		return nil, err
	}

	exists := slices.ContainsFunc(users, func(u models.User) bool {
		return u.Email == params.Email
	})
	if exists {
		s.logger.Error().
			Str("email", params.Email).
			Msg("user with this email already exists")
		return nil, ErrUserAlreadyExists
	}

	now := time.Now()
	user := models.User{
		Email:     params.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	userUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate user uuid")
		return nil, err
	}
	user.ID = userUUID.String()

	passwordHash, err := argon2id.CreateHash(params.Password, argon2id.DefaultParams)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to hash password")
		return nil, err
	}
	user.Password = passwordHash

	err = saveEntry(ctx, s.store, storage.KeyUsers, append(users, user))
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to save users")
		return nil, err
	}
	s.logger.Debug().
		Str("user_id", user.ID).
		Str("email", user.Email).
		Msg("stored user")

	sessions, err := loadEntry[models.Session](ctx, s.store, storage.KeySessions)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to load sessions")
		return nil, err
	}

	session, err := s.newSession(user.ID, params.Fingerprint)
	if err != nil {
		return nil, err
	}

	err = saveEntry(ctx, s.store, storage.KeySessions, append(sessions, *session))
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to save sessions")
		return nil, err
	}

	accessToken, accessTokenExpiresAt, err := s.generateAccessToken(session.ID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate access token")
		return nil, err
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("session_id", session.ID).
		Msg("registered user")
	return &LoginResult{
		UserID:                user.ID,
		SessionID:             session.ID,
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessTokenExpiresAt,
		RefreshToken:          session.RefreshToken,
		RefreshTokenExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *authServiceImpl) Logout(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := loadEntry[models.Session](ctx, s.store, storage.KeySessions)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to load sessions")
		return err
	}

	kept := slices.DeleteFunc(sessions, func(sess models.Session) bool {
		return sess.UserID == userID
	})

	err = saveEntry(ctx, s.store, storage.KeySessions, kept)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to save sessions")
		return err
	}

	s.logger.Info().
		Str("user_id", userID).
		Msg("logged out")
	return nil
}

func (s *authServiceImpl) ParseJWTToken(token string) (*jwt.RegisteredClaims, error) {
	t, err := jwt.ParseWithClaims(
		token,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.jwtSigningKey, nil
		},
		jwt.WithIssuer(s.jwtIssuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("token is expired: %w", err)
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := t.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, errors.New("unexpected token claims")
	}
	return claims, nil
}

func (s *authServiceImpl) newSession(userID, fingerprint string) (*models.Session, error) {
	now := time.Now()
	session := models.Session{
		UserID:      userID,
		Fingerprint: fingerprint,
		ExpiresAt:   now.Add(s.jwtRefreshTokenTTL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	sessionUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate session uuid")
		return nil, err
	}
	session.ID = sessionUUID.String()

	refreshToken, err := s.generateRefreshToken()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate refresh token")
		return nil, err
	}
	session.RefreshToken = refreshToken

	return &session, nil
}

func (s *authServiceImpl) generateRefreshToken() (string, error) {
	const length = 32
	bytes := make([]byte, length)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

func (s *authServiceImpl) generateAccessToken(sessionID string) (string, time.Time, error) {
	tokenUUID, err := uuid.NewRandom()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate id: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(s.jwtAccessTokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        tokenUUID.String(),
		Issuer:    s.jwtIssuer,
		Subject:   sessionID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		NotBefore: jwt.NewNumericDate(now),
		IssuedAt:  jwt.NewNumericDate(now),
	})

	signed, err := token.SignedString(s.jwtSigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// loadEntry decodes a JSON array entry; an absent key is an empty
// slice.
func loadEntry[T any](ctx context.Context, store storage.Storage, key string) ([]T, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []T{}, nil
	}

	var items []T
	err = json.Unmarshal([]byte(raw), &items)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return items, nil
}

func saveEntry[T any](ctx context.Context, store storage.Storage, key string, items []T) error {
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return store.Set(ctx, key, string(b))
}
