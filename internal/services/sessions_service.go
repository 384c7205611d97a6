package services

import (
	"context"
	"slices"

	"github.com/rs/zerolog"

	"github.com/adergachev/taskkeep/internal/models"
	"github.com/adergachev/taskkeep/internal/storage"
)

type sessionServiceImpl struct {
	logger zerolog.Logger
	store  storage.Storage
}

func NewSessionService(
	logger zerolog.Logger,
	store storage.Storage,
) SessionService {
	return &sessionServiceImpl{
		logger: logger,
		store:  store,
	}
}

func (s *sessionServiceImpl) GetSessionByID(ctx context.Context, sessionID string) (*models.Session, error) {
	sessions, err := loadEntry[models.Session](ctx, s.store, storage.KeySessions)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("session_id", sessionID).
			Msg("failed to load sessions")
		return nil, err
	}

	i := slices.IndexFunc(sessions, func(sess models.Session) bool {
		return sess.ID == sessionID
	})
	if i < 0 {
		s.logger.Error().
			Str("session_id", sessionID).
			Msg("session not found")
		return nil, ErrSessionNotFound
	}

	s.logger.Debug().
		Str("session_id", sessionID).
		Msg("selected session by id")
	return &sessions[i], nil
}
