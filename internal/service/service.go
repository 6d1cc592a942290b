package service

import (
	"github.com/rs/zerolog"

	"debate_live/internal/repository"
	"debate_live/pkg/config"
)

type Services struct {
	User             *UserService
	Room             *RoomService
	Debate           *DebateEngine
	Presence         *PresenceTracker
	WebSocketManager *WebSocketManager
}

func NewServices(repos *repository.Repositories, cfg *config.Config, logger zerolog.Logger) *Services {
	wsManager := NewWebSocketManager(logger)
	locks := NewRoomLocker()
	timers := NewTurnTimerManager(cfg.Debate.TurnTimeout, logger)
	negotiation := NewEndNegotiationTracker()

	debateEngine := NewDebateEngine(
		repos.Room, repos.User, repos.DebateMessage, repos.ChatMessage,
		wsManager, PassthroughSummarizer{}, timers, negotiation, locks,
		cfg.Debate.DuplicateWindow, logger,
	)

	roomService := NewRoomService(
		repos.Room, repos.DebateMessage, repos.ChatMessage,
		wsManager, timers, negotiation, locks,
		cfg.Debate.DeletionGrace, cfg.Debate.SweepInterval, logger,
	)

	presence := NewPresenceTracker(repos.Room, repos.Participant, wsManager, locks, logger)

	return &Services{
		User:             NewUserService(repos.User),
		Room:             roomService,
		Debate:           debateEngine,
		Presence:         presence,
		WebSocketManager: wsManager,
	}
}
