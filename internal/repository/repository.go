package repository

import "debate_live/internal/storage"

type Repositories struct {
	User          UserRepository
	Room          RoomRepository
	DebateMessage DebateMessageRepository
	ChatMessage   ChatMessageRepository
	Participant   ParticipantRepository
}

func NewRepositories(db *storage.PostgresDB) *Repositories {
	return &Repositories{
		User:          NewUserRepository(db),
		Room:          NewRoomRepository(db),
		DebateMessage: NewDebateMessageRepository(db),
		ChatMessage:   NewChatMessageRepository(db),
		Participant:   NewParticipantRepository(db),
	}
}
