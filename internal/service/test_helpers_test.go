package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"debate_live/internal/models"
	"debate_live/internal/repository"
)

// --- in-memory repositories ---

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[uint]models.User
	nextID uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uint]models.User)}
}

func (r *fakeUserRepo) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) FindByID(id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &user, nil
}

func (r *fakeUserRepo) FindByUsername(username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeRoomRepo struct {
	mu      sync.Mutex
	rooms   map[uint]models.Room
	nextID  uint
	updates int
	deletes int
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[uint]models.Room)}
}

func (r *fakeRoomRepo) Create(room *models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	room.ID = r.nextID
	r.rooms[room.ID] = *room
	return nil
}

func (r *fakeRoomRepo) FindByID(id uint) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &room, nil
}

func (r *fakeRoomRepo) FindWithMessages(id uint) (*models.Room, error) {
	return r.FindByID(id)
}

func (r *fakeRoomRepo) Update(room *models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	r.rooms[room.ID] = *room
	return nil
}

func (r *fakeRoomRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	delete(r.rooms, id)
	return nil
}

func (r *fakeRoomRepo) FindAll() ([]models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rooms []models.Room
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (r *fakeRoomRepo) FindHot(limit int) ([]models.Room, error) {
	rooms, _ := r.FindAll()
	if len(rooms) > limit {
		rooms = rooms[:limit]
	}
	return rooms, nil
}

func (r *fakeRoomRepo) FindByDebater(userID uint) ([]models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rooms []models.Room
	for _, room := range r.rooms {
		if room.DebaterAID == userID || room.DebaterBID == userID {
			rooms = append(rooms, room)
		}
	}
	return rooms, nil
}

func (r *fakeRoomRepo) FindScheduledForDeletion() ([]models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rooms []models.Room
	for _, room := range r.rooms {
		if room.ScheduledForDeletion {
			rooms = append(rooms, room)
		}
	}
	return rooms, nil
}

type fakeDebateMessageRepo struct {
	mu       sync.Mutex
	messages []models.DebateMessage
	nextID   uint
	failNext bool
}

func newFakeDebateMessageRepo() *fakeDebateMessageRepo {
	return &fakeDebateMessageRepo{}
}

var errFakeStore = errors.New("store failure")

func (r *fakeDebateMessageRepo) Create(message *models.DebateMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		r.failNext = false
		return errFakeStore
	}
	r.nextID++
	message.ID = r.nextID
	r.messages = append(r.messages, *message)
	return nil
}

func (r *fakeDebateMessageRepo) Update(message *models.DebateMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == message.ID {
			r.messages[i] = *message
		}
	}
	return nil
}

func (r *fakeDebateMessageRepo) FindByRoomID(roomID uint) ([]models.DebateMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.DebateMessage
	for _, m := range r.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeDebateMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

type fakeChatMessageRepo struct {
	mu       sync.Mutex
	messages []models.ChatMessage
	nextID   uint
	failNext bool
}

func newFakeChatMessageRepo() *fakeChatMessageRepo {
	return &fakeChatMessageRepo{}
}

func (r *fakeChatMessageRepo) Create(message *models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		r.failNext = false
		return errFakeStore
	}
	r.nextID++
	message.ID = r.nextID
	message.CreatedAt = time.Now()
	r.messages = append(r.messages, *message)
	return nil
}

func (r *fakeChatMessageRepo) FindByRoomID(roomID uint) ([]models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ChatMessage
	for _, m := range r.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeChatMessageRepo) ExistsRecent(roomID, userID uint, message string, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-window)
	for _, m := range r.messages {
		if m.RoomID == roomID && m.UserID == userID && m.Message == message && m.CreatedAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeChatMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

type participantKey struct {
	userID uint
	roomID uint
}

type fakeParticipantRepo struct {
	mu           sync.Mutex
	participants map[participantKey]models.RoomParticipant
	nextID       uint
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{participants: make(map[participantKey]models.RoomParticipant)}
}

func (r *fakeParticipantRepo) Create(participant *models.RoomParticipant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	participant.ID = r.nextID
	r.participants[participantKey{participant.UserID, participant.RoomID}] = *participant
	return nil
}

func (r *fakeParticipantRepo) Update(participant *models.RoomParticipant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[participantKey{participant.UserID, participant.RoomID}] = *participant
	return nil
}

func (r *fakeParticipantRepo) FindByUserAndRoom(userID, roomID uint) (*models.RoomParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	participant, ok := r.participants[participantKey{userID, roomID}]
	if !ok {
		return nil, repository.ErrParticipantNotFound
	}
	return &participant, nil
}

func (r *fakeParticipantRepo) CountActiveByRoom(roomID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, p := range r.participants {
		if p.RoomID == roomID && p.Active {
			count++
		}
	}
	return count, nil
}

// --- recording broadcaster ---

type publishedEvent struct {
	topic   string
	payload interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []publishedEvent
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{}
}

func (b *recordingBroadcaster) Publish(topic string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{topic: topic, payload: payload})
}

func (b *recordingBroadcaster) byTopic(topic string) []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedEvent
	for _, ev := range b.events {
		if ev.topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

// --- fixture ---

type fixture struct {
	engine      *DebateEngine
	roomService *RoomService
	presence    *PresenceTracker
	rooms       *fakeRoomRepo
	users       *fakeUserRepo
	messages    *fakeDebateMessageRepo
	chats       *fakeChatMessageRepo
	parts       *fakeParticipantRepo
	timers      *TurnTimerManager
	negotiation *EndNegotiationTracker
	broadcaster *recordingBroadcaster
	locks       *RoomLocker
}

// newFixture 組出一套接上記憶體替身的完整服務
func newFixture(t *testing.T, turnTimeout, grace time.Duration) *fixture {
	t.Helper()

	f := &fixture{
		rooms:       newFakeRoomRepo(),
		users:       newFakeUserRepo(),
		messages:    newFakeDebateMessageRepo(),
		chats:       newFakeChatMessageRepo(),
		parts:       newFakeParticipantRepo(),
		negotiation: NewEndNegotiationTracker(),
		broadcaster: newRecordingBroadcaster(),
	}

	logger := zerolog.Nop()
	f.locks = NewRoomLocker()
	f.timers = NewTurnTimerManager(turnTimeout, logger)

	f.engine = NewDebateEngine(
		f.rooms, f.users, f.messages, f.chats,
		f.broadcaster, PassthroughSummarizer{}, f.timers, f.negotiation, f.locks,
		3*time.Second, logger,
	)
	f.roomService = NewRoomService(
		f.rooms, f.messages, f.chats,
		f.broadcaster, f.timers, f.negotiation, f.locks,
		grace, time.Minute, logger,
	)
	f.presence = NewPresenceTracker(f.rooms, f.parts, f.broadcaster, f.locks, logger)
	return f
}

func (f *fixture) addUser(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username}
	if err := f.users.Create(user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// addStartedRoom 建一個已開始的房間，A 先發言
func (f *fixture) addStartedRoom(t *testing.T, a, b *models.User) *models.Room {
	t.Helper()
	room := &models.Room{
		Title:             "T",
		Topic:             "X",
		Active:            true,
		DebaterAID:        a.ID,
		DebaterBID:        b.ID,
		DebaterAReady:     true,
		DebaterBReady:     true,
		Started:           true,
		CurrentTurnUserID: a.ID,
	}
	if err := f.rooms.Create(room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

func (f *fixture) addWaitingRoom(t *testing.T, a *models.User) *models.Room {
	t.Helper()
	room := &models.Room{Title: "T", Topic: "X", Active: true, DebaterAID: a.ID}
	if err := f.rooms.Create(room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

func (f *fixture) reload(t *testing.T, roomID uint) *models.Room {
	t.Helper()
	room, err := f.rooms.FindByID(roomID)
	if err != nil {
		t.Fatalf("reload room %d: %v", roomID, err)
	}
	return room
}

func (f *fixture) dispatch(t *testing.T, msgType, content string, sender *models.User, roomID uint) {
	t.Helper()
	err := f.engine.HandleMessage(&models.Message{
		Type:    msgType,
		Content: content,
		Sender:  sender.Username,
		RoomID:  roomID,
	})
	if err != nil {
		t.Fatalf("dispatch %s: %v", msgType, err)
	}
}

// waitUntil 輪詢直到條件成立或逾時
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
