package services

import (
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashank8536/Campus-MarketPlace/config"
	"github.com/shashank8536/Campus-MarketPlace/errors"
	"github.com/shashank8536/Campus-MarketPlace/models"
)

// fakeStore backs all four repositories in memory, with the same uniqueness
// and read-marking behavior the postgres layer provides.
type fakeStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*models.User
	listings      map[uuid.UUID]*models.Listing
	conversations map[uuid.UUID]*models.Conversation
	messages      map[uuid.UUID][]*models.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         make(map[uuid.UUID]*models.User),
		listings:      make(map[uuid.UUID]*models.Listing),
		conversations: make(map[uuid.UUID]*models.Conversation),
		messages:      make(map[uuid.UUID][]*models.Message),
	}
}

func (f *fakeStore) addUser(name string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := &models.User{Model: models.Model{ID: uuid.New()}, Name: name, Email: name + "@campus.edu"}
	f.users[user.ID] = user
	return user
}

func (f *fakeStore) addListing(title string, ownerID uuid.UUID) *models.Listing {
	f.mu.Lock()
	defer f.mu.Unlock()
	listing := &models.Listing{Model: models.Model{ID: uuid.New()}, Title: title, OwnerID: ownerID}
	f.listings[listing.ID] = listing
	return listing
}

func (f *fakeStore) FindUserByID(id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeStore) FindUserByEmail(email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) UpdateDeviceToken(userID uuid.UUID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.DeviceToken = token
	return nil
}

func (f *fakeStore) AddToBlackList(blacklist *models.Blacklist) error { return nil }
func (f *fakeStore) IsTokenInBlacklist(token string) bool             { return false }

func (f *fakeStore) FindListingByID(id uuid.UUID) (*models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	listing, ok := f.listings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return listing, nil
}

func (f *fakeStore) FindOrCreateConversation(userA, userB, listingID uuid.UUID) (*models.Conversation, bool, error) {
	first, second, err := models.NormalizeParticipants(userA, userB)
	if err != nil {
		return nil, false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conv := range f.conversations {
		if conv.ParticipantOneID == first && conv.ParticipantTwoID == second && conv.ListingID == listingID {
			return conv, false, nil
		}
	}

	conv := &models.Conversation{
		Model:            models.Model{ID: uuid.New(), CreatedAt: time.Now()},
		ParticipantOneID: first,
		ParticipantTwoID: second,
		ParticipantOne:   *f.users[first],
		ParticipantTwo:   *f.users[second],
		ListingID:        listingID,
		LastMessageAt:    time.Now(),
	}
	if listing, ok := f.listings[listingID]; ok {
		conv.Listing = *listing
	}
	f.conversations[conv.ID] = conv
	return conv, true, nil
}

func (f *fakeStore) FindConversationByID(id uuid.UUID) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return conv, nil
}

func (f *fakeStore) GetConversationsForUser(userID uuid.UUID) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Conversation
	for _, conv := range f.conversations {
		if conv.HasParticipant(userID) {
			out = append(out, *conv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].LastMessageAt.After(out[j].LastMessageAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (f *fakeStore) SaveMessage(msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	msg.Reads = []models.MessageRead{{MessageID: msg.ID, UserID: msg.SenderID, CreatedAt: msg.CreatedAt}}
	msg.ReadBy = []uuid.UUID{msg.SenderID}
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], msg)

	conv := f.conversations[msg.ConversationID]
	conv.LastMessageID = &msg.ID
	conv.LastMessage = msg
	conv.LastMessageAt = msg.CreatedAt
	return nil
}

func (f *fakeStore) GetConversationMessages(conversationID uuid.UUID, limit, offset int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, msg := range f.messages[conversationID] {
		copied := *msg
		copied.FillReadBy()
		out = append(out, copied)
	}
	return out, nil
}

func (f *fakeStore) MarkMessagesRead(conversationID, readerID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var marked int64
	for _, msg := range f.messages[conversationID] {
		if msg.SenderID == readerID || msg.HasRead(readerID) {
			continue
		}
		msg.Reads = append(msg.Reads, models.MessageRead{MessageID: msg.ID, UserID: readerID, CreatedAt: time.Now()})
		marked++
	}
	return marked, nil
}

func (f *fakeStore) UnreadCount(conversationID, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, msg := range f.messages[conversationID] {
		if msg.SenderID != userID && !msg.HasRead(userID) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) UnreadTotalForUser(userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for convID, msgs := range f.messages {
		conv := f.conversations[convID]
		if conv == nil || !conv.HasParticipant(userID) {
			continue
		}
		for _, msg := range msgs {
			if msg.SenderID != userID && !msg.HasRead(userID) {
				count++
			}
		}
	}
	return count, nil
}

func newTestService(store *fakeStore) MessageService {
	return NewMessageService(store, store, store, store, &config.Config{})
}

func TestStartConversationFindOrCreate(t *testing.T) {
	store := newFakeStore()
	alice := store.addUser("alice")
	bob := store.addUser("bob")
	listing := store.addListing("bike", bob.ID)
	svc := newTestService(store)

	first, err := svc.StartConversation(alice.ID, bob.ID, listing.ID)
	require.NoError(t, err)

	// The counterpart starting the same thread lands on the same row.
	second, err := svc.StartConversation(bob.ID, alice.ID, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.conversations, 1)
}

func TestStartConversationUnknownReceiver(t *testing.T) {
	store := newFakeStore()
	alice := store.addUser("alice")
	listing := store.addListing("bike", alice.ID)
	svc := newTestService(store)

	_, err := svc.StartConversation(alice.ID, uuid.New(), listing.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, errors.Status(err))
}

func TestConcurrentStartConversationCollapses(t *testing.T) {
	store := newFakeStore()
	alice := store.addUser("alice")
	bob := store.addUser("bob")
	listing := store.addListing("bike", bob.ID)
	svc := newTestService(store)

	const n = 16
	ids := make(chan uuid.UUID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		userID, receiverID := alice.ID, bob.ID
		if i%2 == 1 {
			userID, receiverID = bob.ID, alice.ID
		}
		go func(userID, receiverID uuid.UUID) {
			defer wg.Done()
			summary, err := svc.StartConversation(userID, receiverID, listing.ID)
			if assert.NoError(t, err) {
				ids <- summary.ID
			}
		}(userID, receiverID)
	}
	wg.Wait()
	close(ids)

	var want uuid.UUID
	for id := range ids {
		if want == uuid.Nil {
			want = id
		}
		assert.Equal(t, want, id)
	}
	assert.Len(t, store.conversations, 1)
}

func TestSendMessageSenderIsReader(t *testing.T) {
	store := newFakeStore()
	alice := store.addUser("alice")
	bob := store.addUser("bob")
	listing := store.addListing("bike", bob.ID)
	svc := newTestService(store)

	conv, err := svc.StartConversation(alice.ID, bob.ID, listing.ID)
	require.NoError(t, err)

	msg, err := svc.SendMessage(conv.ID, alice.ID, "Is this available?")
	require.NoError(t, err)
	assert.Contains(t, msg.ReadBy, alice.ID)
	assert.Equal(t, alice.ID, msg.Sender.ID)

	unread, err := svc.UnreadCount(conv.ID, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	// The sender's own unread count is unaffected.
	unread, err = svc.UnreadCount(conv.ID, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, unread)
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	store := newFakeStore()
	alice := store.addUser("alice")
	bob := store.addUser("bob")
	listing := store.addListing("bike", bob.ID)
	svc := newTestService(store)

	conv, err := svc.StartConversation(alice.ID, bob.ID, listing.ID)
	require.NoError(t, err)

	_, err = svc.SendMessage(conv.ID, alice.ID, "   ")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errors.Status(err))
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	store := newFakeStore()
	alice := store.addUser("alice")
	bob := store.addUser("bob")
	eve := store.addUser("eve")
	listing := store.addListing("bike", bob.ID)
	svc := newTestService(store)

	conv, err := svc.StartConversation(alice.ID, bob.ID, listing.ID)
	require.NoError(t, err)

	_, err = svc.SendMessage(conv.ID, eve.ID, "let me in")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, errors.Status(err))
}

func TestMarkConversationReadIsIdempotent(t *testing.T) {
	store := newFakeStore()
	alice := store.addUser("alice")
	bob := store.addUser("bob")
	listing := store.addListing("bike", bob.ID)
	svc := newTestService(store)

	conv, err := svc.StartConversation(alice.ID, bob.ID, listing.ID)
	require.NoError(t, err)
	_, err = svc.SendMessage(conv.ID, alice.ID, "first")
	require.NoError(t, err)
	_, err = svc.SendMessage(conv.ID, alice.ID, "second")
	require.NoError(t, err)

	marked, err := svc.MarkConversationRead(conv.ID, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, marked)

	// Second call marks nothing and changes nothing.
	marked, err = svc.MarkConversationRead(conv.ID, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, marked)

	unread, err := svc.UnreadCount(conv.ID, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, unread)
}

func TestGetConversationMessagesMarksRead(t *testing.T) {
	store := newFakeStore()
	alice := store.addUser("alice")
	bob := store.addUser("bob")
	listing := store.addListing("bike", bob.ID)
	svc := newTestService(store)

	conv, err := svc.StartConversation(alice.ID, bob.ID, listing.ID)
	require.NoError(t, err)
	_, err = svc.SendMessage(conv.ID, alice.ID, "hello")
	require.NoError(t, err)

	messages, err := svc.GetConversationMessages(conv.ID, bob.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	unread, err := svc.UnreadCount(conv.ID, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, unread)
}

func TestGetConversationMessagesRejectsNonParticipant(t *testing.T) {
	store := newFakeStore()
	alice := store.addUser("alice")
	bob := store.addUser("bob")
	eve := store.addUser("eve")
	listing := store.addListing("bike", bob.ID)
	svc := newTestService(store)

	conv, err := svc.StartConversation(alice.ID, bob.ID, listing.ID)
	require.NoError(t, err)

	_, err = svc.GetConversationMessages(conv.ID, eve.ID, 50, 0)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, errors.Status(err))

	_, err = svc.GetConversationMessages(uuid.New(), eve.ID, 50, 0)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, errors.Status(err))
}

func TestListConversationsOrderAndUnread(t *testing.T) {
	store := newFakeStore()
	alice := store.addUser("alice")
	bob := store.addUser("bob")
	carol := store.addUser("carol")
	bike := store.addListing("bike", bob.ID)
	desk := store.addListing("desk", carol.ID)
	svc := newTestService(store)

	withBob, err := svc.StartConversation(alice.ID, bob.ID, bike.ID)
	require.NoError(t, err)
	withCarol, err := svc.StartConversation(alice.ID, carol.ID, desk.ID)
	require.NoError(t, err)

	_, err = svc.SendMessage(withBob.ID, bob.ID, "still for sale")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = svc.SendMessage(withCarol.ID, carol.ID, "desk is gone, sorry")
	require.NoError(t, err)

	summaries, err := svc.ListConversations(alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// Most recent activity first.
	assert.Equal(t, withCarol.ID, summaries[0].ID)
	assert.Equal(t, withBob.ID, summaries[1].ID)
	assert.EqualValues(t, 1, summaries[0].UnreadCount)
	assert.EqualValues(t, 1, summaries[1].UnreadCount)

	total, err := svc.UnreadTotal(alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}
