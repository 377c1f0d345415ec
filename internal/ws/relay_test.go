package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-realtime/internal/mocks"
	"social-realtime/internal/models"
	"social-realtime/internal/repositories"
)

type relayFixture struct {
	hub      *Hub
	messages *mocks.MessageRepositoryMock
	users    *mocks.UserRepositoryMock
	relay    *Relay
}

func newRelayFixture() relayFixture {
	f := relayFixture{
		hub:      NewHub(),
		messages: new(mocks.MessageRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
	}
	f.relay = NewRelay(f.hub, f.messages, f.users, nil)
	return f
}

func (f relayFixture) connect(id string, userID int, channels ...string) *Client {
	c := newTestClient(id, userID, models.RoleUser)
	f.hub.Join(UserChannel(userID), c)
	for _, ch := range channels {
		f.hub.Join(ch, c)
	}
	return c
}

func TestSendMessageDirectEchoesToSender(t *testing.T) {
	f := newRelayFixture()
	senderTab1 := f.connect("s1", 1)
	senderTab2 := f.connect("s2", 1)
	receiver := f.connect("r", 2)
	other := f.connect("o", 3)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.messages.On("InsertMessage", mock.Anything, models.NewMessage{SenderID: 1, ReceiverID: 2, Body: "hi"}).
		Return(models.Message{ID: 10, SenderID: 1, ReceiverID: 2, Body: "hi", CreatedAt: created}, nil).Once()
	f.users.On("FindDisplayName", mock.Anything, 1).Return("alice", nil).Once()

	targets, err := f.relay.SendMessage(ctxBG(), 1, models.SendMessageEvent{SenderID: 1, ReceiverID: 2, Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"user:2", "user:1"}, targets)

	for _, c := range []*Client{senderTab1, senderTab2, receiver} {
		frames := drain(t, c)
		require.Len(t, frames, 1, c.ID())
		var payload models.ChatMessagePayload
		require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
		assert.Equal(t, 10, payload.ID)
		assert.Equal(t, "alice", payload.SenderName)
		assert.True(t, payload.Timestamp.Equal(created))
		assert.Empty(t, payload.Reactions)
	}
	assert.Empty(t, drain(t, other))
	f.messages.AssertExpectations(t)
}

func TestSendMessageSelfIsDeliveredOnce(t *testing.T) {
	f := newRelayFixture()
	self := f.connect("s", 1)
	f.messages.On("InsertMessage", mock.Anything, mock.Anything).Return(models.Message{ID: 1, Body: "note"}, nil).Once()
	f.users.On("FindDisplayName", mock.Anything, 1).Return("alice", nil).Once()

	_, err := f.relay.SendMessage(ctxBG(), 1, models.SendMessageEvent{ReceiverID: 1, Message: "note"})
	require.NoError(t, err)
	assert.Len(t, drain(t, self), 1)
}

func TestSendMessageGroupOnlyReachesGroupChannel(t *testing.T) {
	f := newRelayFixture()
	member := f.connect("m", 2, GroupChannel(9))
	sender := f.connect("s", 1, GroupChannel(9))
	outsider := f.connect("o", 3)
	f.messages.On("InsertMessage", mock.Anything, mock.MatchedBy(func(m models.NewMessage) bool { return m.IsGroup && m.ReceiverID == 9 })).
		Return(models.Message{ID: 5, Body: "yo"}, nil).Once()
	f.users.On("FindDisplayName", mock.Anything, 1).Return("", repositories.ErrUserNotFound).Once()

	targets, err := f.relay.SendMessage(ctxBG(), 1, models.SendMessageEvent{ReceiverID: 9, Message: "yo", IsGroup: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"group:9"}, targets)

	frames := drain(t, member)
	require.Len(t, frames, 1)
	var payload models.ChatMessagePayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	assert.Equal(t, unknownSenderName, payload.SenderName)
	assert.Len(t, drain(t, sender), 1)
	assert.Empty(t, drain(t, outsider))
}

func TestSendMessageEmptyIsDropped(t *testing.T) {
	f := newRelayFixture()
	receiver := f.connect("r", 2)
	blank := "  "

	targets, err := f.relay.SendMessage(ctxBG(), 1, models.SendMessageEvent{ReceiverID: 2, Message: " ", MediaURL: &blank})
	assert.NoError(t, err)
	assert.Nil(t, targets)
	assert.Empty(t, drain(t, receiver))
	f.messages.AssertNotCalled(t, "InsertMessage", mock.Anything, mock.Anything)
}

func TestSendMessageMediaOnlyIsAccepted(t *testing.T) {
	f := newRelayFixture()
	receiver := f.connect("r", 2)
	url := "https://cdn.example/1.png"
	f.messages.On("InsertMessage", mock.Anything, mock.MatchedBy(func(m models.NewMessage) bool { return m.MediaURL != nil && *m.MediaURL == url })).
		Return(models.Message{ID: 2}, nil).Once()
	f.users.On("FindDisplayName", mock.Anything, 1).Return("alice", nil).Once()

	_, err := f.relay.SendMessage(ctxBG(), 1, models.SendMessageEvent{ReceiverID: 2, MediaURL: &url})
	require.NoError(t, err)
	assert.Len(t, drain(t, receiver), 1)
}

func TestSendMessagePersistFailureEmitsNothing(t *testing.T) {
	f := newRelayFixture()
	sender := f.connect("s", 1)
	receiver := f.connect("r", 2)
	f.messages.On("InsertMessage", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()

	targets, err := f.relay.SendMessage(ctxBG(), 1, models.SendMessageEvent{ReceiverID: 2, Message: "hi"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, targets)
	assert.Empty(t, drain(t, sender))
	assert.Empty(t, drain(t, receiver))
	f.users.AssertNotCalled(t, "FindDisplayName", mock.Anything, mock.Anything)
}

func TestReplySummary(t *testing.T) {
	f := newRelayFixture()
	media := "https://cdn.example/x.jpg"
	f.messages.On("FindMessageSummary", mock.Anything, 1, 1, 2, false).Return(models.Message{Body: "original"}, nil)
	f.messages.On("FindMessageSummary", mock.Anything, 2, 1, 2, false).Return(models.Message{MediaURL: &media}, nil)
	f.messages.On("FindMessageSummary", mock.Anything, 3, 1, 2, false).Return(nil, repositories.ErrMessageNotFound)
	f.messages.On("FindMessageSummary", mock.Anything, 4, 1, 2, false).Return(nil, assert.AnError)

	summary, found := f.relay.ReplySummary(ctxBG(), 1, 2, false, 1)
	assert.Equal(t, "original", summary)
	assert.True(t, found)
	summary, _ = f.relay.ReplySummary(ctxBG(), 1, 2, false, 2)
	assert.Equal(t, ReplyMediaPlaceholder, summary)
	summary, found = f.relay.ReplySummary(ctxBG(), 1, 2, false, 3)
	assert.Equal(t, ReplyDeletedPlaceholder, summary)
	assert.False(t, found)
	summary, found = f.relay.ReplySummary(ctxBG(), 1, 2, false, 4)
	assert.Equal(t, ReplyDeletedPlaceholder, summary)
	assert.True(t, found)
}

func TestReplyToForeignConversationDoesNotLeak(t *testing.T) {
	f := newRelayFixture()
	receiver := f.connect("r", 2)
	foreign := 50
	// message 50 lives in the 3<->4 thread, so the scoped lookup misses.
	f.messages.On("FindMessageSummary", mock.Anything, foreign, 1, 2, false).Return(nil, repositories.ErrMessageNotFound).Once()
	f.messages.On("InsertMessage", mock.Anything, models.NewMessage{SenderID: 1, ReceiverID: 2, Body: "what?"}).
		Return(models.Message{ID: 11, Body: "what?"}, nil).Once()
	f.users.On("FindDisplayName", mock.Anything, 1).Return("alice", nil).Once()

	_, err := f.relay.SendMessage(ctxBG(), 1, models.SendMessageEvent{ReceiverID: 2, Message: "what?", ReplyToID: &foreign})
	require.NoError(t, err)

	frames := drain(t, receiver)
	require.Len(t, frames, 1)
	var payload models.ChatMessagePayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	assert.Equal(t, ReplyDeletedPlaceholder, payload.ReplySummary)
	assert.Nil(t, payload.ReplyToID)
	f.messages.AssertExpectations(t)
}

func TestReplyToMissingMessageInsertsWithoutReference(t *testing.T) {
	f := newRelayFixture()
	receiver := f.connect("r", 9, GroupChannel(4))
	gone := 70
	f.messages.On("FindMessageSummary", mock.Anything, gone, 1, 4, true).Return(nil, repositories.ErrMessageNotFound).Once()
	f.messages.On("InsertMessage", mock.Anything, mock.MatchedBy(func(m models.NewMessage) bool { return m.ReplyToID == nil && m.IsGroup })).
		Return(models.Message{ID: 12, Body: "re"}, nil).Once()
	f.users.On("FindDisplayName", mock.Anything, 1).Return("alice", nil).Once()

	_, err := f.relay.SendMessage(ctxBG(), 1, models.SendMessageEvent{ReceiverID: 4, IsGroup: true, Message: "re", ReplyToID: &gone})
	require.NoError(t, err)

	frames := drain(t, receiver)
	require.Len(t, frames, 1)
	var payload models.ChatMessagePayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	assert.Equal(t, ReplyDeletedPlaceholder, payload.ReplySummary)
	f.messages.AssertExpectations(t)
}

func TestReplyInSameConversationKeepsReference(t *testing.T) {
	f := newRelayFixture()
	receiver := f.connect("r", 2)
	parent := 8
	f.messages.On("FindMessageSummary", mock.Anything, parent, 1, 2, false).Return(models.Message{ID: parent, Body: "lunch?"}, nil).Once()
	f.messages.On("InsertMessage", mock.Anything, mock.MatchedBy(func(m models.NewMessage) bool { return m.ReplyToID != nil && *m.ReplyToID == parent })).
		Return(models.Message{ID: 13, Body: "sure"}, nil).Once()
	f.users.On("FindDisplayName", mock.Anything, 1).Return("alice", nil).Once()

	_, err := f.relay.SendMessage(ctxBG(), 1, models.SendMessageEvent{ReceiverID: 2, Message: "sure", ReplyToID: &parent})
	require.NoError(t, err)

	frames := drain(t, receiver)
	require.Len(t, frames, 1)
	var payload models.ChatMessagePayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	assert.Equal(t, "lunch?", payload.ReplySummary)
	require.NotNil(t, payload.ReplyToID)
	assert.Equal(t, parent, *payload.ReplyToID)
	f.messages.AssertExpectations(t)
}

func TestSendReactionDirectEchoesToSendingConnection(t *testing.T) {
	f := newRelayFixture()
	sender := f.connect("s", 1)
	senderOtherTab := f.connect("s2", 1)
	receiver := f.connect("r", 2)

	f.relay.SendReaction(sender, models.SendReactionEvent{MessageID: 4, ReceiverID: 2, Reactions: models.Reactions{"👍": {1}}})

	assert.Len(t, drain(t, receiver), 1)
	frames := drain(t, sender)
	require.Len(t, frames, 1)
	assert.Equal(t, models.EventUpdateReactions, frames[0].Event)
	assert.Empty(t, drain(t, senderOtherTab))
}

func TestSendReactionGroup(t *testing.T) {
	f := newRelayFixture()
	sender := f.connect("s", 1, GroupChannel(9))
	member := f.connect("m", 2, GroupChannel(9))

	f.relay.SendReaction(sender, models.SendReactionEvent{MessageID: 4, ReceiverID: 9, IsGroup: true})

	assert.Len(t, drain(t, sender), 1)
	assert.Len(t, drain(t, member), 1)
}

func TestTypingNeverEchoesToSender(t *testing.T) {
	f := newRelayFixture()
	sender := f.connect("s", 1, GroupChannel(9))
	senderOtherTab := f.connect("s2", 1, GroupChannel(9))
	member := f.connect("m", 2, GroupChannel(9))

	channel := f.relay.Typing(sender, 1, models.TypingEvent{ReceiverID: 9, IsTyping: true, IsGroup: true})
	assert.Equal(t, "group:9", channel)
	assert.Empty(t, drain(t, sender))
	assert.Len(t, drain(t, senderOtherTab), 1)

	frames := drain(t, member)
	require.Len(t, frames, 1)
	var payload models.TypingPayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	assert.Equal(t, models.TypingPayload{SenderID: 1, ReceiverID: 9, IsTyping: true, IsGroup: true}, payload)
}
