package models

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashank8536/Campus-MarketPlace/errors"
)

func TestNormalizeParticipantsOrdersPair(t *testing.T) {
	a := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")
	b := uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000")

	first, second, err := NormalizeParticipants(b, a)
	require.NoError(t, err)
	assert.Equal(t, a, first)
	assert.Equal(t, b, second)

	// Same pair in the other order normalizes identically.
	first2, second2, err := NormalizeParticipants(a, b)
	require.NoError(t, err)
	assert.Equal(t, first, first2)
	assert.Equal(t, second, second2)
}

func TestNormalizeParticipantsRejectsNilAndSelf(t *testing.T) {
	a := uuid.New()

	_, _, err := NormalizeParticipants(a, uuid.Nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errors.Status(err))

	_, _, err = NormalizeParticipants(a, a)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errors.Status(err))
}

func TestConversationParticipantHelpers(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	conv := Conversation{ParticipantOneID: a, ParticipantTwoID: b}

	assert.True(t, conv.HasParticipant(a))
	assert.True(t, conv.HasParticipant(b))
	assert.False(t, conv.HasParticipant(uuid.New()))

	assert.Equal(t, b, conv.OtherParticipant(a))
	assert.Equal(t, a, conv.OtherParticipant(b))
}
