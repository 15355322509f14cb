package emailchange

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Event) error {
	return errors.New("broker unavailable")
}

func TestMultiPublisher(t *testing.T) {
	first := &recordingPublisher{}
	second := &recordingPublisher{}
	multi := MultiPublisher{first, failingPublisher{}, second}

	err := multi.Publish(context.Background(), Event{Type: EventCancelled})
	assert.EqualError(t, err, "broker unavailable")
	assert.Equal(t, []EventType{EventCancelled}, first.types())
	assert.Equal(t, []EventType{EventCancelled}, second.types())
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	user := &testUser{id: "1", email: "old@x.com"}
	service := NewEmailChangeService(NewInMemEmailChangeRepository(newTestAccounts(user)), newTestURLBuilder(t),
		WithEventPublisher(failingPublisher{}))

	signature, err := service.GenerateSignature(context.Background(), testRoute, user, "new@x.com", nil)
	require.NoError(t, err)

	selector, token := linkParams(t, signature.SignedURL)
	_, err = service.ValidateTokenAndFetchAccount(context.Background(), selector, token)
	require.NoError(t, err)

	_, err = service.ConfirmEmailChange(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", user.GetEmail())
}

func TestRequestMetadataFromContext(t *testing.T) {
	_, ok := RequestMetadataFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithRequestMetadata(context.Background(), RequestMetadata{IPAddress: "10.0.0.1"})
	md, ok := RequestMetadataFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", md.IPAddress)
}
