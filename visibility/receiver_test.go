package visibility

import (
	"errors"
	"testing"

	"github.com/prebid/prebid-mobile-go/errortypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSource struct{}

func (failingSource) Register(func(State)) (func(), error) {
	return nil, errors.New("receiver not allowed")
}

func TestReceiverForwardsTransitions(t *testing.T) {
	b := NewBroadcaster()
	r := NewReceiver(b)
	rec := &stateRecorder{}

	require.NoError(t, r.Subscribe(rec.listen))

	b.Publish(Inactive)
	b.Publish(Active)

	assert.Equal(t, []State{Inactive, Active}, rec.get())
	assert.Equal(t, Active, r.State())
}

func TestReceiverRejectsSecondSubscription(t *testing.T) {
	r := NewReceiver(NewBroadcaster())
	rec := &stateRecorder{}

	require.NoError(t, r.Subscribe(rec.listen))
	err := r.Subscribe(rec.listen)

	assert.IsType(t, &errortypes.InvalidState{}, err)
}

func TestReceiverUnsubscribeIsIdempotent(t *testing.T) {
	b := NewBroadcaster()
	r := NewReceiver(b)
	rec := &stateRecorder{}

	r.Unsubscribe()
	assert.Equal(t, 0, r.Unregistrations(), "unsubscribe without subscription is a no-op")

	require.NoError(t, r.Subscribe(rec.listen))
	r.Unsubscribe()
	r.Unsubscribe()

	assert.Equal(t, 1, r.Unregistrations())
	assert.Equal(t, 0, b.Registered())

	b.Publish(Inactive)
	assert.Empty(t, rec.get(), "no delivery and no buffering while unsubscribed")
}

func TestReceiverResubscribeAfterUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	r := NewReceiver(b)
	rec := &stateRecorder{}

	require.NoError(t, r.Subscribe(rec.listen))
	r.Unsubscribe()
	b.Publish(Inactive)

	require.NoError(t, r.Subscribe(rec.listen))
	assert.Equal(t, Inactive, r.State(), "state is read fresh on subscribe")

	b.Publish(Active)
	assert.Equal(t, []State{Active}, rec.get())
}

func TestReceiverUnavailableSource(t *testing.T) {
	err := NewReceiver(nil).Subscribe(func(State) {})
	assert.IsType(t, &errortypes.VisibilityUnavailable{}, err)

	err = NewReceiver(failingSource{}).Subscribe(func(State) {})
	assert.IsType(t, &errortypes.VisibilityUnavailable{}, err)
	assert.True(t, errortypes.IsWarning(err))
}
