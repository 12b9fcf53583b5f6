package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/splitduel/server/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishWithoutSubscribers(t *testing.T) {
	b := NewBus()
	// Must not panic or block.
	b.Publish(Destroyed{})
}

func TestPublishOrderPreserved(t *testing.T) {
	b := NewBus()
	var got []string
	b.Subscribe(func(ev any) {
		switch ev.(type) {
		case Attacked:
			got = append(got, "attacked")
		case Destroyed:
			got = append(got, "destroyed")
		case Split:
			got = append(got, "split")
		}
	})

	b.Publish(Attacked{})
	b.Publish(Destroyed{})
	b.Publish(Destroyed{})
	b.Publish(Split{})

	assert.Equal(t, []string{"attacked", "destroyed", "destroyed", "split"}, got)
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	b := NewBus()
	counts := make([]int, 3)
	for i := range counts {
		i := i
		b.Subscribe(func(any) { counts[i]++ })
	}

	b.Publish(Destroyed{})
	b.Publish(Destroyed{})

	for i, c := range counts {
		assert.Equal(t, 2, c, "subscriber %d", i)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBus()
	var a, c int
	tokA := b.Subscribe(func(any) { a++ })
	b.Subscribe(func(any) { c++ })

	b.Publish(Destroyed{})
	b.Unsubscribe(tokA)
	b.Publish(Destroyed{})

	assert.Equal(t, 1, a, "unsubscribed handler must not be invoked again")
	assert.Equal(t, 2, c)

	// Unsubscribing twice, or with a bogus token, is a no-op.
	b.Unsubscribe(tokA)
	b.Unsubscribe(Token(9999))
	b.Publish(Destroyed{})
	assert.Equal(t, 3, c)
}

func TestEventPayloadsCarryCardMetadata(t *testing.T) {
	b := NewBus()
	attacker := CardRef{EntityID: uuid.New(), OwnerID: uuid.New(), DefinitionID: "attack"}
	defender := CardRef{EntityID: uuid.New(), OwnerID: uuid.New(), DefinitionID: "defense"}

	var seen []any
	b.Subscribe(func(ev any) { seen = append(seen, ev) })

	b.Publish(Attacked{Attacker: attacker, Defender: &defender})
	b.Publish(Attacked{Attacker: attacker}) // direct hit
	b.Publish(Split{Original: attacker, NewArchetype: engine.ArchetypeDefense})

	require.Len(t, seen, 3)

	blocked, ok := seen[0].(Attacked)
	require.True(t, ok)
	assert.Equal(t, attacker, blocked.Attacker)
	require.NotNil(t, blocked.Defender)
	assert.Equal(t, defender, *blocked.Defender)

	direct, ok := seen[1].(Attacked)
	require.True(t, ok)
	assert.Nil(t, direct.Defender)

	split, ok := seen[2].(Split)
	require.True(t, ok)
	assert.Equal(t, engine.ArchetypeDefense, split.NewArchetype)
}
