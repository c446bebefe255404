package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestType_Flags(t *testing.T) {
	assert.False(t, UnreliableUnordered.IsReliable())
	assert.False(t, UnreliableUnordered.IsOrdered())
	assert.True(t, UnreliableOrdered.IsOrdered())
	assert.True(t, ReliableUnordered.IsReliable())
	assert.True(t, ReliableOrdered.IsReliable())
	assert.True(t, ReliableOrdered.IsOrdered())
}

func TestType_Combine(t *testing.T) {
	tests := []struct {
		a, b, want Type
	}{
		{UnreliableUnordered, UnreliableUnordered, UnreliableUnordered},
		{UnreliableUnordered, ReliableUnordered, ReliableUnordered},
		{UnreliableOrdered, ReliableUnordered, ReliableOrdered},
		{UnreliableOrdered, UnreliableUnordered, UnreliableOrdered},
		{ReliableOrdered, UnreliableUnordered, ReliableOrdered},
	}
	for _, tt := range tests {
		t.Run(tt.a.String()+"+"+tt.b.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Combine(tt.b))
			assert.Equal(t, tt.want, tt.b.Combine(tt.a), "combine must be symmetric")
		})
	}
}

func TestTransport_Default(t *testing.T) {
	assert.True(t, Default.IsReliable())
	assert.True(t, Default.IsOrdered())
	assert.Equal(t, 0, Default.Channel)
}

func TestTransport_NewDropsChannelWhenUnordered(t *testing.T) {
	assert.Equal(t, 0, New(ReliableUnordered, 5).Channel)
	assert.Equal(t, 5, New(ReliableOrdered, 5).Channel)
}

func TestTransport_CombineChannels(t *testing.T) {
	a := New(UnreliableOrdered, 3)
	b := New(ReliableOrdered, 3)
	assert.Equal(t, New(ReliableOrdered, 3), a.Combine(b))

	c := New(ReliableOrdered, 4)
	assert.Equal(t, New(ReliableOrdered, 0), a.Combine(c), "mismatched channels fall back to 0")
}
