package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailbox_DeliverRetrieve(t *testing.T) {
	m := NewMailbox(0)
	m.Deliver(1)
	m.Deliver(2)

	x, ok := m.Retrieve()
	require.True(t, ok)
	assert.Equal(t, 1, x)

	x, ok = m.Retrieve()
	require.True(t, ok)
	assert.Equal(t, 2, x)

	_, ok = m.Retrieve()
	assert.False(t, ok)
}

func TestMailbox_BoundedDropsOldest(t *testing.T) {
	m := NewMailbox(2)
	assert.False(t, m.Deliver(1))
	assert.False(t, m.Deliver(2))
	assert.True(t, m.Deliver(3))

	x, ok := m.Retrieve()
	require.True(t, ok)
	assert.Equal(t, 2, x)
}

func TestMailbox_RetrieveLatestAndClear(t *testing.T) {
	m := NewMailbox(0)
	m.Deliver(1)
	m.Deliver(2)
	m.Deliver(3)

	latest := m.RetrieveLatestAndClear()
	assert.Equal(t, 3, latest)
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.RetrieveLatestAndClear())
}

func TestDependentAwaiter(t *testing.T) {
	d := NewDependentAwaiter()
	d.AddDependents(2)

	select {
	case <-d.AwaitDependents():
		t.Fatal("should not be ready yet")
	default:
	}

	d.DependentReady()
	select {
	case <-d.AwaitDependents():
		t.Fatal("should not be ready yet")
	default:
	}

	d.DependentReady()
	select {
	case <-d.AwaitDependents():
	default:
		t.Fatal("should be ready")
	}
}
