package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Deque_DropsOldestWhenFull(t *testing.T) {
	d := newDeque(3)
	d.Push([]byte("1"))
	d.Push([]byte("2"))
	d.Push([]byte("3"))
	d.Push([]byte("4"))

	item, ok := d.Pop()
	require.True(t, ok)
	assert.Equal(t, "2", string(item), "oldest item (1) should have been dropped to make room for 4")
	assert.Equal(t, 1, d.Dropped())
}

func Test_Deque_FIFOOrder(t *testing.T) {
	d := newDeque(5)
	d.Push([]byte("a"))
	d.Push([]byte("b"))

	item, ok := d.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", string(item))

	item, ok = d.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", string(item))

	_, ok = d.Pop()
	assert.False(t, ok)
}
