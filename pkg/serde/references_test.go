package serde

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/graph-serde-go/pkg/serde/wire"
	"github.com/lk2023060901/graph-serde-go/pkg/util/merr"
)

func TestReferenceMarkers(t *testing.T) {
	refs := newReferences(true)
	out := wire.NewOutput(0)
	nodeType := reflect.TypeOf(&Node{})

	a, b := &Node{}, &Node{}
	for _, v := range []*Node{a, b, a, nil, b} {
		_, err := refs.WriteReferenceOrNull(out, reflect.ValueOf(v), nodeType, true)
		require.NoError(t, err)
	}
	// a 新对象，b 新对象，a 回引用 slot 0，nil，b 回引用 slot 1。
	assert.Equal(t, []byte{1, 1, 2, 0, 3}, out.Bytes())

	in := wire.NewInput(out.Bytes())
	read := newReferences(true)
	ra, rb := reflect.ValueOf(&Node{}), reflect.ValueOf(&Node{})

	depth, err := read.ReadReferenceOrNull(in, nodeType, true)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
	read.Reference(ra)

	depth, err = read.ReadReferenceOrNull(in, nodeType, true)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
	read.Reference(rb)
	assert.Equal(t, 0, read.PendingDepth())

	depth, err = read.ReadReferenceOrNull(in, nodeType, true)
	require.NoError(t, err)
	assert.Equal(t, RefResolved, depth)
	assert.Equal(t, ra.Pointer(), read.ReadObject().Pointer())

	depth, err = read.ReadReferenceOrNull(in, nodeType, true)
	require.NoError(t, err)
	assert.Equal(t, RefResolved, depth)
	assert.True(t, read.ReadObject().IsNil())

	depth, err = read.ReadReferenceOrNull(in, nodeType, true)
	require.NoError(t, err)
	assert.Equal(t, RefResolved, depth)
	assert.Equal(t, rb.Pointer(), read.ReadObject().Pointer())
}

func TestReferenceUntracked(t *testing.T) {
	refs := newReferences(true)
	out := wire.NewOutput(0)
	sliceType := reflect.TypeOf([]int(nil))

	handled, err := refs.WriteReferenceOrNull(out, reflect.ValueOf([]int{1}), sliceType, true)
	require.NoError(t, err)
	assert.False(t, handled)
	handled, err = refs.WriteReferenceOrNull(out, reflect.ValueOf([]int(nil)), sliceType, true)
	require.NoError(t, err)
	assert.True(t, handled)
	handled, err = refs.WriteReferenceOrNull(out, reflect.ValueOf(3), reflect.TypeOf(0), false)
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Equal(t, []byte{1, 0}, out.Bytes())

	_, err = refs.WriteReferenceOrNull(out, reflect.ValueOf([]int(nil)), sliceType, false)
	assert.ErrorIs(t, err, merr.ErrProtocolViolation)

	read := newReferences(true)
	in := wire.NewInput(out.Bytes())
	depth, err := read.ReadReferenceOrNull(in, sliceType, true)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
	read.Reference(reflect.ValueOf([]int{1}))

	depth, err = read.ReadReferenceOrNull(in, sliceType, true)
	require.NoError(t, err)
	assert.Equal(t, RefResolved, depth)

	depth, err = read.ReadReferenceOrNull(in, reflect.TypeOf(0), false)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
	read.Reference(reflect.ValueOf(3))
	assert.Equal(t, 0, read.PendingDepth())
}

func TestReferenceErrors(t *testing.T) {
	nodeType := reflect.TypeOf(&Node{})
	refs := newReferences(true)

	_, err := refs.ReadReferenceOrNull(wire.NewInput([]byte{0}), nodeType, false)
	assert.ErrorIs(t, err, merr.ErrProtocolViolation)

	_, err = refs.ReadReferenceOrNull(wire.NewInput([]byte{9}), nodeType, true)
	assert.ErrorIs(t, err, merr.ErrStreamCorrupted)

	// 已预留但尚未绑定的 slot。
	in := wire.NewInput([]byte{1, 2})
	_, err = refs.ReadReferenceOrNull(in, nodeType, true)
	require.NoError(t, err)
	_, err = refs.ReadReferenceOrNull(in, nodeType, true)
	assert.ErrorIs(t, err, merr.ErrStreamCorrupted)

	refs.Reset()
	assert.Equal(t, 0, refs.PendingDepth())
	assert.False(t, refs.ReadObject().IsValid())
}
