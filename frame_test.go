package asyncrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameSetGetCurrentFrame(t *testing.T) {
	root := newFrame(nil, false, true)
	require.NoError(t, root.set("x", 1, false))
	assert.Equal(t, 1, root.get("x"))
}

func TestFrameLookupWalksToParent(t *testing.T) {
	root := newFrame(nil, false, true)
	require.NoError(t, root.set("x", "root-value", false))
	child := root.push(false)
	assert.Equal(t, "root-value", child.lookup("x"))
}

func TestFrameResolveUpWritesToDeclaringAncestor(t *testing.T) {
	root := newFrame(nil, false, true)
	require.NoError(t, root.set("count", 1, false))
	child := root.push(false)
	require.NoError(t, child.set("count", 2, true))
	assert.Equal(t, 2, root.get("count"))
	assert.Nil(t, child.get("count"))
}

func TestFrameSetDottedNameBuildsNestedRecord(t *testing.T) {
	root := newFrame(nil, false, true)
	require.NoError(t, root.set("user.name", "alice", false))
	require.NoError(t, root.set("user.age", 30, false))
	v := root.get("user").(map[string]any)
	assert.Equal(t, "alice", v["name"])
	assert.Equal(t, 30, v["age"])
}

func TestFrameSetRejectsDottedNameWithResolveUp(t *testing.T) {
	root := newFrame(nil, false, true)
	err := root.set("user.name", "alice", true)
	require.Error(t, err)
	var sie *StructuralInvariantError
	assert.ErrorAs(t, err, &sie)
}

func TestFrameIsolateWritesBlocksWriteThroughButNotRead(t *testing.T) {
	root := newFrame(nil, false, true)
	require.NoError(t, root.set("shared", "root", false))
	isolated := newFrame(root, true, true)

	assert.Equal(t, "root", isolated.lookup("shared"))
	assert.Nil(t, isolated.resolve("shared", true))
	assert.NotNil(t, root.resolve("shared", true))
}

func TestPushAsyncBlockSnapshotsReadsAndInstallsWriteFutures(t *testing.T) {
	root := newFrame(nil, false, true)
	require.NoError(t, root.set("x", 10, false))

	child := pushAsyncBlock(root, []string{"x"}, map[string]int{"y": 1})
	assert.Equal(t, 10, child.get("x"))

	// The parent's "y" slot now holds a pending Future.
	fut, ok := root.get("y").(*Future)
	require.True(t, ok)
	assert.False(t, fut.IsSettled())

	require.NoError(t, child.set("y", "done", false))
	assert.True(t, fut.IsSettled())
	v, err := fut.await()
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestCountdownDoesNotResolveUntilAllWritesComplete(t *testing.T) {
	root := newFrame(nil, false, true)
	child := pushAsyncBlock(root, nil, map[string]int{"total": 2})

	require.NoError(t, child.set("total", 1, false))
	fut := root.get("total").(*Future)
	assert.False(t, fut.IsSettled())

	require.NoError(t, child.set("total", 2, false))
	assert.True(t, fut.IsSettled())
}

func TestSkipBranchWritesResolvesWithoutAValue(t *testing.T) {
	root := newFrame(nil, false, true)
	child := pushAsyncBlock(root, nil, map[string]int{"x": 1})
	fut := root.get("x").(*Future)

	require.NoError(t, child.skipBranchWrites(map[string]int{"x": 1}))
	assert.True(t, fut.IsSettled())
}

func TestPoisonBranchWritesPlacesPoisonBeforeResolving(t *testing.T) {
	root := newFrame(nil, false, true)
	child := pushAsyncBlock(root, nil, map[string]int{"x": 1})
	fut := root.get("x").(*Future)

	require.NoError(t, child.poisonBranchWrites(assert.AnError, map[string]int{"x": 1}))
	require.True(t, fut.IsSettled())
	_, err := fut.await()
	require.Error(t, err)
}

func TestResolveSlotOwnerMaterializesUnlockedSequenceLockAtRoot(t *testing.T) {
	root := newFrame(nil, false, true)
	child := root.push(false)
	owner := child.resolveSlotOwner("!audit")
	assert.Same(t, root, owner)
	assert.Equal(t, "unlocked", root.get("!audit"))
}
