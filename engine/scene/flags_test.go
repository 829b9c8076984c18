package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagDefaults(t *testing.T) {
	s := NewScene("test")
	n := s.CreateNode("node")
	fs, err := s.Flags(n)
	require.NoError(t, err)

	assert.True(t, fs.EffectiveValue(FlagVisible))
	assert.True(t, fs.EffectiveValue(FlagCastsShadows))
	assert.True(t, fs.EffectiveValue(FlagReceivesShadows))
	assert.False(t, fs.EffectiveValue(FlagStatic))
	assert.False(t, fs.HasLocal(FlagVisible))
}

func TestFlagWritesDeferredToProcessPass(t *testing.T) {
	s := NewScene("test")
	n := s.CreateNode("node")
	fs, err := s.Flags(n)
	require.NoError(t, err)
	s.ProcessDirtyFlags()

	fs.SetLocal(FlagVisible, false)
	// Staged, not applied.
	assert.True(t, fs.EffectiveValue(FlagVisible))
	assert.False(t, fs.HasLocal(FlagVisible))
	assert.True(t, fs.IsDirty())

	s.ProcessDirtyFlags()
	assert.False(t, fs.EffectiveValue(FlagVisible))
	assert.True(t, fs.HasLocal(FlagVisible))
	assert.False(t, fs.LocalValue(FlagVisible))
	assert.False(t, fs.IsDirty())
}

func TestFlagClearLocalRestoresDefault(t *testing.T) {
	s := NewScene("test")
	n := s.CreateNode("node")
	fs, err := s.Flags(n)
	require.NoError(t, err)

	fs.SetLocal(FlagVisible, false)
	s.ProcessDirtyFlags()
	require.False(t, fs.EffectiveValue(FlagVisible))

	fs.ClearLocal(FlagVisible)
	s.ProcessDirtyFlags()
	assert.True(t, fs.EffectiveValue(FlagVisible))
	assert.False(t, fs.HasLocal(FlagVisible))
}

func TestFlagInheritanceComposesWithParent(t *testing.T) {
	s := NewScene("test")
	parent := s.CreateNode("parent")
	child, err := s.CreateChildNode(parent, "child")
	require.NoError(t, err)

	parentFlags, err := s.Flags(parent)
	require.NoError(t, err)
	childFlags, err := s.Flags(child)
	require.NoError(t, err)

	childFlags.SetInherited(FlagVisible, true)
	parentFlags.SetLocal(FlagVisible, false)
	s.ProcessDirtyFlags()

	// The parent's false flows down.
	assert.False(t, childFlags.EffectiveValue(FlagVisible))
	assert.True(t, childFlags.IsInherited(FlagVisible))

	// A local true on the child cannot override an inherited false.
	childFlags.SetLocal(FlagVisible, true)
	s.ProcessDirtyFlags()
	assert.False(t, childFlags.EffectiveValue(FlagVisible))

	// Once the parent is visible again, the child's local value applies.
	parentFlags.SetLocal(FlagVisible, true)
	s.ProcessDirtyFlags()
	assert.True(t, childFlags.EffectiveValue(FlagVisible))

	// A local false under a visible parent stays false.
	childFlags.SetLocal(FlagVisible, false)
	s.ProcessDirtyFlags()
	assert.False(t, childFlags.EffectiveValue(FlagVisible))
}

func TestFlagInheritancePropagatesThroughLevels(t *testing.T) {
	s := NewScene("test")
	a := s.CreateNode("a")
	b, err := s.CreateChildNode(a, "b")
	require.NoError(t, err)
	c, err := s.CreateChildNode(b, "c")
	require.NoError(t, err)

	for _, h := range []NodeHandle{b, c} {
		fs, err := s.Flags(h)
		require.NoError(t, err)
		fs.SetInherited(FlagVisible, true)
	}
	aFlags, err := s.Flags(a)
	require.NoError(t, err)
	aFlags.SetLocal(FlagVisible, false)
	s.ProcessDirtyFlags()

	cFlags, err := s.Flags(c)
	require.NoError(t, err)
	assert.False(t, cFlags.EffectiveValue(FlagVisible))

	aFlags.SetLocal(FlagVisible, true)
	s.ProcessDirtyFlags()
	assert.True(t, cFlags.EffectiveValue(FlagVisible))
}

func TestEffectiveTrueFlags(t *testing.T) {
	s := NewScene("test")
	n := s.CreateNode("node")
	fs, err := s.Flags(n)
	require.NoError(t, err)

	fs.SetLocal(FlagStatic, true)
	fs.SetLocal(FlagCastsShadows, false)
	s.ProcessDirtyFlags()

	flags := fs.EffectiveTrueFlags()
	assert.Contains(t, flags, FlagVisible)
	assert.Contains(t, flags, FlagStatic)
	assert.Contains(t, flags, FlagReceivesShadows)
	assert.NotContains(t, flags, FlagCastsShadows)
}
