package scene

// NodeFlag names one per-node boolean property.
type NodeFlag uint8

const (
	FlagVisible NodeFlag = iota
	FlagStatic
	FlagCastsShadows
	FlagReceivesShadows
	FlagRayCastingSelectable
	FlagIgnoreParentTransform
	flagCount
)

func (f NodeFlag) String() string {
	switch f {
	case FlagVisible:
		return "visible"
	case FlagStatic:
		return "static"
	case FlagCastsShadows:
		return "casts_shadows"
	case FlagReceivesShadows:
		return "receives_shadows"
	case FlagRayCastingSelectable:
		return "ray_casting_selectable"
	case FlagIgnoreParentTransform:
		return "ignore_parent_transform"
	default:
		return "?"
	}
}

func (f NodeFlag) bit() uint32 {
	return 1 << uint32(f)
}

// Flags whose effective value defaults to true when neither a local value
// nor inheritance applies.
const defaultTrueMask uint32 = 1<<uint32(FlagVisible) |
	1<<uint32(FlagCastsShadows) |
	1<<uint32(FlagReceivesShadows)

// FlagSet holds the tri-state flags of one node as parallel bitmasks. Each
// flag carries a local value (which may be unset), an inherited bit that
// lets the parent's effective value flow in, a pending write applied by the
// next ProcessDirtyFlags pass, and the composed effective value consumers
// read.
type FlagSet struct {
	localValue uint32
	localSet   uint32
	inherited  uint32

	pendingValue  uint32
	pendingAssign uint32
	pendingClear  uint32

	dirty     uint32
	effective uint32
}

// newFlagSet starts with everything unset, so effective values come from
// the per-flag defaults.
func newFlagSet() FlagSet {
	return FlagSet{
		effective: defaultTrueMask,
		dirty:     (1 << uint32(flagCount)) - 1,
	}
}

// SetLocal stages a local value for the flag. It takes effect on the next
// ProcessDirtyFlags pass.
func (fs *FlagSet) SetLocal(f NodeFlag, value bool) {
	b := f.bit()
	fs.pendingClear &^= b
	fs.pendingAssign |= b
	if value {
		fs.pendingValue |= b
	} else {
		fs.pendingValue &^= b
	}
	fs.dirty |= b
}

// ClearLocal stages removal of the flag's local value, deferring to
// inheritance or the default.
func (fs *FlagSet) ClearLocal(f NodeFlag) {
	b := f.bit()
	fs.pendingAssign &^= b
	fs.pendingValue &^= b
	fs.pendingClear |= b
	fs.dirty |= b
}

// SetInherited controls whether the parent's effective value flows into
// this flag.
func (fs *FlagSet) SetInherited(f NodeFlag, on bool) {
	b := f.bit()
	if on {
		fs.inherited |= b
	} else {
		fs.inherited &^= b
	}
	fs.dirty |= b
}

// IsInherited reports whether the flag composes with the parent.
func (fs *FlagSet) IsInherited(f NodeFlag) bool {
	return fs.inherited&f.bit() != 0
}

// HasLocal reports whether a local value is currently applied (pending
// writes do not count until processed).
func (fs *FlagSet) HasLocal(f NodeFlag) bool {
	return fs.localSet&f.bit() != 0
}

// LocalValue returns the applied local value; false when unset.
func (fs *FlagSet) LocalValue(f NodeFlag) bool {
	return fs.localValue&fs.localSet&f.bit() != 0
}

// EffectiveValue returns the composed value from the last
// ProcessDirtyFlags pass.
func (fs *FlagSet) EffectiveValue(f NodeFlag) bool {
	return fs.effective&f.bit() != 0
}

// EffectiveTrueFlags enumerates every flag whose effective value is true.
func (fs *FlagSet) EffectiveTrueFlags() []NodeFlag {
	out := make([]NodeFlag, 0, flagCount)
	for f := NodeFlag(0); f < flagCount; f++ {
		if fs.effective&f.bit() != 0 {
			out = append(out, f)
		}
	}
	return out
}

// IsDirty reports whether any flag has unapplied writes.
func (fs *FlagSet) IsDirty() bool {
	return fs.dirty != 0
}

// process applies pending writes and recomposes effective values against
// the parent's effective mask. Inherited flags take the parent's value,
// ANDed with the local value when one is set; non-inherited flags take the
// local value or the default. Returns true when the effective mask changed.
func (fs *FlagSet) process(parentEffective uint32) bool {
	fs.localSet = (fs.localSet &^ fs.pendingClear) | fs.pendingAssign
	fs.localValue = (fs.localValue &^ (fs.pendingAssign | fs.pendingClear)) | (fs.pendingValue & fs.pendingAssign)
	fs.pendingValue, fs.pendingAssign, fs.pendingClear = 0, 0, 0

	effLocal := (fs.localValue & fs.localSet) | (defaultTrueMask &^ fs.localSet)
	effInherited := parentEffective & (fs.localValue | ^fs.localSet)
	next := (effLocal &^ fs.inherited) | (effInherited & fs.inherited)

	changed := next != fs.effective
	fs.effective = next
	fs.dirty = 0
	return changed
}
