package document

// KeyState is the generation state of one cache key
type KeyState string

const (
	StateAbsent     KeyState = "absent"
	StateGenerating KeyState = "generating"
	StateCached     KeyState = "cached"
	StateFailed     KeyState = "failed"
)

// String returns the string representation of KeyState
func (s KeyState) String() string {
	return string(s)
}
