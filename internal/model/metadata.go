package model

// Metadata is a free-form key→value map attached to memories and entities.
type Metadata map[string]any

// Merge applies incoming on top of m and returns the result. Incoming keys
// overwrite, all other keys are preserved (shallow, last-write-wins). The
// receiver is not mutated.
func (m Metadata) Merge(incoming Metadata) Metadata {
	out := make(Metadata, len(m)+len(incoming))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
