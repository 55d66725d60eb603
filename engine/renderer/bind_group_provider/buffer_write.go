package bind_group_provider

// BufferWrite describes a single GPU buffer write operation targeting a specific binding
// on a BindGroupProvider at a given byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// InBounds reports whether the write fits inside the target buffer.
//
// Returns:
//   - bool: true when Offset+len(Data) does not exceed the buffer size
func (w BufferWrite) InBounds() bool {
	if w.Provider == nil || w.Provider.Buffer(w.Binding) == nil {
		return false
	}
	return w.Offset+uint64(len(w.Data)) <= w.Provider.BufferSize(w.Binding)
}
