package core

// MessageSizeField is the reserved field name carrying a message's size in
// bytes.
const MessageSizeField = "SIZE"

// Message is an immutable value object moved between tasks: a field bag plus
// a size attribute that drives channel delay and transmit energy. A message
// is created by one segment, consumed by exactly one receiving segment, and
// then discarded; the constructor copies the field map so no aliasing exists
// across ports.
type Message struct {
	fields map[string]any
	size   float64
}

// NewMessage constructs a message of the given size in bytes with an optional
// set of extra fields. Negative sizes are clamped to zero.
func NewMessage(sizeBytes float64, fields map[string]any) Message {
	if sizeBytes < 0 {
		sizeBytes = 0
	}
	copied := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		copied[k] = v
	}
	copied[MessageSizeField] = sizeBytes
	return Message{fields: copied, size: sizeBytes}
}

// SizeBytes returns the message size in bytes. Satisfies model.Payload.
func (m Message) SizeBytes() float64 { return m.size }

// Field returns a named field and whether it is present.
func (m Message) Field(name string) (any, bool) {
	v, ok := m.fields[name]
	return v, ok
}
