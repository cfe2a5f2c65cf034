package core

import (
	"errors"
	"testing"
)

func TestTaskContext_MissingKey(t *testing.T) {
	ctx := NewTaskContext()

	if _, err := ctx.Get("absent"); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("Get on absent key: err = %v, want ErrMissingKey", err)
	}
	if _, err := ctx.GetFloat("absent"); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("GetFloat on absent key: err = %v, want ErrMissingKey", err)
	}
	if _, err := ctx.GetMessage("absent"); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("GetMessage on absent key: err = %v, want ErrMissingKey", err)
	}
}

func TestTaskContext_PutGetDelete(t *testing.T) {
	ctx := NewTaskContext()

	ctx.Put("k", "v1")
	ctx.Put("k", "v2")

	v, err := ctx.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "v2" {
		t.Fatalf("Get = %v, want overwritten value v2", v)
	}
	if !ctx.Has("k") {
		t.Fatalf("Has = false for present key")
	}

	ctx.Delete("k")
	if ctx.Has("k") {
		t.Fatalf("Has = true after Delete")
	}
	// Deleting an absent key is a no-op.
	ctx.Delete("k")
}

func TestTaskContext_GetDefault(t *testing.T) {
	ctx := NewTaskContext()
	if got := ctx.GetDefault("absent", 42); got != 42 {
		t.Fatalf("GetDefault absent = %v, want 42", got)
	}
	ctx.Put("present", 7)
	if got := ctx.GetDefault("present", 42); got != 7 {
		t.Fatalf("GetDefault present = %v, want 7", got)
	}
}

func TestTaskContext_GetFloatCoercions(t *testing.T) {
	ctx := NewTaskContext()
	ctx.Put("f64", 1.5)
	ctx.Put("f32", float32(2.5))
	ctx.Put("i", 3)
	ctx.Put("i64", int64(4))
	ctx.Put("s", "not a number")

	cases := []struct {
		key  string
		want float64
	}{
		{"f64", 1.5},
		{"f32", 2.5},
		{"i", 3},
		{"i64", 4},
	}
	for _, c := range cases {
		got, err := ctx.GetFloat(c.key)
		if err != nil {
			t.Fatalf("GetFloat(%q): %v", c.key, err)
		}
		if got != c.want {
			t.Fatalf("GetFloat(%q) = %v, want %v", c.key, got, c.want)
		}
	}

	if _, err := ctx.GetFloat("s"); err == nil {
		t.Fatalf("GetFloat on string value: expected type error")
	}
}

func TestTaskContext_GetMessage(t *testing.T) {
	ctx := NewTaskContext()
	ctx.Put("msg", NewMessage(128, map[string]any{"seq": 1}))
	ctx.Put("notmsg", "plain string")

	msg, err := ctx.GetMessage("msg")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if msg.SizeBytes() != 128 {
		t.Fatalf("message size = %v, want 128", msg.SizeBytes())
	}

	if _, err := ctx.GetMessage("notmsg"); err == nil {
		t.Fatalf("GetMessage on non-message value: expected type error")
	}
}

func TestMessage_ImmutableFields(t *testing.T) {
	fields := map[string]any{"seq": 1}
	msg := NewMessage(64, fields)
	fields["seq"] = 99

	v, ok := msg.Field("seq")
	if !ok || v != 1 {
		t.Fatalf("message field aliased the caller's map: seq = %v", v)
	}
	if size, ok := msg.Field(MessageSizeField); !ok || size != 64.0 {
		t.Fatalf("size field = %v, want 64", size)
	}
}

func TestMessage_NegativeSizeClamped(t *testing.T) {
	msg := NewMessage(-10, nil)
	if msg.SizeBytes() != 0 {
		t.Fatalf("negative size not clamped: %v", msg.SizeBytes())
	}
}
