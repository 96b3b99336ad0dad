package flow

import (
	"errors"
	"strings"
	"testing"
)

func TestDecorations(t *testing.T) {
	var d Decorations

	if d.HasDecoration("missing") {
		t.Error("empty table reports a decoration")
	}
	if _, err := d.GetDecoration("missing"); !errors.Is(err, ErrNoSuchDecoration) {
		t.Errorf("absent key: err = %v, want ErrNoSuchDecoration", err)
	}
	if _, err := d.GetDecoration("missing"); !strings.Contains(err.Error(), "missing") {
		t.Error("error should name the key")
	}

	d.Decorate("answer", 42)
	if !d.HasDecoration("answer") {
		t.Error("HasDecoration false after Decorate")
	}
	v, err := d.GetDecoration("answer")
	if err != nil || v.(int) != 42 {
		t.Errorf("GetDecoration = (%v, %v)", v, err)
	}

	// Present-but-nil is distinct from absent.
	d.Decorate("nothing", nil)
	if !d.HasDecoration("nothing") {
		t.Error("stored nil should still count as present")
	}
	if v, err := d.GetDecoration("nothing"); err != nil || v != nil {
		t.Errorf("stored nil = (%v, %v), want (nil, nil)", v, err)
	}

	// Overwrite.
	d.Decorate("answer", 7)
	if v, _ := d.GetDecoration("answer"); v.(int) != 7 {
		t.Error("Decorate should replace the previous value")
	}
}
