package capsule

import "testing"

func TestBundleAccessors(t *testing.T) {
	b := NewBundle().
		Set("name", "worker").
		Set("count", 3).
		Set("ready", true)

	if s, ok := b.String("name"); !ok || s != "worker" {
		t.Errorf("String(name) = %q, %v", s, ok)
	}
	if n, ok := b.Int("count"); !ok || n != 3 {
		t.Errorf("Int(count) = %d, %v", n, ok)
	}
	if v, ok := b.Bool("ready"); !ok || !v {
		t.Errorf("Bool(ready) = %v, %v", v, ok)
	}
	if _, ok := b.Get("missing"); ok {
		t.Error("Get(missing) reported ok")
	}
	if b.Len() != 3 {
		t.Errorf("Len = %d, want 3", b.Len())
	}
}

func TestBundleIntWidths(t *testing.T) {
	b := NewBundle().
		Set("i", int(7)).
		Set("i32", int32(8)).
		Set("i64", int64(9)).
		Set("u64", uint64(10))

	for name, want := range map[string]int64{"i": 7, "i32": 8, "i64": 9, "u64": 10} {
		if n, ok := b.Int(name); !ok || n != want {
			t.Errorf("Int(%s) = %d, %v, want %d", name, n, ok, want)
		}
	}
}

func TestBundleSetOverwrites(t *testing.T) {
	b := NewBundle().Set("k", "old").Set("k", "new")
	if s, _ := b.String("k"); s != "new" {
		t.Errorf("String(k) = %q, want new", s)
	}
	if b.Len() != 1 {
		t.Errorf("Len = %d, want 1", b.Len())
	}
}

func TestBundleFieldsPreserveOrder(t *testing.T) {
	b := NewBundle().Set("z", 1).Set("a", 2).Set("m", 3)
	fields := b.Fields()
	want := []string{"z", "a", "m"}
	for i, name := range want {
		if fields[i].Name != name {
			t.Errorf("Fields()[%d] = %q, want %q", i, fields[i].Name, name)
		}
	}
}

func TestBundleMustString(t *testing.T) {
	b := NewBundle().Set("s", "x").Set("n", 1)

	if _, err := b.MustString("s"); err != nil {
		t.Errorf("MustString(s) failed: %v", err)
	}
	if _, err := b.MustString("missing"); err == nil {
		t.Error("MustString(missing) should fail")
	}
	if _, err := b.MustString("n"); err == nil {
		t.Error("MustString on non-string should fail")
	}
}
