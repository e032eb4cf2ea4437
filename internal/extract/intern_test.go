package extract

import (
	"errors"
	"testing"
)

func TestInternTable(t *testing.T) {
	tbl := NewInternTable()

	for _, v := range []string{"OK", "FAIL", "OK", "OK", "FAIL"} {
		if err := tbl.Observe("status", v); err != nil {
			t.Fatalf("Observe: %v", err)
		}
	}
	if _, ok := tbl.Index("status", "OK"); ok {
		t.Error("Expected no index before Freeze")
	}

	tbl.Freeze()

	if i, ok := tbl.Index("status", "FAIL"); !ok || i != 0 {
		t.Errorf("Expected FAIL=0, got %d (%v)", i, ok)
	}
	if i, ok := tbl.Index("status", "OK"); !ok || i != 1 {
		t.Errorf("Expected OK=1, got %d (%v)", i, ok)
	}
	if _, ok := tbl.Index("status", "UNKNOWN"); ok {
		t.Error("Expected unknown value to be unresolved")
	}
	if v, ok := tbl.Value("status", 1); !ok || v != "OK" {
		t.Errorf("Expected Value(1)=OK, got %q", v)
	}

	if err := tbl.Observe("status", "LATE"); !errors.Is(err, ErrTableFrozen) {
		t.Errorf("Expected ErrTableFrozen, got %v", err)
	}
	if tbl.Len() != 1 {
		t.Errorf("Expected 1 signal, got %d", tbl.Len())
	}
}

func TestInternTableMapIsCopy(t *testing.T) {
	tbl := NewInternTable()
	_ = tbl.Observe("level", "warn")
	tbl.Freeze()

	m := tbl.Map()
	m["level"]["warn"] = 99

	if i, _ := tbl.Index("level", "warn"); i != 0 {
		t.Errorf("Expected table unchanged, got %d", i)
	}
}
