package native

import "testing"

func TestTag_RoundTrip(t *testing.T) {
	tests := []struct {
		layer, typ uint32
		want       Tag
	}{
		{0, 0, 0},
		{1, 0, 1},
		{0, 1, 1 << 32},
		{7, 3, 3<<32 | 7},
		{0xffffffff, 0xffffffff, 0xffffffffffffffff},
	}
	for _, tt := range tests {
		tag := MakeTag(tt.layer, tt.typ)
		if tag != tt.want {
			t.Errorf("MakeTag(%d, %d) = %#x, want %#x", tt.layer, tt.typ, uint64(tag), uint64(tt.want))
		}
		if tag.Layer() != tt.layer || tag.Type() != tt.typ {
			t.Errorf("decode %#x = (%d, %d), want (%d, %d)", uint64(tag), tag.Layer(), tag.Type(), tt.layer, tt.typ)
		}
	}

	tag := MakeTag(5, 6).WithLayer(9).WithType(2)
	if tag.Layer() != 9 || tag.Type() != 2 {
		t.Fatalf("WithLayer/WithType = %s", tag)
	}
	if tag.String() != "9/2" {
		t.Fatalf("String() = %q", tag.String())
	}
}

func TestFilterOp_Eval(t *testing.T) {
	tests := []struct {
		op   string
		want [4]bool // (f,f) (f,t) (t,f) (t,t)
	}{
		{"and", [4]bool{false, false, false, true}},
		{"or", [4]bool{false, true, true, true}},
		{"xor", [4]bool{false, true, true, false}},
		{"nand", [4]bool{true, true, true, false}},
		{"nor", [4]bool{true, false, false, false}},
		{"nxor", [4]bool{true, false, false, true}},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			op, ok := ParseFilterOp(tt.op)
			if !ok {
				t.Fatalf("ParseFilterOp(%q) failed", tt.op)
			}
			if op.String() != tt.op {
				t.Errorf("String() = %q", op.String())
			}
			got := [4]bool{op.Eval(false, false), op.Eval(false, true), op.Eval(true, false), op.Eval(true, true)}
			if got != tt.want {
				t.Errorf("Eval table = %v, want %v", got, tt.want)
			}
		})
	}

	if _, ok := ParseFilterOp("implies"); ok {
		t.Fatal("Unknown operation should not parse")
	}
}

func TestTagFilter_Match(t *testing.T) {
	f := TagFilter{Layers: []uint32{1, 2}, Types: []uint32{0}, Op: FilterAnd}

	if !f.Match(MakeTag(1, 0)) {
		t.Error("1/0 should match")
	}
	if f.Match(MakeTag(1, 5)) {
		t.Error("1/5 should not match with and")
	}
	if f.Match(MakeTag(3, 0)) {
		t.Error("3/0 should not match with and")
	}
}
