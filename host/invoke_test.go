package host

import (
	"context"
	"strconv"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/gdsbridge/bridge"
	"github.com/wippyai/gdsbridge/errors"
	"github.com/wippyai/gdsbridge/native"
)

func newInvoker(t *testing.T) (*Invoker, *bridge.Bridge) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	b := bridge.NewWithDefaults()
	iv, err := NewInvoker(ctx, rt, New(b, DefaultOptions()))
	if err != nil {
		t.Fatal(err)
	}
	return iv, b
}

func TestInvoker_BuildsCell(t *testing.T) {
	iv, b := newInvoker(t)
	ctx := context.Background()

	cell, err := iv.Invoke(ctx, "cell_new", []string{"TOP"})
	if err != nil {
		t.Fatal(err)
	}
	poly, err := iv.Invoke(ctx, "polygon_new", []string{"0,0 2,0 2,2", "3", "1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := iv.Invoke(ctx, "cell_add", []string{fmtHandle(cell), fmtHandle(poly)}); err != nil {
		t.Fatal(err)
	}
	n, err := iv.Invoke(ctx, "cell_len", []string{fmtHandle(cell)})
	if err != nil || n != 1 {
		t.Fatalf("Expected 1 object, got %d (%v)", n, err)
	}

	ref, _ := iv.m.ref(poly)
	p, err := b.Polygon(ref)
	if err != nil {
		t.Fatal(err)
	}
	if p.Tag != native.MakeTag(3, 1) || len(p.Points) != 3 || p.Points[1] != (native.Vec2{X: 2, Y: 0}) {
		t.Errorf("Unexpected polygon %+v", p)
	}
}

func TestInvoker_Errors(t *testing.T) {
	iv, _ := newInvoker(t)
	ctx := context.Background()

	if _, err := iv.Invoke(ctx, "cell_new", nil); !errors.IsKind(err, errors.KindInvalidArgument) {
		t.Errorf("Expected arity error, got %v", err)
	}
	if _, err := iv.Invoke(ctx, "polygon_new", []string{"0;0", "1", "0"}); !errors.IsKind(err, errors.KindInvalidArgument) {
		t.Errorf("Expected point syntax error, got %v", err)
	}
	if _, err := iv.Invoke(ctx, "handle_count", []string{"42"}); err == nil {
		t.Error("Expected unknown handle to fail")
	}
	if _, err := iv.Invoke(ctx, "nope", nil); !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func fmtHandle(h uint64) string {
	return "0x" + strconv.FormatUint(h, 16)
}
