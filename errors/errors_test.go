package errors

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/multierr"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseAttach,
				Kind:     KindInvalidArgument,
				Path:     []string{"lib", "TOP"},
				Object:   "Library",
				Expected: "Polygon",
				Detail:   "cannot attach",
			},
			contains: []string{"[attach]", "invalid_argument", "lib/TOP", "got Library", "want Polygon", "cannot attach"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDetach,
				Kind:  KindNotFound,
			},
			contains: []string{"[detach]", "not_found"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseFinalize,
				Kind:   KindUnsupported,
				Detail: "raw cell teardown",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[finalize]", "unsupported", "raw cell teardown", "caused by", "underlying error"},
		},
		{
			name: "object only",
			err: &Error{
				Phase:  PhaseAttach,
				Kind:   KindDuplicateAttachment,
				Object: "Polygon",
			},
			contains: []string{"object Polygon"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !containsSubstring(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseLink,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseAttach,
		Kind:  KindDuplicateAttachment,
		Path:  []string{"TOP"},
	}

	if !err.Is(&Error{Phase: PhaseAttach, Kind: KindDuplicateAttachment}) {
		t.Error("Is should match same phase and kind")
	}

	if err.Is(&Error{Phase: PhaseDetach, Kind: KindDuplicateAttachment}) {
		t.Error("Is should not match different phase")
	}

	if err.Is(&Error{Phase: PhaseAttach, Kind: KindNotFound}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseAttach, Kind: KindDuplicateAttachment}
	if !errors.Is(fmt.Errorf("wrapped: %w", err), target) {
		t.Error("errors.Is should match through fmt wrapping")
	}
}

func TestIsKind(t *testing.T) {
	unsupported := Unsupported(PhaseFinalize, "robust path teardown")
	notFound := NotFound(PhaseDetach, "Polygon", 0x10)

	tests := []struct {
		name string
		err  error
		kind Kind
		want bool
	}{
		{"nil", nil, KindNotFound, false},
		{"direct", notFound, KindNotFound, true},
		{"other kind", notFound, KindUnsupported, false},
		{"cause chain", Wrap(PhaseFinalize, KindInvalidData, unsupported, "cell teardown"), KindUnsupported, true},
		{"fmt wrapped", fmt.Errorf("op: %w", notFound), KindNotFound, true},
		{"multierr", multierr.Combine(notFound, unsupported), KindUnsupported, true},
		{"errors.Join", errors.Join(errors.New("plain"), notFound), KindNotFound, true},
		{"plain error", errors.New("plain"), KindNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKind(tt.err, tt.kind); got != tt.want {
				t.Errorf("IsKind(%v, %s) = %v, want %v", tt.err, tt.kind, got, tt.want)
			}
		})
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseAttach, KindInvalidArgument).
		Path("lib", "TOP").
		Object("Label").
		Expected("Polygon").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "Polygon", "Label").
		Build()

	if err.Phase != PhaseAttach {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseAttach)
	}
	if err.Kind != KindInvalidArgument {
		t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidArgument)
	}
	if len(err.Path) != 2 || err.Path[0] != "lib" || err.Path[1] != "TOP" {
		t.Errorf("Path = %v, want [lib TOP]", err.Path)
	}
	if err.Object != "Label" {
		t.Errorf("Object = %v, want 'Label'", err.Object)
	}
	if err.Expected != "Polygon" {
		t.Errorf("Expected = %v, want 'Polygon'", err.Expected)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected Polygon, got Label" {
		t.Errorf("Detail = %v, want 'expected Polygon, got Label'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("DuplicateAttachment", func(t *testing.T) {
		err := DuplicateAttachment(PhaseAttach, "Polygon", 0x2a)
		if err.Kind != KindDuplicateAttachment {
			t.Errorf("Kind = %v, want %v", err.Kind, KindDuplicateAttachment)
		}
		if !containsSubstring(err.Detail, "0x2a") {
			t.Errorf("Detail = %v, should contain address", err.Detail)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseDetach, "Reference", 7)
		if err.Kind != KindNotFound {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
		}
		if err.Object != "Reference" {
			t.Errorf("Object = %v, want 'Reference'", err.Object)
		}
	})

	t.Run("WrongKind", func(t *testing.T) {
		err := WrongKind(PhaseAttach, "Label", "Polygon")
		if err.Kind != KindInvalidArgument {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidArgument)
		}
		if err.Object != "Label" || err.Expected != "Polygon" {
			t.Errorf("Object=%v Expected=%v", err.Object, err.Expected)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseFinalize, "raw cell teardown")
		if err.Kind != KindUnsupported {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupported)
		}
	})

	t.Run("StaleHandle", func(t *testing.T) {
		err := StaleHandle(PhaseAlloc, 0x100000001)
		if err.Kind != KindStaleHandle {
			t.Errorf("Kind = %v, want %v", err.Kind, KindStaleHandle)
		}
		if err.Value != uint64(0x100000001) {
			t.Errorf("Value = %v, want 0x100000001", err.Value)
		}
	})

	t.Run("Cycle", func(t *testing.T) {
		err := Cycle(PhaseFlatten, []string{"A", "B", "A"})
		if err.Kind != KindCycle {
			t.Errorf("Kind = %v, want %v", err.Kind, KindCycle)
		}
		if !containsSubstring(err.Error(), "A/B/A") {
			t.Errorf("Error() = %v, should contain path", err.Error())
		}
	})

	t.Run("ParseFailed", func(t *testing.T) {
		err := ParseFailed("layout.hcl", errors.New("bad token"))
		if err.Phase != PhaseScript || err.Kind != KindInvalidData {
			t.Errorf("Phase=%v Kind=%v", err.Phase, err.Kind)
		}
	})
}

func containsSubstring(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(substr) == 0 ||
		(len(s) > 0 && containsSubstringHelper(s, substr)))
}

func containsSubstringHelper(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
