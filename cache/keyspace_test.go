package cache

import (
	"errors"
	"reflect"
	"testing"
)

type keyspaceUser struct{}

type box[T any] struct{ v T }

func TestDefaultKeySpace_KeyFor(t *testing.T) {
	ks := NewDefaultKeySpace()

	tests := []struct {
		name     string
		typeName string
		id       string
		want     string
		wantErr  error
	}{
		{name: "simple", typeName: "User", id: "1", want: "User:1"},
		{name: "uuid identity", typeName: "Group", id: "3f1c", want: "Group:3f1c"},
		{name: "empty identity", typeName: "User", id: "", wantErr: ErrEmptyIdentity},
		{name: "empty type", typeName: "", id: "1", wantErr: ErrEmptyTypeName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ks.KeyFor(tt.typeName, tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("KeyFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySpace_Deterministic(t *testing.T) {
	ks := NewDefaultKeySpace()
	a, _ := ks.KeyFor("User", "1")
	b, _ := ks.KeyFor("User", "1")
	if a != b {
		t.Errorf("expected identical keys, got %q and %q", a, b)
	}
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		name string
		in   reflect.Type
		want string
	}{
		{name: "struct", in: reflect.TypeOf(keyspaceUser{}), want: "keyspaceUser"},
		{name: "pointer", in: reflect.TypeOf(&keyspaceUser{}), want: "keyspaceUser"},
		{name: "double pointer", in: reflect.TypeOf((**keyspaceUser)(nil)), want: "keyspaceUser"},
		{name: "generic", in: reflect.TypeOf(box[int]{}), want: "box"},
		{name: "nil", in: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeName(tt.in); got != tt.want {
				t.Errorf("TypeName() = %q, want %q", got, tt.want)
			}
		})
	}
}
