package nodeset

import (
	"testing"

	"github.com/DaiZhouHui/vless-automation-go/internal/model"
)

func TestFinalize_SortOrder(t *testing.T) {
	in := []model.Node{
		node("c", "5.6.7.8", 443),
		node("a", "1.2.3.4", 2053),
		node("b", "1.2.3.4", 443),
	}
	out := Finalize(in)
	wantNames := []string{"b", "a", "c"}
	for i, want := range wantNames {
		if out[i].Name != want {
			t.Fatalf("name %d=%q, want=%q", i, out[i].Name, want)
		}
	}
}

func TestFinalize_SortBreaksTiesByUUID(t *testing.T) {
	n1 := node("x", "1.2.3.4", 443)
	n2 := node("y", "1.2.3.4", 443)
	n1.UUID = "b71a8e64-7b21-4703-b1d1-45a221098459"
	n2.UUID = "a71a8e64-7b21-4703-b1d1-45a221098459"

	out := Finalize([]model.Node{n1, n2})
	if out[0].Name != "y" || out[1].Name != "x" {
		t.Fatalf("names=%q/%q, want y/x", out[0].Name, out[1].Name)
	}
}

func TestFinalize_CollisionSuffix(t *testing.T) {
	// Names are assigned in input order, before sorting: the earlier node
	// keeps the clean name even if it sorts later.
	in := []model.Node{
		node("X", "9.9.9.9", 443),
		node("X", "1.1.1.1", 443),
	}
	out := Finalize(in)
	if out[0].Server != "1.1.1.1" || out[0].Name != "X-2" {
		t.Fatalf("first=%+v, want 1.1.1.1 named X-2", out[0])
	}
	if out[1].Server != "9.9.9.9" || out[1].Name != "X" {
		t.Fatalf("second=%+v, want 9.9.9.9 named X", out[1])
	}
}

func TestFinalize_TripleCollision(t *testing.T) {
	in := []model.Node{
		node("X", "1.1.1.1", 443),
		node("X", "2.2.2.2", 443),
		node("X", "3.3.3.3", 443),
	}
	out := Finalize(in)
	wantNames := []string{"X", "X-2", "X-3"}
	for i, want := range wantNames {
		if out[i].Name != want {
			t.Fatalf("name %d=%q, want=%q", i, out[i].Name, want)
		}
	}
}

func TestFinalize_EmptyNameFallsBackToServerPort(t *testing.T) {
	out := Finalize([]model.Node{node("  ", "1.2.3.4", 443)})
	if out[0].Name != "1.2.3.4:443" {
		t.Fatalf("name=%q, want=1.2.3.4:443", out[0].Name)
	}
}

func TestFinalize_ReservedNamesRenamed(t *testing.T) {
	out := Finalize([]model.Node{node("DIRECT", "1.2.3.4", 443), node("REJECT", "5.6.7.8", 443)})
	if out[0].Name != "DIRECT-2" {
		t.Fatalf("name=%q, want=DIRECT-2", out[0].Name)
	}
	if out[1].Name != "REJECT-2" {
		t.Fatalf("name=%q, want=REJECT-2", out[1].Name)
	}
}

func TestFinalize_InputNotMutated(t *testing.T) {
	in := []model.Node{node("X", "1.1.1.1", 443), node("X", "2.2.2.2", 443)}
	Finalize(in)
	if in[1].Name != "X" {
		t.Fatalf("input mutated: name=%q", in[1].Name)
	}
}
