package scene

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/diffuse/engine/core"
	amath "github.com/spaghettifunk/diffuse/engine/math"
)

func buildChain(t *testing.T) *Scene {
	t.Helper()
	s := New()
	root := s.AddNode(-1, Node{Name: "root", Transform: amath.NewMat4Identity(), MeshIndex: -1})
	child := s.AddNode(root, Node{Name: "child", Transform: amath.NewMat4Translation(amath.NewVec3(1, 0, 0)), MeshIndex: 0})
	s.AddNode(child, Node{Name: "leaf", Transform: amath.NewMat4Translation(amath.NewVec3(0, 2, 0)), MeshIndex: 1})
	return s
}

func TestTraverseOrderDepthFirst(t *testing.T) {
	s := New()
	r0 := s.AddNode(-1, Node{Name: "a", Transform: amath.NewMat4Identity(), MeshIndex: -1})
	s.AddNode(r0, Node{Name: "a0", Transform: amath.NewMat4Identity(), MeshIndex: -1})
	s.AddNode(r0, Node{Name: "a1", Transform: amath.NewMat4Identity(), MeshIndex: -1})
	s.AddNode(-1, Node{Name: "b", Transform: amath.NewMat4Identity(), MeshIndex: -1})

	var names []string
	err := s.Traverse(func(index int, world amath.Mat4) error {
		names = append(names, s.Nodes[index].Name)
		return nil
	})
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}

	want := []string{"a", "a0", "a1", "b"}
	if len(names) != len(want) {
		t.Fatalf("visited %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("visit[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestTraverseAccumulatesTransforms(t *testing.T) {
	s := buildChain(t)

	var leafWorld amath.Mat4
	err := s.Traverse(func(index int, world amath.Mat4) error {
		if s.Nodes[index].Name == "leaf" {
			leafWorld = world
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}

	translation := amath.NewVec3(leafWorld.Data[12], leafWorld.Data[13], leafWorld.Data[14])
	if !translation.Compare(amath.NewVec3(1, 2, 0), amath.Float32Eps) {
		t.Errorf("leaf world translation = %v, want (1,2,0)", translation)
	}
}

func TestTraverseDetectsCycle(t *testing.T) {
	s := New()
	a := s.AddNode(-1, Node{Name: "a", Transform: amath.NewMat4Identity(), MeshIndex: -1})
	b := s.AddNode(a, Node{Name: "b", Transform: amath.NewMat4Identity(), MeshIndex: -1})
	s.Nodes[b].Children = append(s.Nodes[b].Children, a)

	err := s.Traverse(func(int, amath.Mat4) error { return nil })
	if !errors.Is(err, core.ErrMalformedScene) {
		t.Errorf("Traverse on cyclic graph = %v, want ErrMalformedScene", err)
	}
}

func TestTraverseDetectsOutOfRangeChild(t *testing.T) {
	s := New()
	a := s.AddNode(-1, Node{Name: "a", Transform: amath.NewMat4Identity(), MeshIndex: -1})
	s.Nodes[a].Children = append(s.Nodes[a].Children, 99)

	err := s.Traverse(func(int, amath.Mat4) error { return nil })
	if !errors.Is(err, core.ErrMalformedScene) {
		t.Errorf("Traverse with bad index = %v, want ErrMalformedScene", err)
	}
}

func TestTraverseDetectsSharedChild(t *testing.T) {
	// A node attached under two parents is reachable twice.
	s := New()
	a := s.AddNode(-1, Node{Name: "a", Transform: amath.NewMat4Identity(), MeshIndex: -1})
	b := s.AddNode(-1, Node{Name: "b", Transform: amath.NewMat4Identity(), MeshIndex: -1})
	shared := s.AddNode(a, Node{Name: "shared", Transform: amath.NewMat4Identity(), MeshIndex: -1})
	s.Nodes[b].Children = append(s.Nodes[b].Children, shared)

	err := s.Traverse(func(int, amath.Mat4) error { return nil })
	if !errors.Is(err, core.ErrMalformedScene) {
		t.Errorf("Traverse with shared child = %v, want ErrMalformedScene", err)
	}
}

func TestTraversePropagatesVisitError(t *testing.T) {
	s := buildChain(t)
	sentinel := errors.New("stop")
	err := s.Traverse(func(index int, world amath.Mat4) error {
		if s.Nodes[index].Name == "child" {
			return sentinel
		}
		return nil
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("Traverse = %v, want sentinel", err)
	}
}
