package vulkan

import (
	"testing"

	amath "github.com/spaghettifunk/diffuse/engine/math"
	"github.com/spaghettifunk/diffuse/engine/scene"
)

func TestBuildDrawListFlattensPrimitives(t *testing.T) {
	s := scene.New()
	s.Meshes = []scene.Mesh{
		{Name: "two primitives", Primitives: []scene.Primitive{
			{FirstIndex: 0, IndexCount: 6, MaterialIndex: 0},
			{FirstIndex: 6, IndexCount: 3, MaterialIndex: 1},
		}},
		{Name: "one primitive", Primitives: []scene.Primitive{
			{FirstIndex: 9, IndexCount: 12, MaterialIndex: 0},
		}},
	}

	root := s.AddNode(-1, scene.Node{Name: "root", Transform: amath.NewMat4Identity(), MeshIndex: -1})
	s.AddNode(root, scene.Node{Name: "first", Transform: amath.NewMat4Identity(), MeshIndex: 0})
	s.AddNode(root, scene.Node{Name: "second", Transform: amath.NewMat4Identity(), MeshIndex: 1})

	list, err := BuildDrawList(s)
	if err != nil {
		t.Fatalf("BuildDrawList: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("draw list length = %d, want 3", len(list))
	}

	// Traversal order, primitives in declaration order.
	wantFirst := []uint32{0, 6, 9}
	wantMaterial := []int{0, 1, 0}
	for i := range list {
		if list[i].FirstIndex != wantFirst[i] {
			t.Errorf("command %d FirstIndex = %d, want %d", i, list[i].FirstIndex, wantFirst[i])
		}
		if list[i].MaterialIndex != wantMaterial[i] {
			t.Errorf("command %d MaterialIndex = %d, want %d", i, list[i].MaterialIndex, wantMaterial[i])
		}
	}
}

func TestBuildDrawListDefaultsUnsetMaterial(t *testing.T) {
	s := scene.New()
	s.Meshes = []scene.Mesh{
		{Primitives: []scene.Primitive{
			{FirstIndex: 0, IndexCount: 6, MaterialIndex: -1},
			{FirstIndex: 6, IndexCount: 6, MaterialIndex: 1},
		}},
	}
	s.AddNode(-1, scene.Node{Transform: amath.NewMat4Identity(), MeshIndex: 0})

	list, err := BuildDrawList(s)
	if err != nil {
		t.Fatalf("BuildDrawList: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("draw list length = %d, want 2", len(list))
	}
	if list[0].MaterialIndex != 0 {
		t.Errorf("unset material index = %d, want fallback 0", list[0].MaterialIndex)
	}
	if list[1].MaterialIndex != 1 {
		t.Errorf("assigned material index = %d, want 1", list[1].MaterialIndex)
	}
}

func TestSkyboxCubeMesh(t *testing.T) {
	positions, indices := SkyboxCubeMesh()
	if len(positions) != 8 {
		t.Fatalf("positions = %d, want 8", len(positions))
	}
	if len(indices) != 36 {
		t.Fatalf("indices = %d, want 36", len(indices))
	}
	for i, idx := range indices {
		if idx >= uint32(len(positions)) {
			t.Errorf("index %d out of range: %d", i, idx)
		}
	}
	for _, p := range positions {
		for _, c := range []float32{p.X, p.Y, p.Z} {
			if c != 1 && c != -1 {
				t.Errorf("corner coordinate = %v, want +/-1", c)
			}
		}
	}
}

func TestBuildDrawListAppliesWorldTransforms(t *testing.T) {
	s := scene.New()
	s.Meshes = []scene.Mesh{
		{Primitives: []scene.Primitive{{IndexCount: 3}}},
	}

	root := s.AddNode(-1, scene.Node{
		Transform: amath.NewMat4Translation(amath.Vec3{X: 1}),
		MeshIndex: -1,
	})
	s.AddNode(root, scene.Node{
		Transform: amath.NewMat4Translation(amath.Vec3{Y: 2}),
		MeshIndex: 0,
	})

	list, err := BuildDrawList(s)
	if err != nil {
		t.Fatalf("BuildDrawList: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("draw list length = %d, want 1", len(list))
	}

	world := list[0].World
	if world.Data[12] != 1 || world.Data[13] != 2 {
		t.Errorf("world translation = (%v, %v), want (1, 2)", world.Data[12], world.Data[13])
	}
}

func TestBuildDrawListSkipsTransformOnlyNodes(t *testing.T) {
	s := scene.New()
	s.AddNode(-1, scene.Node{Transform: amath.NewMat4Identity(), MeshIndex: -1})

	list, err := BuildDrawList(s)
	if err != nil {
		t.Fatalf("BuildDrawList: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("draw list length = %d, want 0", len(list))
	}
}

func TestBuildDrawListPropagatesTraversalError(t *testing.T) {
	s := scene.New()
	root := s.AddNode(-1, scene.Node{MeshIndex: -1})
	s.Nodes[root].Children = append(s.Nodes[root].Children, 42)

	if _, err := BuildDrawList(s); err == nil {
		t.Fatal("expected error for malformed scene")
	}
}
