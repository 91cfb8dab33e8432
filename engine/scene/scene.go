package scene

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/diffuse/engine/core"
	amath "github.com/spaghettifunk/diffuse/engine/math"
)

// Material references textures by index into the scene's texture list.
// The five slots match the sampler bindings of the scene pipeline.
type Material struct {
	ID                uuid.UUID
	Name              string
	Albedo            int
	Normal            int
	MetallicRoughness int
	AmbientOcclusion  int
	Emissive          int
}

// Primitive is a contiguous run of indices drawn with a single material.
type Primitive struct {
	FirstIndex    uint32
	IndexCount    uint32
	MaterialIndex int
}

// Mesh groups the primitives that share a vertex range.
type Mesh struct {
	ID         uuid.UUID
	Name       string
	Primitives []Primitive
}

// Node lives in the scene arena. Children hold indices into the same
// arena, never pointers, so a scene can be serialized or relocated as a
// block. MeshIndex is negative for pure transform nodes.
type Node struct {
	Name      string
	Transform amath.Mat4
	MeshIndex int
	Children  []int
}

// Scene is an arena-backed graph. Roots are the entry points of the
// traversal; a well-formed scene reaches every node at most once.
type Scene struct {
	ID        uuid.UUID
	Nodes     []Node
	Roots     []int
	Meshes    []Mesh
	Materials []Material
	Vertices  []amath.Vertex
	Indices   []uint32
}

func New() *Scene {
	return &Scene{
		ID: uuid.New(),
	}
}

// AddNode appends a node to the arena and returns its index. Parent is the
// index of the node to attach to, or a negative value for a root.
func (s *Scene) AddNode(parent int, n Node) int {
	idx := len(s.Nodes)
	s.Nodes = append(s.Nodes, n)
	if parent < 0 {
		s.Roots = append(s.Roots, idx)
	} else {
		s.Nodes[parent].Children = append(s.Nodes[parent].Children, idx)
	}
	return idx
}

// Visit receives the node index and its world transform, parent transforms
// already applied.
type Visit func(index int, world amath.Mat4) error

// Traverse walks the graph depth-first from the roots using an explicit
// stack, children visited in declaration order. A node index out of range
// or a node reachable twice yields ErrMalformedScene.
func (s *Scene) Traverse(visit Visit) error {
	type entry struct {
		index  int
		parent amath.Mat4
	}

	visited := make([]bool, len(s.Nodes))
	stack := make([]entry, 0, len(s.Nodes))

	identity := amath.NewMat4Identity()
	for i := len(s.Roots) - 1; i >= 0; i-- {
		stack = append(stack, entry{index: s.Roots[i], parent: identity})
	}

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if e.index < 0 || e.index >= len(s.Nodes) {
			return core.ErrMalformedScene
		}
		if visited[e.index] {
			return core.ErrMalformedScene
		}
		visited[e.index] = true

		node := &s.Nodes[e.index]
		world := e.parent.Mul(node.Transform)
		if err := visit(e.index, world); err != nil {
			return err
		}

		// Push in reverse so the first child is popped first.
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, entry{index: node.Children[i], parent: world})
		}
	}

	return nil
}
