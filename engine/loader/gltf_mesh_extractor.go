package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/common"
)

// gltfPrimitiveData is a primitive in world space with clockwise front faces.
type gltfPrimitiveData struct {
	vertices []meshVertex
	indices  []uint32
	// material is the glTF material index, -1 for the default material.
	material int
}

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	parser gltfParser
}

// gltfMeshExtractor turns glTF primitives into engine vertex data.
type gltfMeshExtractor interface {
	// ExtractPrimitive reads a triangle primitive, generates missing normals and tangents,
	// applies the node transform and flips the winding to clockwise.
	//
	// Parameters:
	//   - prim: the primitive to read
	//   - world: the world transform of the node instancing the mesh
	//
	// Returns:
	//   - *gltfPrimitiveData: the transformed primitive
	//   - error: error if an accessor cannot be read or the primitive is not triangles
	ExtractPrimitive(prim *gltfPrimitive, world common.Mat4) (*gltfPrimitiveData, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

func newGLTFMeshExtractor(parser gltfParser) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{parser: parser}
}

func (e *gltfMeshExtractorImpl) ExtractPrimitive(prim *gltfPrimitive, world common.Mat4) (*gltfPrimitiveData, error) {
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		return nil, fmt.Errorf("unsupported primitive mode: %d (only triangles supported)", *prim.Mode)
	}

	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("primitive has no POSITION attribute")
	}
	positions, err := e.parser.ReadFloats(posAccessor, 3, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	vertexCount := len(positions) / 3
	vertices := make([]meshVertex, vertexCount)
	for i := range vertices {
		vertices[i].Position = common.Vec3(positions[i*3 : i*3+3])
		vertices[i].Color = [4]float32{1, 1, 1, 1}
	}

	hasNormals, err := e.readAttribute(prim, "NORMAL", 3, 0, func(i int, v []float32) {
		vertices[i].Normal = common.Vec3(v)
	}, vertexCount)
	if err != nil {
		return nil, err
	}
	if _, err := e.readAttribute(prim, "TEXCOORD_0", 2, 0, func(i int, v []float32) {
		vertices[i].TexCoord = [2]float32(v)
	}, vertexCount); err != nil {
		return nil, err
	}
	if _, err := e.readAttribute(prim, "COLOR_0", 4, 1, func(i int, v []float32) {
		vertices[i].Color = [4]float32(v)
	}, vertexCount); err != nil {
		return nil, err
	}
	// glTF TANGENT is VEC4: xyz = tangent direction, w = handedness (±1).
	hasTangents, err := e.readAttribute(prim, "TANGENT", 4, 1, func(i int, v []float32) {
		vertices[i].Tangent = [4]float32(v)
	}, vertexCount)
	if err != nil {
		return nil, err
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = e.parser.ReadIndicesAccessor(*prim.Indices)
		if err != nil {
			return nil, fmt.Errorf("failed to read indices: %w", err)
		}
		for i, idx := range indices {
			if int(idx) >= vertexCount {
				return nil, fmt.Errorf("index %d addresses vertex %d of %d", i, idx, vertexCount)
			}
		}
	} else {
		indices = make([]uint32, vertexCount)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	indices = indices[:len(indices)/3*3]

	// Normals must exist before tangents, which are orthonormalized against them.
	if !hasNormals {
		generateNormals(vertices, indices)
	}
	if !hasTangents {
		generateTangents(vertices, indices)
	}

	mirrored := transformVertices(vertices, world)

	// A mirroring node transform already reversed the winding.
	if !mirrored {
		flipWinding(indices)
	}

	material := -1
	if prim.Material != nil {
		material = *prim.Material
	}
	return &gltfPrimitiveData{vertices: vertices, indices: indices, material: material}, nil
}

// readAttribute reads an optional attribute and passes each element to set. It reports
// whether the attribute was present.
func (e *gltfMeshExtractorImpl) readAttribute(prim *gltfPrimitive, semantic string, components int, pad float32, set func(int, []float32), vertexCount int) (bool, error) {
	accessor, ok := prim.Attributes[semantic]
	if !ok {
		return false, nil
	}
	values, err := e.parser.ReadFloats(accessor, components, pad)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", semantic, err)
	}
	for i := 0; i < len(values)/components && i < vertexCount; i++ {
		set(i, values[i*components:(i+1)*components])
	}
	return true, nil
}

// transformVertices moves vertices into the space of world. Normals use the inverse transpose.
// It reports whether world mirrors geometry.
func transformVertices(vertices []meshVertex, world common.Mat4) bool {
	if world == common.Identity() {
		return false
	}
	normalMatrix := world
	if inv, ok := world.Inverse(); ok {
		normalMatrix = inv.Transpose()
	}
	for i := range vertices {
		v := &vertices[i]
		v.Position = world.MulPoint(v.Position)
		v.Normal = normalMatrix.MulDirection(v.Normal).Normalize()
		t := world.MulDirection(common.Vec3{v.Tangent[0], v.Tangent[1], v.Tangent[2]}).Normalize()
		v.Tangent = [4]float32{t[0], t[1], t[2], v.Tangent[3]}
	}
	return world.Column(0).Cross(world.Column(1)).Dot(world.Column(2)) < 0
}
