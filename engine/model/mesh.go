package model

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
)

// Vertex attribute names. The shader input for an attribute is "i" followed by the
// capitalized name, e.g. iTexCoord (see shader.AttributeInputName).
const (
	AttributePosition  = "position"
	AttributeColor     = "color"
	AttributeTexCoord  = "texCoord"
	AttributeNormal    = "normal"
	AttributeTangent   = "tangent"
	AttributeBitangent = "bitangent"
)

// AttributeNames lists the known attribute names in binding order.
var AttributeNames = []string{
	AttributePosition,
	AttributeColor,
	AttributeTexCoord,
	AttributeNormal,
	AttributeTangent,
	AttributeBitangent,
}

// ErrInvalidMesh is returned when mesh data is inconsistent.
var ErrInvalidMesh = errors.New("model: invalid mesh data")

// Attribute describes one float attribute of an interleaved vertex.
type Attribute struct {
	// Name is one of the Attribute constants.
	Name string
	// Offset is the byte offset inside the vertex.
	Offset int
	// Size is the number of float32 components, 1 to 4.
	Size int
}

// Mesh is vertex and index data uploaded to the device, split into geometries that are
// drawn with separate materials.
type Mesh struct {
	Name         string
	VertexBuffer device.Handle
	IndexBuffer  device.Handle
	// VertexSize is the vertex stride in bytes.
	VertexSize  int
	IndexType   device.IndexType
	Attributes  []Attribute
	VertexCount int
	IndexCount  int
	Geometries  []*Geometry
}

// Attribute returns the attribute with the given name.
//
// Parameters:
//   - name: the attribute name
//
// Returns:
//   - Attribute: the attribute, zero if absent
//   - bool: whether the mesh has it
func (m *Mesh) Attribute(name string) (Attribute, bool) {
	for _, a := range m.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Geometry is a range of a mesh's indices drawn with one material. Geometries are compared
// by identity when the renderer batches draws.
type Geometry struct {
	// IndexOffset is the first index to draw.
	IndexOffset int
	// IndexCount is the number of indices to draw.
	IndexCount int
	// Mesh is the mesh the geometry belongs to.
	Mesh *Mesh
}

// ByteOffset returns the byte offset of the first index in the index buffer.
func (g *Geometry) ByteOffset() int {
	return g.IndexOffset * g.Mesh.IndexType.Size()
}
