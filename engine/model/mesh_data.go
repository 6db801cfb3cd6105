package model

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
)

// IndexRange is a range of indices forming one geometry.
type IndexRange struct {
	Offset int
	Count  int
}

// MeshData is mesh content on the CPU side, as produced by loaders and primitive builders.
type MeshData struct {
	Name string
	// Vertices holds interleaved vertex components.
	Vertices []float32
	// VertexSize is the vertex stride in bytes.
	VertexSize int
	Attributes []Attribute
	Indices    []uint32
	// Geometries splits Indices into material slots. Empty means one geometry covering all
	// indices.
	Geometries []IndexRange
}

// VertexCount returns the number of whole vertices.
func (d *MeshData) VertexCount() int {
	if d.VertexSize <= 0 {
		return 0
	}
	return len(d.Vertices) * 4 / d.VertexSize
}

// Validate checks the stride, the attribute layout, that every index addresses a vertex and
// that every geometry range lies inside the index list.
//
// Returns:
//   - error: an error wrapping ErrInvalidMesh describing the first problem found
func (d *MeshData) Validate() error {
	if d.VertexSize <= 0 || d.VertexSize%4 != 0 {
		return fmt.Errorf("%s: vertex size %d: %w", d.Name, d.VertexSize, ErrInvalidMesh)
	}
	if len(d.Vertices)*4%d.VertexSize != 0 {
		return fmt.Errorf("%s: %d floats is not a whole number of vertices: %w", d.Name, len(d.Vertices), ErrInvalidMesh)
	}
	for _, a := range d.Attributes {
		if a.Size < 1 || a.Size > 4 || a.Offset < 0 || a.Offset%4 != 0 || a.Offset+a.Size*4 > d.VertexSize {
			return fmt.Errorf("%s: attribute %s does not fit the vertex: %w", d.Name, a.Name, ErrInvalidMesh)
		}
	}
	vertices := uint32(d.VertexCount())
	for i, idx := range d.Indices {
		if idx >= vertices {
			return fmt.Errorf("%s: index %d addresses vertex %d of %d: %w", d.Name, i, idx, vertices, ErrInvalidMesh)
		}
	}
	for i, g := range d.Geometries {
		if g.Offset < 0 || g.Count < 0 || g.Offset+g.Count > len(d.Indices) {
			return fmt.Errorf("%s: geometry %d range [%d, %d) outside %d indices: %w",
				d.Name, i, g.Offset, g.Offset+g.Count, len(d.Indices), ErrInvalidMesh)
		}
	}
	return nil
}

// Upload validates the data and creates its vertex and index buffers. Indices are stored as
// 16-bit values when every index fits.
//
// Parameters:
//   - dev: the device to upload to
//
// Returns:
//   - *Mesh: the uploaded mesh with one Geometry per index range
//   - error: a validation or device error
func (d *MeshData) Upload(dev device.Device) (*Mesh, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	vertexBytes := common.SliceToBytes(d.Vertices)
	vb, err := dev.CreateBuffer(device.VertexBuffer, len(vertexBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex buffer for %s: %w", d.Name, err)
	}
	dev.BufferSubData(vb, 0, vertexBytes)

	indexType, indexBytes := encodeIndices(d.Indices)
	ib, err := dev.CreateBuffer(device.IndexBuffer, len(indexBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create index buffer for %s: %w", d.Name, err)
	}
	dev.BufferSubData(ib, 0, indexBytes)

	mesh := &Mesh{
		Name:         d.Name,
		VertexBuffer: vb,
		IndexBuffer:  ib,
		VertexSize:   d.VertexSize,
		IndexType:    indexType,
		Attributes:   slices.Clone(d.Attributes),
		VertexCount:  d.VertexCount(),
		IndexCount:   len(d.Indices),
	}
	ranges := d.Geometries
	if len(ranges) == 0 {
		ranges = []IndexRange{{Offset: 0, Count: len(d.Indices)}}
	}
	for _, r := range ranges {
		mesh.Geometries = append(mesh.Geometries, &Geometry{IndexOffset: r.Offset, IndexCount: r.Count, Mesh: mesh})
	}
	return mesh, nil
}

// encodeIndices packs indices little-endian, as uint16 when the largest index allows it.
// Index buffers are padded to a multiple of four bytes.
func encodeIndices(indices []uint32) (device.IndexType, []byte) {
	if len(indices) == 0 || slices.Max(indices) <= 0xFFFF {
		out := make([]byte, (len(indices)*2+3)&^3)
		for i, idx := range indices {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(idx))
		}
		return device.IndexUint16, out
	}
	out := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return device.IndexUint32, out
}
