package model

import "github.com/Carmen-Shannon/oxy-scene/common"

// Layout of the vertices built by the primitive constructors: position, normal, texCoord.
const primitiveVertexSize = 8 * 4

var primitiveAttributes = []Attribute{
	{Name: AttributePosition, Offset: 0, Size: 3},
	{Name: AttributeNormal, Offset: 12, Size: 3},
	{Name: AttributeTexCoord, Offset: 24, Size: 2},
}

// quad is one face: normal n and tangent axes u, v with u x v = n.
type quad struct {
	n, u, v common.Vec3
}

// Cube builds an axis aligned cube centered on the origin with one geometry. Faces wind
// clockwise when seen from outside.
//
// Parameters:
//   - size: the edge length
//
// Returns:
//   - *MeshData: 24 vertices and 36 indices
func Cube(size float32) *MeshData {
	x, y, z := common.Vec3{1, 0, 0}, common.Vec3{0, 1, 0}, common.Vec3{0, 0, 1}
	faces := []quad{
		{n: x, u: y, v: z},
		{n: x.Scale(-1), u: z, v: y},
		{n: y, u: z, v: x},
		{n: y.Scale(-1), u: x, v: z},
		{n: z, u: x, v: y},
		{n: z.Scale(-1), u: y, v: x},
	}
	return quads("cube", faces, size/2, size/2)
}

// Plane builds a square in the XZ plane facing +Y.
//
// Parameters:
//   - size: the edge length
//
// Returns:
//   - *MeshData: 4 vertices and 6 indices
func Plane(size float32) *MeshData {
	return quads("plane", []quad{{
		n: common.Vec3{0, 1, 0},
		u: common.Vec3{0, 0, 1},
		v: common.Vec3{1, 0, 0},
	}}, 0, size/2)
}

// quads emits one clockwise quad per face, offset dist along the normal with half
// extent half along u and v.
func quads(name string, faces []quad, dist, half float32) *MeshData {
	corners := [4][2]float32{{-1, -1}, {-1, 1}, {1, 1}, {1, -1}}

	d := &MeshData{
		Name:       name,
		VertexSize: primitiveVertexSize,
		Attributes: primitiveAttributes,
		Vertices:   make([]float32, 0, len(faces)*4*8),
		Indices:    make([]uint32, 0, len(faces)*6),
	}
	for fi, f := range faces {
		center := f.n.Scale(dist)
		for _, c := range corners {
			p := center.Add(f.u.Scale(c[0] * half)).Add(f.v.Scale(c[1] * half))
			d.Vertices = append(d.Vertices,
				p[0], p[1], p[2],
				f.n[0], f.n[1], f.n[2],
				(c[0]+1)/2, (c[1]+1)/2,
			)
		}
		base := uint32(fi * 4)
		d.Indices = append(d.Indices,
			base+0, base+1, base+2,
			base+0, base+2, base+3,
		)
	}
	return d
}
