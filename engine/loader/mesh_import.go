package loader

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-scene/engine/texture"
)

// meshImport is a decoded mesh asset that has not touched the device yet.
type meshImport struct {
	mesh *model.MeshData
	// geometryMaterials holds the index into materials of each geometry, -1 for the default.
	geometryMaterials []int
	materials         []*importedMaterial
}

// Imported meshes use one interleaved layout: position, normal, texCoord, color, tangent.
const (
	meshVertexFloats = 16
	meshVertexSize   = meshVertexFloats * 4
)

var meshAttributes = []model.Attribute{
	{Name: model.AttributePosition, Offset: 0, Size: 3},
	{Name: model.AttributeNormal, Offset: 12, Size: 3},
	{Name: model.AttributeTexCoord, Offset: 24, Size: 2},
	{Name: model.AttributeColor, Offset: 32, Size: 4},
	{Name: model.AttributeTangent, Offset: 48, Size: 4},
}

// meshVertex is one vertex of a primitive before interleaving.
type meshVertex struct {
	Position common.Vec3
	Normal   common.Vec3
	TexCoord [2]float32
	Color    [4]float32
	Tangent  [4]float32
}

// importedImage is a material texture: decoded pixels for embedded images, or the source of
// an external image which is loaded through the loader cache.
type importedImage struct {
	name   string
	image  *common.ImageData
	source string
}

// importedMaterial is a material of a mesh file mapped onto the Phong material model.
type importedMaterial struct {
	name        string
	baseColor   common.Color
	blend       bool
	doubleSided bool
	// textures maps material texture slots to images.
	textures map[string]*importedImage
}

// flipWinding reverses the winding of every triangle. Mesh files use counter-clockwise front
// faces; the engine culls with clockwise front faces.
func flipWinding(indices []uint32) {
	for i := 0; i+2 < len(indices); i += 3 {
		indices[i+1], indices[i+2] = indices[i+2], indices[i+1]
	}
}

// interleave appends vertices in the imported mesh layout.
func interleave(dst []float32, vertices []meshVertex) []float32 {
	for _, v := range vertices {
		dst = append(dst, v.Position[:]...)
		dst = append(dst, v.Normal[:]...)
		dst = append(dst, v.TexCoord[:]...)
		dst = append(dst, v.Color[:]...)
		dst = append(dst, v.Tangent[:]...)
	}
	return dst
}

// generateNormals computes smooth vertex normals by accumulating area-weighted face normals
// of counter-clockwise triangles.
func generateNormals(vertices []meshVertex, indices []uint32) {
	accum := make([]common.Vec3, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		p0 := vertices[i0].Position
		face := vertices[i1].Position.Sub(p0).Cross(vertices[i2].Position.Sub(p0))
		for _, idx := range [3]uint32{i0, i1, i2} {
			accum[idx] = accum[idx].Add(face)
		}
	}

	for i, n := range accum {
		if n.Length() < 1e-6 {
			vertices[i].Normal = common.Vec3Up
			continue
		}
		vertices[i].Normal = n.Normalize()
	}
}

// generateTangents computes per-vertex tangents from UV gradients, orthonormalized against
// the vertex normal. W stores the handedness (±1).
func generateTangents(vertices []meshVertex, indices []uint32) {
	tan := make([]common.Vec3, len(vertices))
	btan := make([]common.Vec3, len(vertices))

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		v0, v1, v2 := &vertices[i0], &vertices[i1], &vertices[i2]

		edge1 := v1.Position.Sub(v0.Position)
		edge2 := v2.Position.Sub(v0.Position)
		du1, dv1 := v1.TexCoord[0]-v0.TexCoord[0], v1.TexCoord[1]-v0.TexCoord[1]
		du2, dv2 := v2.TexCoord[0]-v0.TexCoord[0], v2.TexCoord[1]-v0.TexCoord[1]

		det := du1*dv2 - dv1*du2
		if det == 0 {
			continue
		}
		r := 1 / det
		t := edge1.Scale(dv2 * r).Sub(edge2.Scale(dv1 * r))
		b := edge2.Scale(du1 * r).Sub(edge1.Scale(du2 * r))

		for _, idx := range [3]uint32{i0, i1, i2} {
			tan[idx] = tan[idx].Add(t)
			btan[idx] = btan[idx].Add(b)
		}
	}

	for i := range vertices {
		n := vertices[i].Normal
		// Gram-Schmidt: T' = normalize(T - N * dot(N, T))
		ortho := tan[i].Sub(n.Scale(n.Dot(tan[i])))
		if ortho.Length() < 1e-6 {
			vertices[i].Tangent = [4]float32{1, 0, 0, 1}
			continue
		}
		ortho = ortho.Normalize()

		w := float32(1)
		if n.Cross(ortho).Dot(btan[i]) < 0 {
			w = -1
		}
		vertices[i].Tangent = [4]float32{ortho[0], ortho[1], ortho[2], w}
	}
}

// build creates the material. Textures are obtained through textureFor so embedded images
// are uploaded once per asset.
func (m *importedMaterial) build(textureFor func(*importedImage) (*texture.Texture, error)) (material.Material, error) {
	opts := []material.MaterialBuilderOption{
		material.WithName(m.name),
		material.WithDiffuseColor(m.baseColor),
		material.WithCullFaces(!m.doubleSided),
	}
	if m.blend {
		opts = append(opts,
			material.WithOpaque(false),
			material.WithBlendMode(material.BlendAlpha),
			material.WithDepth(true, false),
		)
	}

	textures := make(map[string]*texture.Texture, len(m.textures))
	for slot, img := range m.textures {
		tex, err := textureFor(img)
		if err != nil {
			return nil, fmt.Errorf("material %q: %s: %w", m.name, slot, err)
		}
		textures[slot] = tex
	}
	mat := material.NewMaterial(opts...)
	for _, slot := range slices.Sorted(maps.Keys(textures)) {
		mat.SetTexture(slot, textures[slot])
	}
	return mat, nil
}
