package loader

import (
	"fmt"
	"net/url"
	"path"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
)

// gltfImporterImpl is the implementation of the gltfImporter interface.
type gltfImporterImpl struct {
	fetch   uriFetcher
	resolve func(uri string) string
}

// gltfImporter decodes glTF and GLB documents into a single mesh with one geometry per
// primitive instance.
type gltfImporter interface {
	// Import parses data and bakes the default scene into one mesh. Mesh instances are
	// transformed by their node's world transform. Documents without scenes import every mesh
	// once, untransformed.
	//
	// Parameters:
	//   - name: the mesh name, usually the source
	//   - data: the glTF JSON or GLB bytes
	//
	// Returns:
	//   - *meshImport: the decoded asset
	//   - error: error if parsing or extraction fails
	Import(name string, data []byte) (*meshImport, error)
}

var _ gltfImporter = &gltfImporterImpl{}

// newGLTFImporter creates an importer. fetch loads external buffers, resolve maps external
// image URIs to loader sources.
func newGLTFImporter(fetch uriFetcher, resolve func(uri string) string) gltfImporter {
	return &gltfImporterImpl{fetch: fetch, resolve: resolve}
}

func (imp *gltfImporterImpl) Import(name string, data []byte) (*meshImport, error) {
	parser := newGLTFParser(imp.fetch)
	if err := parser.Parse(data); err != nil {
		return nil, err
	}
	doc := parser.Document()

	meshes := newGLTFMeshExtractor(parser)
	materials := newGLTFMaterialExtractor(parser, imp.resolve)

	out := &meshImport{mesh: &model.MeshData{
		Name:       name,
		VertexSize: meshVertexSize,
		Attributes: meshAttributes,
	}}
	materialSlots := make(map[int]int)

	addMesh := func(meshIndex int, world common.Mat4) error {
		if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
			return fmt.Errorf("mesh index %d out of range", meshIndex)
		}
		for p := range doc.Meshes[meshIndex].Primitives {
			prim, err := meshes.ExtractPrimitive(&doc.Meshes[meshIndex].Primitives[p], world)
			if err != nil {
				return fmt.Errorf("mesh %d primitive %d: %w", meshIndex, p, err)
			}

			slot := -1
			if prim.material >= 0 {
				var ok bool
				if slot, ok = materialSlots[prim.material]; !ok {
					mat, err := materials.ExtractMaterial(prim.material)
					if err != nil {
						return err
					}
					slot = len(out.materials)
					materialSlots[prim.material] = slot
					out.materials = append(out.materials, mat)
				}
			}

			base := uint32(out.mesh.VertexCount())
			offset := len(out.mesh.Indices)
			for _, idx := range prim.indices {
				out.mesh.Indices = append(out.mesh.Indices, base+idx)
			}
			out.mesh.Vertices = interleave(out.mesh.Vertices, prim.vertices)
			out.mesh.Geometries = append(out.mesh.Geometries, model.IndexRange{Offset: offset, Count: len(prim.indices)})
			out.geometryMaterials = append(out.geometryMaterials, slot)
		}
		return nil
	}

	if len(doc.Scenes) == 0 {
		for i := range doc.Meshes {
			if err := addMesh(i, common.Identity()); err != nil {
				return nil, err
			}
		}
	} else {
		scene := 0
		if doc.Scene != nil {
			scene = *doc.Scene
		}
		if scene < 0 || scene >= len(doc.Scenes) {
			return nil, fmt.Errorf("scene index %d out of range", scene)
		}
		visited := make(map[int]bool)
		var walk func(node int, parent common.Mat4) error
		walk = func(node int, parent common.Mat4) error {
			if node < 0 || node >= len(doc.Nodes) {
				return fmt.Errorf("node index %d out of range", node)
			}
			if visited[node] {
				return fmt.Errorf("node %d appears twice in the hierarchy", node)
			}
			visited[node] = true

			n := &doc.Nodes[node]
			world := parent.Mul(gltfNodeMatrix(n))
			if n.Mesh != nil {
				if err := addMesh(*n.Mesh, world); err != nil {
					return fmt.Errorf("node %d: %w", node, err)
				}
			}
			for _, child := range n.Children {
				if err := walk(child, world); err != nil {
					return err
				}
			}
			return nil
		}
		for _, root := range doc.Scenes[scene].Nodes {
			if err := walk(root, common.Identity()); err != nil {
				return nil, err
			}
		}
	}

	if len(out.mesh.Geometries) == 0 {
		return nil, fmt.Errorf("%s: no triangle geometry", name)
	}
	if err := out.mesh.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// gltfNodeMatrix returns the local transform of a node: its matrix, or T * R * S.
func gltfNodeMatrix(n *gltfNode) common.Mat4 {
	if n.Matrix != nil {
		return common.Mat4(*n.Matrix)
	}
	m := common.Identity()
	if n.Translation != nil {
		m = common.Translation(common.Vec3(*n.Translation))
	}
	if n.Rotation != nil {
		m = m.Mul(common.Quat(*n.Rotation).Normalize().Mat4())
	}
	if n.Scale != nil {
		s := *n.Scale
		m = m.Mul(common.Mat4{
			s[0], 0, 0, 0,
			0, s[1], 0, 0,
			0, 0, s[2], 0,
			0, 0, 0, 1,
		})
	}
	return m
}

// resolveURI resolves a URI found in a document against the document source. Relative URIs
// of http(s) documents resolve as URL references; file documents resolve them against their
// directory after percent-decoding.
func resolveURI(source, uri string) string {
	if isURL(source) {
		base, err := url.Parse(source)
		if err != nil {
			return uri
		}
		ref, err := url.Parse(uri)
		if err != nil {
			return uri
		}
		return base.ResolveReference(ref).String()
	}
	if isURL(uri) {
		return uri
	}
	if decoded, err := url.PathUnescape(uri); err == nil {
		uri = decoded
	}
	if path.IsAbs(uri) {
		return uri
	}
	return path.Join(path.Dir(source), uri)
}
