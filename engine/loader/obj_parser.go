package loader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
)

var errOBJIndex = errors.New("face index out of range")

// objGroup is a run of faces sharing one material.
type objGroup struct {
	material string
	indices  []uint32
}

// objDecoder parses Wavefront OBJ text. Faces are fan triangulated, vertices are shared by
// their position/uv/normal triple and every usemtl run becomes one geometry.
type objDecoder struct {
	line      int
	positions []common.Vec3
	uvs       [][2]float32
	normals   []common.Vec3

	vertices    []meshVertex
	vertexIndex map[[3]int]uint32
	missingNorm bool

	groups   []*objGroup
	current  *objGroup
	matlibs  []string
	warnings int
}

// decodeOBJ parses an OBJ file and the material libraries it references.
//
// Parameters:
//   - name: the mesh name, usually the source
//   - data: the OBJ text
//   - fetch: loads material libraries, relative to the OBJ file
//   - resolve: maps texture file names to loader sources
//
// Returns:
//   - *meshImport: the decoded asset
//   - error: a parse error naming the line
func decodeOBJ(name string, data []byte, fetch uriFetcher, resolve func(string) string) (*meshImport, error) {
	dec := &objDecoder{vertexIndex: make(map[[3]int]uint32)}
	if err := dec.parse(data, dec.parseObjLine); err != nil {
		return nil, fmt.Errorf("%s: line %d: %w", name, dec.line, err)
	}
	if dec.warnings > 0 {
		common.Logger().Debug("obj statements ignored", "source", name, "count", dec.warnings)
	}

	materials := make(map[string]*importedMaterial)
	for _, lib := range dec.matlibs {
		if fetch == nil {
			break
		}
		text, err := fetch(lib)
		if err != nil {
			common.Logger().Warn("failed to load material library", "source", name, "library", lib, "error", err)
			continue
		}
		if err := decodeMTL(text, resolve, materials); err != nil {
			common.Logger().Warn("failed to parse material library", "source", name, "library", lib, "error", err)
		}
	}

	var indices []uint32
	for _, g := range dec.groups {
		indices = append(indices, g.indices...)
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("%s: no faces", name)
	}
	if dec.missingNorm {
		generateNormals(dec.vertices, indices)
	}
	generateTangents(dec.vertices, indices)

	out := &meshImport{mesh: &model.MeshData{
		Name:       name,
		VertexSize: meshVertexSize,
		Attributes: meshAttributes,
		Vertices:   interleave(nil, dec.vertices),
	}}
	slots := make(map[string]int)
	for _, g := range dec.groups {
		if len(g.indices) == 0 {
			continue
		}
		slot := -1
		if g.material != "" {
			var ok bool
			if slot, ok = slots[g.material]; !ok {
				mat := materials[g.material]
				if mat == nil {
					mat = &importedMaterial{name: g.material, baseColor: common.ColorWhite}
				}
				slot = len(out.materials)
				slots[g.material] = slot
				out.materials = append(out.materials, mat)
			}
		}
		flipWinding(g.indices)
		out.mesh.Geometries = append(out.mesh.Geometries, model.IndexRange{Offset: len(out.mesh.Indices), Count: len(g.indices)})
		out.mesh.Indices = append(out.mesh.Indices, g.indices...)
		out.geometryMaterials = append(out.geometryMaterials, slot)
	}
	if err := out.mesh.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func (dec *objDecoder) parse(data []byte, parseLine func([]string) error) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	dec.line = 0
	for sc.Scan() {
		dec.line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if err := parseLine(fields); err != nil {
			return err
		}
	}
	return sc.Err()
}

func (dec *objDecoder) parseObjLine(fields []string) error {
	switch fields[0] {
	case "v":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		dec.positions = append(dec.positions, common.Vec3(v))
	case "vt":
		v, err := parseFloats(fields[1:], 2)
		if err != nil {
			return err
		}
		// OBJ puts the texture origin at the bottom left.
		dec.uvs = append(dec.uvs, [2]float32{v[0], 1 - v[1]})
	case "vn":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		dec.normals = append(dec.normals, common.Vec3(v).Normalize())
	case "f":
		return dec.parseFace(fields[1:])
	case "usemtl":
		if len(fields) < 2 {
			return errors.New("usemtl with no name")
		}
		dec.startGroup(fields[1])
	case "mtllib":
		dec.matlibs = append(dec.matlibs, fields[1:]...)
	case "o", "g", "s":
		// Objects, groups and smoothing groups do not split geometries.
	default:
		dec.warnings++
	}
	return nil
}

func (dec *objDecoder) startGroup(material string) {
	if dec.current != nil && len(dec.current.indices) == 0 {
		dec.current.material = material
		return
	}
	dec.current = &objGroup{material: material}
	dec.groups = append(dec.groups, dec.current)
}

// parseFace parses f v1[/vt1][/vn1] v2... and fan triangulates polygons.
func (dec *objDecoder) parseFace(fields []string) error {
	if len(fields) < 3 {
		return errors.New("face with fewer than 3 vertices")
	}
	if dec.current == nil {
		dec.startGroup("")
	}

	corners := make([]uint32, len(fields))
	for i, f := range fields {
		parts := strings.Split(f, "/")
		key := [3]int{-1, -1, -1}
		counts := [3]int{len(dec.positions), len(dec.uvs), len(dec.normals)}
		for k := 0; k < len(parts) && k < 3; k++ {
			if parts[k] == "" {
				continue
			}
			idx, err := objIndex(parts[k], counts[k])
			if err != nil {
				return err
			}
			key[k] = idx
		}
		if key[0] < 0 {
			return errors.New("face vertex without a position")
		}
		corners[i] = dec.vertex(key)
	}

	for i := 1; i+1 < len(corners); i++ {
		dec.current.indices = append(dec.current.indices, corners[0], corners[i], corners[i+1])
	}
	return nil
}

// objIndex converts a 1-based or negative relative OBJ index to a 0-based index.
func objIndex(s string, count int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	switch {
	case v > 0 && v <= count:
		return v - 1, nil
	case v < 0 && -v <= count:
		return count + v, nil
	}
	return 0, fmt.Errorf("%d of %d: %w", v, count, errOBJIndex)
}

func (dec *objDecoder) vertex(key [3]int) uint32 {
	if idx, ok := dec.vertexIndex[key]; ok {
		return idx
	}
	v := meshVertex{Position: dec.positions[key[0]], Color: [4]float32{1, 1, 1, 1}}
	if key[1] >= 0 {
		v.TexCoord = dec.uvs[key[1]]
	}
	if key[2] >= 0 {
		v.Normal = dec.normals[key[2]]
	} else {
		dec.missingNorm = true
	}
	idx := uint32(len(dec.vertices))
	dec.vertices = append(dec.vertices, v)
	dec.vertexIndex[key] = idx
	return idx
}

// decodeMTL parses a material library into materials. Diffuse color, dissolve and the
// diffuse, specular and bump maps are read; everything else is ignored.
func decodeMTL(data []byte, resolve func(string) string, materials map[string]*importedMaterial) error {
	var cur *importedMaterial
	dec := &objDecoder{}
	return dec.parse(data, func(fields []string) error {
		if fields[0] == "newmtl" {
			if len(fields) < 2 {
				return errors.New("newmtl with no name")
			}
			cur = &importedMaterial{
				name:      fields[1],
				baseColor: common.ColorWhite,
				textures:  make(map[string]*importedImage),
			}
			materials[cur.name] = cur
			return nil
		}
		if cur == nil {
			return nil
		}
		switch fields[0] {
		case "Kd":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return err
			}
			cur.baseColor = common.Color{v[0], v[1], v[2], cur.baseColor[3]}
		case "d", "Tr":
			v, err := parseFloats(fields[1:], 1)
			if err != nil {
				return err
			}
			alpha := v[0]
			if fields[0] == "Tr" {
				alpha = 1 - alpha
			}
			cur.baseColor[3] = alpha
			cur.blend = alpha < 1
		case "map_Kd", "map_Ks", "map_Bump", "map_bump", "bump", "norm":
			if len(fields) < 2 {
				return fmt.Errorf("%s with no file", fields[0])
			}
			slot := "normalMap"
			switch fields[0] {
			case "map_Kd":
				slot = "diffuseMap"
			case "map_Ks":
				slot = "specularMap"
			}
			// Options such as -s or -bm precede the file name.
			file := fields[len(fields)-1]
			cur.textures[slot] = &importedImage{name: file, source: resolve(file)}
		}
		return nil
	})
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := range n {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}
