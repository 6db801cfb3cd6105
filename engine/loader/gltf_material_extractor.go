package loader

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-scene/common"
)

// gltfMaterialExtractorImpl is the implementation of the gltfMaterialExtractor interface.
type gltfMaterialExtractorImpl struct {
	parser  gltfParser
	resolve func(uri string) string
	images  map[int]*importedImage
}

// gltfMaterialExtractor reads material parameters and decodes embedded images.
type gltfMaterialExtractor interface {
	// ExtractMaterial maps a glTF material. The base color texture becomes the diffuse map,
	// the normal and emissive textures keep their roles. Metallic-roughness data is ignored.
	//
	// Parameters:
	//   - materialIndex: the glTF material index
	//
	// Returns:
	//   - *importedMaterial: the mapped material
	//   - error: error if an embedded image cannot be decoded
	ExtractMaterial(materialIndex int) (*importedMaterial, error)
}

var _ gltfMaterialExtractor = &gltfMaterialExtractorImpl{}

// newGLTFMaterialExtractor creates an extractor. resolve turns an image URI into a loader
// source.
func newGLTFMaterialExtractor(parser gltfParser, resolve func(uri string) string) gltfMaterialExtractor {
	return &gltfMaterialExtractorImpl{
		parser:  parser,
		resolve: resolve,
		images:  make(map[int]*importedImage),
	}
}

func (e *gltfMaterialExtractorImpl) ExtractMaterial(materialIndex int) (*importedMaterial, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if materialIndex < 0 || materialIndex >= len(doc.Materials) {
		return nil, fmt.Errorf("material index %d out of range", materialIndex)
	}

	mat := &doc.Materials[materialIndex]
	result := &importedMaterial{
		name:        common.Coalesce(mat.Name, fmt.Sprintf("material_%d", materialIndex)),
		baseColor:   common.ColorWhite,
		blend:       mat.AlphaMode == "BLEND",
		doubleSided: mat.DoubleSided,
		textures:    make(map[string]*importedImage),
	}

	slots := map[string]*gltfTextureInfo{
		"normalMap":   mat.NormalTexture,
		"emissionMap": mat.EmissiveTexture,
	}
	if pbr := mat.PbrMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			result.baseColor = common.Color(*pbr.BaseColorFactor)
		}
		slots["diffuseMap"] = pbr.BaseColorTexture
	}

	for _, slot := range slices.Sorted(maps.Keys(slots)) {
		info := slots[slot]
		if info == nil {
			continue
		}
		img, err := e.loadTexture(info.Index)
		if err != nil {
			return nil, fmt.Errorf("material %q: %s: %w", result.name, slot, err)
		}
		if img != nil {
			result.textures[slot] = img
		}
	}
	return result, nil
}

// loadTexture resolves a glTF texture index. Images embedded in a buffer view or a data URI
// are decoded here; external files are left to the loader. Images shared between materials
// are decoded once.
func (e *gltfMaterialExtractorImpl) loadTexture(textureIndex int) (*importedImage, error) {
	doc := e.parser.Document()
	if textureIndex < 0 || textureIndex >= len(doc.Textures) {
		return nil, fmt.Errorf("texture index %d out of range", textureIndex)
	}
	tex := &doc.Textures[textureIndex]
	if tex.Source == nil {
		return nil, nil
	}

	imageIndex := *tex.Source
	if cached, ok := e.images[imageIndex]; ok {
		return cached, nil
	}
	if imageIndex < 0 || imageIndex >= len(doc.Images) {
		return nil, fmt.Errorf("image index %d out of range", imageIndex)
	}
	img := &doc.Images[imageIndex]
	result := &importedImage{name: common.Coalesce(img.Name, img.URI, fmt.Sprintf("image_%d", imageIndex))}

	var encoded []byte
	switch {
	case img.BufferView != nil:
		data, err := e.parser.ReadBufferView(*img.BufferView)
		if err != nil {
			return nil, fmt.Errorf("failed to read image buffer view: %w", err)
		}
		encoded = data
	case strings.HasPrefix(img.URI, "data:"):
		data, _, err := decodeDataURI(img.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image data URI: %w", err)
		}
		encoded = data
	case img.URI != "":
		result.source = e.resolve(img.URI)
	default:
		return nil, nil
	}

	if encoded != nil {
		decoded, err := common.DecodeImage(encoded)
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", result.name, err)
		}
		result.image = decoded
	}
	e.images[imageIndex] = result
	return result, nil
}
