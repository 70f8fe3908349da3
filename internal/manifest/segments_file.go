package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"splicer/internal/media"
	"splicer/internal/services"
)

// SegmentFile is the on-disk description of a stitch job accepted by the CLI.
// It may also be written as a bare list of segments.
type SegmentFile struct {
	Segments  []media.Segment `json:"segments" yaml:"segments"`
	AudioURL  string          `json:"audioUrl,omitempty" yaml:"audioUrl,omitempty"`
	OutputKey string          `json:"outputKey,omitempty" yaml:"outputKey,omitempty"`
}

// Format names a segment file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks an encoding from the file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DecodeSegmentFile parses a JSON or YAML segment file.
func DecodeSegmentFile(data []byte, format Format) (SegmentFile, error) {
	var file SegmentFile
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return file, services.Wrap(services.ErrValidation, "manifest", "decode", "segment file is empty", nil)
	}

	switch format {
	case FormatYAML:
		var node yaml.Node
		if err := yaml.Unmarshal(trimmed, &node); err != nil {
			return file, services.Wrap(services.ErrValidation, "manifest", "decode yaml", "", err)
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			if err := node.Content[0].Decode(&file.Segments); err != nil {
				return file, services.Wrap(services.ErrValidation, "manifest", "decode yaml", "", err)
			}
		} else if err := node.Decode(&file); err != nil {
			return file, services.Wrap(services.ErrValidation, "manifest", "decode yaml", "", err)
		}
	case FormatJSON:
		var err error
		if trimmed[0] == '[' {
			err = json.Unmarshal(trimmed, &file.Segments)
		} else {
			err = json.Unmarshal(trimmed, &file)
		}
		if err != nil {
			return file, services.Wrap(services.ErrValidation, "manifest", "decode json", "", err)
		}
	default:
		return file, fmt.Errorf("segment file: unsupported format %q", format)
	}

	if err := media.ValidateSegments(file.Segments); err != nil {
		return file, services.Wrap(services.ErrValidation, "manifest", "validate segments", "", err)
	}
	return file, nil
}
