package manifest

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"splicer/internal/media"
	"splicer/internal/services"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://splicer.invalid/schemas/"

const (
	manifestSchema      = "manifest.schema.json"
	stitchRequestSchema = "stitch_request.schema.json"
)

// Document is the persisted description of a finished video job.
type Document struct {
	JobID           string          `json:"jobId"`
	TotalDurationMs int64           `json:"totalDurationMs"`
	SegmentCount    int             `json:"segmentCount"`
	AudioURL        string          `json:"audioUrl,omitempty"`
	Segments        []media.Segment `json:"segments"`
}

// Build assembles a manifest document with segments in ascending index
// order. totalDurationMs is the delivered duration, which may be shorter than
// the sum of segments when audio truncated the output.
func Build(jobID string, segments []media.Segment, audioURL string, totalDurationMs int64) Document {
	sorted := media.SortSegments(segments)
	return Document{
		JobID:           jobID,
		TotalDurationMs: totalDurationMs,
		SegmentCount:    len(sorted),
		AudioURL:        audioURL,
		Segments:        sorted,
	}
}

// Encode serializes the document and validates it against the manifest schema.
func Encode(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Validate checks raw JSON against the manifest schema.
func Validate(raw []byte) error {
	return validate(manifestSchema, raw)
}

// ValidateStitchRequest checks a raw stitch request body against its schema.
func ValidateStitchRequest(raw []byte) error {
	return validate(stitchRequestSchema, raw)
}

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func schemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		names := []string{manifestSchema, stitchRequestSchema}
		for _, name := range names {
			data, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(schemaBaseURL+name, bytes.NewReader(data)); err != nil {
				compileErr = fmt.Errorf("add schema resource %s: %w", name, err)
				return
			}
		}
		out := make(map[string]*jsonschema.Schema, len(names))
		for _, name := range names {
			schema, err := compiler.Compile(schemaBaseURL + name)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			out[name] = schema
		}
		compiled = out
	})
	return compiled, compileErr
}

func validate(name string, raw []byte) error {
	all, err := schemas()
	if err != nil {
		return err
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return &SchemaError{Schema: name, Err: fmt.Errorf("decode json: %w", err)}
	}
	if err := all[name].Validate(payload); err != nil {
		return &SchemaError{Schema: name, Err: err}
	}
	return nil
}

// SchemaError reports a document that failed schema validation.
type SchemaError struct {
	Schema string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %v", e.Schema, e.Err)
}

func (e *SchemaError) Unwrap() []error { return []error{services.ErrValidation, e.Err} }
