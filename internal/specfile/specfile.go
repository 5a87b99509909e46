// Package specfile reads query specs, create records and update pairs from
// JSON, YAML or CUE files.
//
// Every format is reduced to a wire value, so the JSON marker objects
// ({"__ref__": ...}, {"__timestamp__": ...}, {"__geo__": ...},
// {"__undefined__": true}) work the same way in all three.
package specfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/firedesk/internal/query"
	"github.com/roach88/firedesk/internal/wire"
)

// Format is an input file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// FormatOf picks the format from the file extension. Unknown extensions
// and stdin ("-") are read as JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".cue":
		return FormatCUE
	default:
		return FormatJSON
	}
}

// Load reads path ("-" for stdin) and decodes it by extension.
func Load(path string) (wire.Value, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	v, err := Decode(data, FormatOf(path), path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Decode converts data in format to a wire value. name labels CUE
// positions in errors.
func Decode(data []byte, format Format, name string) (wire.Value, error) {
	switch format {
	case FormatJSON:
		return wire.Parse(data)
	case FormatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		return wire.FromAny(raw)
	case FormatCUE:
		return decodeCUE(data, name)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// decodeCUE evaluates a CUE file, which must be concrete, and exports it
// through JSON so integers and floats keep their kinds.
func decodeCUE(data []byte, name string) (wire.Value, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE value is not concrete: %w", err)
	}
	out, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export CUE: %w", err)
	}
	return wire.Parse(out)
}

// Query loads a query spec.
func Query(path string) (*query.Spec, error) {
	v, err := Load(path)
	if err != nil {
		return nil, err
	}
	spec, err := query.FromWire(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// Records loads create records: a list of objects, or one object.
func Records(path string) ([]wire.Map, error) {
	v, err := Load(path)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case wire.Map:
		return []wire.Map{x}, nil
	case wire.List:
		out := make([]wire.Map, len(x))
		for i, elem := range x {
			m, ok := elem.(wire.Map)
			if !ok {
				return nil, fmt.Errorf("%s: record %d must be an object, got %s", path, i, wire.KindOf(elem))
			}
			out[i] = m
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: records must be a list of objects, got %s", path, wire.KindOf(v))
	}
}

// Updates loads a flat list of alternating field selectors and values.
func Updates(path string) ([]wire.Value, error) {
	v, err := Load(path)
	if err != nil {
		return nil, err
	}
	list, ok := v.(wire.List)
	if !ok {
		return nil, fmt.Errorf("%s: updates must be a list of alternating fields and values, got %s", path, wire.KindOf(v))
	}
	return list, nil
}
