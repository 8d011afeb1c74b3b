// Package model also implements loaders that bulk-import Object and
// Resource Definitions from a manifest file, the way the teacher's
// jsondata.ValidSchema compiles a JSON Schema once and validates
// document bodies against it.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/lwm2m-go/core/errs"
)

// manifestSchema is the bundled JSON Schema every JSON manifest must
// satisfy before its entries are handed to DefineObject/DefineResource.
// It only constrains shape (types, required fields); the semantic
// rules (Execute/kind mutual exclusion, min<=max, …) are still enforced
// by the registry itself, same division of labor as the teacher's
// schema-validates-shape / PutDocument-enforces-mode split.
const manifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "name", "resources"],
    "properties": {
      "id": {"type": "integer", "minimum": 0, "maximum": 65535},
      "name": {"type": "string", "minLength": 1},
      "minInstance": {"type": "integer"},
      "maxInstance": {"type": "integer"},
      "resources": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["id", "name", "kind", "access"],
          "properties": {
            "id": {"type": "integer", "minimum": 0, "maximum": 65535},
            "name": {"type": "string", "minLength": 1},
            "kind": {"type": "string"},
            "access": {"type": "string"},
            "minInstance": {"type": "integer"},
            "maxInstance": {"type": "integer"}
          }
        }
      }
    }
  }
}`

// ManifestObject is one object entry in a definition manifest.
type ManifestObject struct {
	ID          int                `json:"id" yaml:"id"`
	Name        string             `json:"name" yaml:"name"`
	MinInstance int                `json:"minInstance" yaml:"minInstance"`
	MaxInstance int                `json:"maxInstance" yaml:"maxInstance"`
	Resources   []ManifestResource `json:"resources" yaml:"resources"`
}

// ManifestResource is one resource entry within a ManifestObject.
type ManifestResource struct {
	ID          int    `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Kind        string `json:"kind" yaml:"kind"`
	Access      string `json:"access" yaml:"access"`
	MinInstance int    `json:"minInstance" yaml:"minInstance"`
	MaxInstance int    `json:"maxInstance" yaml:"maxInstance"`
}

// LoadDefinitionManifest validates r's contents against the bundled
// JSON Schema, then defines every object/resource it describes on
// registry. Unlike a single DefineObject call, failures on individual
// entries do not stop the load — every failure is collected into the
// returned *multierror.Error so the caller can see every bad entry in
// one pass, matching go-multierror's "independent failures" idiom.
func LoadDefinitionManifest(r io.Reader, registry *DefinitionRegistry) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("model: reading manifest: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("manifest-schema.json", bytes.NewReader([]byte(manifestSchema))); err != nil {
		return fmt.Errorf("model: compiling bundled manifest schema: %w", err)
	}
	schema, err := compiler.Compile("manifest-schema.json")
	if err != nil {
		return fmt.Errorf("model: compiling bundled manifest schema: %w", err)
	}

	var unmarshalled any
	if err := json.Unmarshal(raw, &unmarshalled); err != nil {
		return fmt.Errorf("%w: manifest is not valid JSON: %v", errs.ErrDefinitionInvalid, err)
	}
	if err := schema.Validate(unmarshalled); err != nil {
		return fmt.Errorf("%w: manifest does not match schema: %v", errs.ErrDefinitionInvalid, err)
	}

	var objs []ManifestObject
	if err := json.Unmarshal(raw, &objs); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrDefinitionInvalid, err)
	}
	return applyManifest(objs, registry)
}

// LoadDefinitionManifestYAML reads the same manifest shape from YAML
// without schema validation — the friendlier, hand-editable form.
func LoadDefinitionManifestYAML(r io.Reader, registry *DefinitionRegistry) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("model: reading manifest: %w", err)
	}
	var objs []ManifestObject
	if err := yaml.Unmarshal(raw, &objs); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrDefinitionInvalid, err)
	}
	return applyManifest(objs, registry)
}

func applyManifest(objs []ManifestObject, registry *DefinitionRegistry) error {
	var result *multierror.Error
	for _, o := range objs {
		if err := registry.DefineObject(o.ID, o.Name, o.MinInstance, o.MaxInstance); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		for _, res := range o.Resources {
			kind, err := kindFromString(res.Kind)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("object %d resource %d: %w", o.ID, res.ID, err))
				continue
			}
			access, err := accessFromString(res.Access)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("object %d resource %d: %w", o.ID, res.ID, err))
				continue
			}
			if err := registry.DefineResource(o.ID, res.ID, res.Name, kind, res.MinInstance, res.MaxInstance, access); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result.ErrorOrNil()
}

// ParseManifestKindAccess converts a manifest entry's string kind/access
// pair into their typed enum values, for callers (such as op.Define)
// that build ManifestResource entries programmatically instead of
// loading them from a file.
func ParseManifestKindAccess(kind, access string) (Kind, Access, error) {
	k, err := kindFromString(kind)
	if err != nil {
		return KindNone, AccessNone, err
	}
	a, err := accessFromString(access)
	if err != nil {
		return KindNone, AccessNone, err
	}
	return k, a, nil
}

func kindFromString(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "none":
		return KindNone, nil
	case "string":
		return KindString, nil
	case "integer":
		return KindInteger, nil
	case "float":
		return KindFloat, nil
	case "boolean":
		return KindBoolean, nil
	case "opaque":
		return KindOpaque, nil
	case "time":
		return KindTime, nil
	case "objectlink":
		return KindObjectLink, nil
	case "stringarray":
		return KindStringArray, nil
	case "integerarray":
		return KindIntegerArray, nil
	case "floatarray":
		return KindFloatArray, nil
	case "booleanarray":
		return KindBooleanArray, nil
	case "opaquearray":
		return KindOpaqueArray, nil
	case "timearray":
		return KindTimeArray, nil
	case "objectlinkarray":
		return KindObjectLinkArray, nil
	default:
		return KindNone, fmt.Errorf("%w: unknown kind %q", errs.ErrDefinitionInvalid, s)
	}
}

func accessFromString(s string) (Access, error) {
	switch strings.ToLower(s) {
	case "none":
		return AccessNone, nil
	case "readonly":
		return AccessReadOnly, nil
	case "writeonly":
		return AccessWriteOnly, nil
	case "readwrite":
		return AccessReadWrite, nil
	case "execute":
		return AccessExecute, nil
	default:
		return AccessNone, fmt.Errorf("%w: unknown access %q", errs.ErrDefinitionInvalid, s)
	}
}
