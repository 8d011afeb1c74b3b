package path

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/model"
)

// EncodeTree renders t to its wire XML form.
func EncodeTree(t Tree) ([]byte, error) {
	out, err := xml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("path: encoding tree: %w", err)
	}
	return out, nil
}

// DecodeTree parses the wire XML form of an Objects subtree. Tags this
// codec does not recognise are silently ignored by encoding/xml's
// default unmarshal behaviour, satisfying the forward-compatibility
// requirement in spec §4.B.
func DecodeTree(data []byte) (Tree, error) {
	var t Tree
	if err := xml.Unmarshal(data, &t); err != nil {
		return Tree{}, fmt.Errorf("%w: %v", errs.ErrPathInvalid, err)
	}
	return t, nil
}

// EncodeValue renders v as wire text per spec §4.B/§6: opaque is
// base64, string is raw text, booleans are "True"/"False", floats are
// decimal with round-trip precision, integers are signed decimal,
// object-links are "O:I".
func EncodeValue(v model.Value) (string, error) {
	switch val := v.(type) {
	case model.NoneValue:
		return "", nil
	case model.StringValue:
		return string(val), nil
	case model.IntValue:
		return strconv.FormatInt(int64(val), 10), nil
	case model.FloatValue:
		return strconv.FormatFloat(float64(val), 'g', -1, 64), nil
	case model.BoolValue:
		if val {
			return "True", nil
		}
		return "False", nil
	case model.OpaqueValue:
		return val.Base64(), nil
	case model.TimeValue:
		return strconv.FormatInt(int64(val), 10), nil
	case model.ObjectLinkValue:
		return val.String(), nil
	default:
		return "", fmt.Errorf("%w: cannot encode value of kind %s", errs.ErrTypeMismatch, v.Kind())
	}
}

// DecodeValue parses wire text back into a typed Value for the given
// scalar kind. Kind must not be an array kind; array membership is a
// structural property of the tree (ResourceInstance children), not of
// the scalar codec.
func DecodeValue(kind model.Kind, text string) (model.Value, error) {
	switch kind {
	case model.KindNone:
		return model.NoneValue{}, nil
	case model.KindString:
		return model.StringValue(text), nil
	case model.KindInteger:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid integer %q: %v", errs.ErrTypeMismatch, text, err)
		}
		return model.IntValue(n), nil
	case model.KindFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid float %q: %v", errs.ErrTypeMismatch, text, err)
		}
		return model.FloatValue(f), nil
	case model.KindBoolean:
		switch text {
		case "True":
			return model.BoolValue(true), nil
		case "False":
			return model.BoolValue(false), nil
		default:
			return nil, fmt.Errorf("%w: invalid boolean %q", errs.ErrTypeMismatch, text)
		}
	case model.KindOpaque:
		v, err := model.ParseOpaqueBase64(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrTypeMismatch, err)
		}
		return v, nil
	case model.KindTime:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid time %q: %v", errs.ErrTypeMismatch, text, err)
		}
		return model.TimeValue(n), nil
	case model.KindObjectLink:
		objectID, instanceID, err := parseObjectLink(text)
		if err != nil {
			return nil, err
		}
		return model.ObjectLinkValue{ObjectID: objectID, InstanceID: instanceID}, nil
	default:
		return nil, fmt.Errorf("%w: %s is not a scalar kind", errs.ErrTypeMismatch, kind)
	}
}

func parseObjectLink(text string) (objectID, instanceID int, err error) {
	parts := strings.SplitN(text, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: invalid object link %q", errs.ErrTypeMismatch, text)
	}
	objectID, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid object link %q", errs.ErrTypeMismatch, text)
	}
	instanceID, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid object link %q", errs.ErrTypeMismatch, text)
	}
	return objectID, instanceID, nil
}

// LeafEntry is one leaf of a Tree (a Resource or ResourceInstance
// node), reconstructed as a full Path plus whatever payload it carried.
type LeafEntry struct {
	Path      Path
	Value     *string
	Subscribe *SubscribeTag
	Result    *Result
	Change    *string
}

// Build assembles a minimal Tree from an unordered set of leaf entries,
// merging shared Object/ObjectInstance/Resource prefixes — spec §4.B's
// "accept an unordered set of input paths and produce a minimal tree"
// requirement.
func Build(entries []LeafEntry) (Tree, error) {
	b := newBuilder()
	for _, e := range entries {
		if err := b.add(e.Path, e.Value, e.Result, e.Subscribe, e.Change, e.Result); err != nil {
			return Tree{}, err
		}
	}
	return b.build(), nil
}

// Leaves walks t and returns every Resource/ResourceInstance leaf as a
// flat, fully-qualified LeafEntry list, in tree order. Object and
// ObjectInstance nodes that carry only a Result (no resources) are
// still emitted, so a NotFound/PathNotFound Result higher in the tree
// is not lost.
func (t Tree) Leaves() []LeafEntry {
	var out []LeafEntry
	for _, o := range t.Objects {
		op := Path{ObjectID: o.ID, InstanceID: model.InvalidID, ResourceID: model.InvalidID, ResourceInstanceID: model.InvalidID}
		if len(o.Instances) == 0 {
			out = append(out, LeafEntry{Path: op, Result: o.Result})
			continue
		}
		for _, inst := range o.Instances {
			ip := Path{ObjectID: o.ID, InstanceID: inst.ID, ResourceID: model.InvalidID, ResourceInstanceID: model.InvalidID}
			if len(inst.Resources) == 0 {
				out = append(out, LeafEntry{Path: ip, Result: inst.Result})
				continue
			}
			for _, res := range inst.Resources {
				rp := Path{ObjectID: o.ID, InstanceID: inst.ID, ResourceID: res.ID, ResourceInstanceID: model.InvalidID}
				if len(res.Instances) == 0 {
					out = append(out, LeafEntry{Path: rp, Value: res.Value, Subscribe: res.Subscribe, Result: res.Result, Change: res.Change})
					continue
				}
				for _, ri := range res.Instances {
					rip := Path{ObjectID: o.ID, InstanceID: inst.ID, ResourceID: res.ID, ResourceInstanceID: ri.ID}
					out = append(out, LeafEntry{Path: rip, Value: ri.Value, Result: ri.Result})
				}
			}
		}
	}
	return out
}

// StringPtr is a small convenience for building LeafEntry.Value from a
// literal, since Go has no address-of-literal operator.
func StringPtr(s string) *string { return &s }
