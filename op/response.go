package op

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/model"
	"github.com/lwm2m-go/core/path"
	"github.com/lwm2m-go/core/skiplist"
)

// decodeAttributeValue parses a Discover attribute's text form as an
// integer, falling back to float, per spec §4.D's "integer or float"
// attribute value rule.
func decodeAttributeValue(text string) model.Value {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return model.IntValue(n)
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return model.FloatValue(f)
	}
	return model.StringValue(text)
}

// PathResult is the per-path outcome record of spec §4.D: an error
// classification plus, for Get-flavoured operations, the decoded value.
type PathResult struct {
	Path       path.Path
	Result     path.Result
	Value      model.Value
	Array      *model.Array
	Attributes map[string]model.Value // Discover: attribute name -> value
}

// Success reports whether this path's result was Success.
func (r PathResult) Success() bool { return r.Result.Error == path.ResultSuccess }

// Response is a performed operation's result set: a path-ordered view
// over every path the operation targeted. Backed by the teacher's
// generic skiplist — the same ordered-index structure the Definition
// Registry uses, keyed by path string instead of object/resource ID.
type Response struct {
	registry *model.DefinitionRegistry
	byPath   skiplist.DBIndex[string, PathResult]
	order    []path.Path
}

func newResponse(registry *model.DefinitionRegistry) *Response {
	return &Response{
		registry: registry,
		byPath:   skiplist.NewSkipList[string, PathResult](),
	}
}

func (r *Response) record(pr PathResult) {
	key := pr.Path.Format()
	if _, exists := r.byPath.Find(key); !exists {
		r.order = append(r.order, pr.Path)
	}
	_, _ = r.byPath.Upsert(key, func(_ string, _ PathResult, _ bool) (PathResult, error) {
		return pr, nil
	})
}

// Paths returns every path this response carries a result for, in the
// order those paths appear in the daemon's response tree.
func (r *Response) Paths() []path.Path {
	out := make([]path.Path, len(r.order))
	copy(out, r.order)
	return out
}

// GetPathResult returns the outcome recorded for p.
func (r *Response) GetPathResult(p path.Path) (PathResult, bool) {
	return r.byPath.Find(p.Format())
}

// HasFailure reports whether any path result is non-Success — the
// condition under which Perform returns ErrResponse per spec §7.
func (r *Response) HasFailure() bool {
	all, _ := r.byPath.Query(context.Background(), "", "\xff")
	for _, pr := range all {
		if !pr.Success() {
			return true
		}
	}
	return false
}

func (r *Response) typedValue(p path.Path, want model.Kind) (model.Value, error) {
	pr, found := r.GetPathResult(p)
	if !found {
		return nil, fmt.Errorf("%w: %s", errs.ErrPathNotFound, p)
	}
	if !pr.Success() {
		return nil, fmt.Errorf("%w: %s: %s", errs.ErrResponse, p, pr.Result.Error)
	}
	if pr.Value == nil {
		return nil, fmt.Errorf("%w: %s has no value", errs.ErrResponseInvalid, p)
	}
	if pr.Value.Kind() != want {
		return nil, fmt.Errorf("%w: %s holds %s, want %s", errs.ErrTypeMismatch, p, pr.Value.Kind(), want)
	}
	return pr.Value, nil
}

// GetString returns the string value at p.
func (r *Response) GetString(p path.Path) (string, error) {
	v, err := r.typedValue(p, model.KindString)
	if err != nil {
		return "", err
	}
	return string(v.(model.StringValue)), nil
}

// GetInt returns the integer value at p.
func (r *Response) GetInt(p path.Path) (int64, error) {
	v, err := r.typedValue(p, model.KindInteger)
	if err != nil {
		return 0, err
	}
	return int64(v.(model.IntValue)), nil
}

// GetFloat returns the float value at p.
func (r *Response) GetFloat(p path.Path) (float64, error) {
	v, err := r.typedValue(p, model.KindFloat)
	if err != nil {
		return 0, err
	}
	return float64(v.(model.FloatValue)), nil
}

// GetBool returns the boolean value at p.
func (r *Response) GetBool(p path.Path) (bool, error) {
	v, err := r.typedValue(p, model.KindBoolean)
	if err != nil {
		return false, err
	}
	return bool(v.(model.BoolValue)), nil
}

// GetOpaque returns the opaque byte payload at p. Unlike the source's
// copy-into-caller-buffer accessor, this returns a fresh slice — Go has
// no caller-managed buffer convention to mirror here.
func (r *Response) GetOpaque(p path.Path) ([]byte, error) {
	v, err := r.typedValue(p, model.KindOpaque)
	if err != nil {
		return nil, err
	}
	data := v.(model.OpaqueValue).Data
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// GetTime returns the time value at p.
func (r *Response) GetTime(p path.Path) (int64, error) {
	v, err := r.typedValue(p, model.KindTime)
	if err != nil {
		return 0, err
	}
	return int64(v.(model.TimeValue)), nil
}

// GetObjectLink returns the object-link value at p.
func (r *Response) GetObjectLink(p path.Path) (model.ObjectLinkValue, error) {
	v, err := r.typedValue(p, model.KindObjectLink)
	if err != nil {
		return model.ObjectLinkValue{}, err
	}
	return v.(model.ObjectLinkValue), nil
}

// resourceKind looks up the scalar kind a resource was Defined with, so
// the response decoder knows how to parse its wire text. Returns false
// if the registry has no definition for the path (e.g. an
// operation that never needs typed decoding, like Delete or Execute).
func (r *Response) resourceKind(p path.Path) (model.Kind, bool) {
	if r.registry == nil {
		return model.KindNone, false
	}
	obj, found := r.registry.GetObjectDefinition(p.ObjectID)
	if !found {
		return model.KindNone, false
	}
	res, found := obj.Resource(p.ResourceID)
	if !found {
		return model.KindNone, false
	}
	return res.Kind, true
}

func resultOf(res *path.Result) path.Result {
	if res == nil {
		return path.Result{Error: path.ResultSuccess}
	}
	return *res
}

// populateFromTree records one PathResult per leaf Object/ObjectInstance
// node and per Resource node in t, decoding scalar values and grouping
// ResourceInstance children into an Array on their resource's result
// where the registry knows the resource's kind. ResourceInstance nodes
// get no PathResult of their own. A node with no explicit Result is
// treated as Success, matching a daemon that only annotates failures.
func (r *Response) populateFromTree(t path.Tree) {
	for _, o := range t.Objects {
		op := path.Path{ObjectID: o.ID, InstanceID: model.InvalidID, ResourceID: model.InvalidID, ResourceInstanceID: model.InvalidID}
		if len(o.Instances) == 0 {
			r.record(PathResult{Path: op, Result: resultOf(o.Result)})
			continue
		}
		for _, inst := range o.Instances {
			ip := path.Path{ObjectID: o.ID, InstanceID: inst.ID, ResourceID: model.InvalidID, ResourceInstanceID: model.InvalidID}
			if len(inst.Resources) == 0 {
				r.record(PathResult{Path: ip, Result: resultOf(inst.Result)})
				continue
			}
			for _, res := range inst.Resources {
				rp := path.Path{ObjectID: o.ID, InstanceID: inst.ID, ResourceID: res.ID, ResourceInstanceID: model.InvalidID}
				pr := PathResult{Path: rp, Result: resultOf(res.Result)}
				kind, known := r.resourceKind(rp)
				switch {
				case len(res.Instances) > 0:
					if known && kind.IsArray() {
						arr := model.NewArray(kind.Scalar())
						for _, ri := range res.Instances {
							if ri.Value == nil {
								continue
							}
							v, err := path.DecodeValue(kind.Scalar(), *ri.Value)
							if err == nil {
								_ = arr.Set(ri.ID, v)
							}
						}
						pr.Array = arr
					}
				case res.Value != nil && known:
					if v, err := path.DecodeValue(kind, *res.Value); err == nil {
						pr.Value = v
					}
				}
				if len(res.Attributes) > 0 {
					pr.Attributes = make(map[string]model.Value, len(res.Attributes))
					for _, a := range res.Attributes {
						pr.Attributes[a.Name] = decodeAttributeValue(a.Value)
					}
				}
				r.record(pr)
			}
		}
	}
}

// GetArray returns the resource-instance array recorded at p.
func (r *Response) GetArray(p path.Path) (*model.Array, error) {
	pr, found := r.GetPathResult(p)
	if !found {
		return nil, fmt.Errorf("%w: %s", errs.ErrPathNotFound, p)
	}
	if !pr.Success() {
		return nil, fmt.Errorf("%w: %s: %s", errs.ErrResponse, p, pr.Result.Error)
	}
	if pr.Array == nil {
		return nil, fmt.Errorf("%w: %s has no array", errs.ErrResponseInvalid, p)
	}
	return pr.Array, nil
}

// GetAttributes returns the Discover attribute set recorded at p.
func (r *Response) GetAttributes(p path.Path) (map[string]model.Value, error) {
	pr, found := r.GetPathResult(p)
	if !found {
		return nil, fmt.Errorf("%w: %s", errs.ErrPathNotFound, p)
	}
	if !pr.Success() {
		return nil, fmt.Errorf("%w: %s: %s", errs.ErrResponse, p, pr.Result.Error)
	}
	if pr.Attributes == nil {
		return nil, fmt.Errorf("%w: %s has no attributes", errs.ErrResponseInvalid, p)
	}
	return pr.Attributes, nil
}
