// Package path implements the Path & Tree Codec: the LwM2M path grammar
// (parsing, formatting, component extraction) and the structured
// request/response tree format exchanged with the daemon, grounded on
// the teacher's handlers.go manual strings.Split/strconv.Atoi path
// walking, generalized to a reusable, validated Path type.
package path

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/model"
)

// Path identifies an Object, Object Instance, Resource, or Resource
// Instance. Absent trailing components are model.InvalidID.
type Path struct {
	ObjectID           int
	InstanceID         int
	ResourceID         int
	ResourceInstanceID int
}

// Parse validates and decomposes a wire-form path such as "/3/0/1" into
// its components. Absent components (those beyond the final "/") are
// reported as model.InvalidID. It fails with ErrPathInvalid on a
// malformed path: missing leading slash, empty components, out-of-range
// or non-numeric components, or more than four components.
func Parse(s string) (Path, error) {
	if len(s) == 0 || s[0] != '/' {
		return Path{}, fmt.Errorf("%w: path must start with '/': %q", errs.ErrPathInvalid, s)
	}
	trimmed := strings.TrimPrefix(s, "/")
	if trimmed == "" {
		return Path{}, fmt.Errorf("%w: path has no components: %q", errs.ErrPathInvalid, s)
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) > 4 {
		return Path{}, fmt.Errorf("%w: too many components: %q", errs.ErrPathInvalid, s)
	}

	ids := [4]int{model.InvalidID, model.InvalidID, model.InvalidID, model.InvalidID}
	for i, part := range parts {
		if part == "" {
			return Path{}, fmt.Errorf("%w: empty component: %q", errs.ErrPathInvalid, s)
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return Path{}, fmt.Errorf("%w: component %q is not numeric: %q", errs.ErrPathInvalid, part, s)
		}
		if id < 0 || id > model.MaxID {
			return Path{}, fmt.Errorf("%w: component %d out of range: %q", errs.ErrPathInvalid, id, s)
		}
		ids[i] = id
	}

	return Path{
		ObjectID:           ids[0],
		InstanceID:         ids[1],
		ResourceID:         ids[2],
		ResourceInstanceID: ids[3],
	}, nil
}

// Format produces the canonical wire-form string for p, stopping at the
// first absent (model.InvalidID) component.
func (p Path) Format() string {
	var b strings.Builder
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(p.ObjectID))
	if p.InstanceID == model.InvalidID {
		return b.String()
	}
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(p.InstanceID))
	if p.ResourceID == model.InvalidID {
		return b.String()
	}
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(p.ResourceID))
	if p.ResourceInstanceID == model.InvalidID {
		return b.String()
	}
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(p.ResourceInstanceID))
	return b.String()
}

func (p Path) String() string { return p.Format() }

// Ids returns the four components as a plain tuple, matching the
// source's path_to_ids(path) → (O, I?, R?, i?) signature.
func (p Path) Ids() (objectID, instanceID, resourceID, resourceInstanceID int) {
	return p.ObjectID, p.InstanceID, p.ResourceID, p.ResourceInstanceID
}

// Depth reports how many components are present: 1 for an object path,
// up to 4 for a resource-instance path.
func (p Path) Depth() int {
	switch {
	case p.ResourceInstanceID != model.InvalidID:
		return 4
	case p.ResourceID != model.InvalidID:
		return 3
	case p.InstanceID != model.InvalidID:
		return 2
	default:
		return 1
	}
}

// IsObject reports whether p names an object, with no deeper component.
func (p Path) IsObject() bool { return p.Depth() == 1 }

// IsObjectInstance reports whether p names an object instance exactly.
func (p Path) IsObjectInstance() bool { return p.Depth() == 2 }

// IsResource reports whether p names a resource exactly.
func (p Path) IsResource() bool { return p.Depth() == 3 }

// IsResourceInstance reports whether p names a resource instance.
func (p Path) IsResourceInstance() bool { return p.Depth() == 4 }

// Parent returns p with its deepest present component removed, and
// false if p is already an object path (the root of the hierarchy).
func (p Path) Parent() (Path, bool) {
	switch p.Depth() {
	case 4:
		return Path{p.ObjectID, p.InstanceID, p.ResourceID, model.InvalidID}, true
	case 3:
		return Path{p.ObjectID, p.InstanceID, model.InvalidID, model.InvalidID}, true
	case 2:
		return Path{p.ObjectID, model.InvalidID, model.InvalidID, model.InvalidID}, true
	default:
		return Path{}, false
	}
}

// Ancestors returns every ancestor of p, ordered innermost-first — the
// exact order the subscription engine fans out notifications in.
func (p Path) Ancestors() []Path {
	var out []Path
	cur := p
	for {
		parent, ok := cur.Parent()
		if !ok {
			return out
		}
		out = append(out, parent)
		cur = parent
	}
}

// Child returns the path one level deeper than p, with the given id as
// its new deepest component. It fails if p is already a full
// resource-instance path.
func (p Path) Child(id int) (Path, error) {
	switch p.Depth() {
	case 1:
		return Path{p.ObjectID, id, model.InvalidID, model.InvalidID}, nil
	case 2:
		return Path{p.ObjectID, p.InstanceID, id, model.InvalidID}, nil
	case 3:
		return Path{p.ObjectID, p.InstanceID, p.ResourceID, id}, nil
	default:
		return Path{}, fmt.Errorf("%w: path already at maximum depth: %s", errs.ErrPathInvalid, p)
	}
}

// WithResourceInstance returns the resource-instance path at index i
// below p, which must already name a resource. Unlike Child, this is
// infallible: a resource path is always exactly one level above a
// resource-instance path, so there is nothing to validate.
func (p Path) WithResourceInstance(i int) Path {
	return Path{p.ObjectID, p.InstanceID, p.ResourceID, i}
}
