package model

import (
	"context"
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/skiplist"
)

// ResourceDefinition describes the shape of one resource within an
// object: its name, kind, cardinality, and access mode. Execute is
// only valid on a None-kind resource, and is mutually exclusive with
// read/write access — enforced in DefineResource.
type ResourceDefinition struct {
	ObjectID    int
	ResourceID  int
	Name        string
	Kind        Kind
	IsMultiple  bool
	MinInstance int
	MaxInstance int
	Access      Access
	Default     []Value
}

// ObjectDefinition describes one Object: its ID, name, instance
// cardinality, and the resource definitions keyed by resource ID.
type ObjectDefinition struct {
	ObjectID    int
	Name        string
	MinInstance int
	MaxInstance int

	resources skiplist.DBIndex[int, ResourceDefinition]
}

// Resource returns the definition for resource id within this object.
func (o ObjectDefinition) Resource(id int) (ResourceDefinition, bool) {
	return o.resources.Find(id)
}

// Resources returns every resource definition of this object, sorted
// by resource ID.
func (o ObjectDefinition) Resources() []ResourceDefinition {
	all, _ := o.resources.Query(context.Background(), 0, MaxID+1)
	slices.SortFunc(all, func(a, b ResourceDefinition) int { return a.ResourceID - b.ResourceID })
	return all
}

// DefinitionRegistry is the canonical store of Object and Resource
// Definitions for one session. It mirrors the teacher's
// database.Database: a skiplist keyed by identifier instead of by
// document name, with the same Upsert-guarded create-once discipline.
type DefinitionRegistry struct {
	objects skiplist.DBIndex[int, ObjectDefinition]
}

// NewDefinitionRegistry returns an empty registry.
func NewDefinitionRegistry() *DefinitionRegistry {
	return &DefinitionRegistry{objects: skiplist.NewSkipList[int, ObjectDefinition]()}
}

// DefineObject registers a new object definition. It fails with
// ErrAlreadyDefined if id is already defined, and with
// ErrDefinitionInvalid for a malformed request — neither mutates the
// registry.
func (r *DefinitionRegistry) DefineObject(id int, name string, minInstance, maxInstance int) error {
	if err := validateDefinitionShape(id, name, minInstance, maxInstance); err != nil {
		return err
	}
	updateCheck := func(key int, curr ObjectDefinition, exists bool) (ObjectDefinition, error) {
		if exists {
			return curr, fmt.Errorf("%w: object %d", errs.ErrAlreadyDefined, id)
		}
		return ObjectDefinition{
			ObjectID:    id,
			Name:        name,
			MinInstance: minInstance,
			MaxInstance: maxInstance,
			resources:   skiplist.NewSkipList[int, ResourceDefinition](),
		}, nil
	}
	_, err := r.objects.Upsert(id, updateCheck)
	return err
}

// DefineResource registers a new resource definition within an already
// defined object. It fails with ErrNotDefined if the object itself is
// undefined, ErrAlreadyDefined if resourceID is already defined on that
// object, and ErrDefinitionInvalid for shape violations — including the
// Execute/kind/access mutual-exclusion rule from spec §3.
func (r *DefinitionRegistry) DefineResource(objectID, resourceID int, name string, kind Kind, min, max int, access Access) error {
	obj, found := r.objects.Find(objectID)
	if !found {
		return fmt.Errorf("%w: object %d", errs.ErrNotDefined, objectID)
	}
	if err := validateDefinitionShape(resourceID, name, min, max); err != nil {
		return err
	}
	if access == AccessExecute && kind != KindNone {
		return fmt.Errorf("%w: resource %d/%d: Execute access requires None kind", errs.ErrDefinitionInvalid, objectID, resourceID)
	}
	if kind == KindNone && access != AccessExecute && access != AccessNone {
		return fmt.Errorf("%w: resource %d/%d: None kind only supports Execute or None access", errs.ErrDefinitionInvalid, objectID, resourceID)
	}

	updateCheck := func(key int, curr ResourceDefinition, exists bool) (ResourceDefinition, error) {
		if exists {
			return curr, fmt.Errorf("%w: resource %d/%d", errs.ErrAlreadyDefined, objectID, resourceID)
		}
		return ResourceDefinition{
			ObjectID:    objectID,
			ResourceID:  resourceID,
			Name:        name,
			Kind:        kind,
			IsMultiple:  max > 1 || min > 1,
			MinInstance: min,
			MaxInstance: max,
			Access:      access,
		}, nil
	}
	_, err := obj.resources.Upsert(resourceID, updateCheck)
	return err
}

// IsObjectDefined reports whether id has been registered.
func (r *DefinitionRegistry) IsObjectDefined(id int) bool {
	_, found := r.objects.Find(id)
	return found
}

// GetObjectDefinition returns the definition for id, or false if
// undefined. The returned value is safe to retain past further registry
// mutation (spec §4.A calls this "borrowed" in the source's
// manual-memory model, but in Go there is nothing to dangle). Its
// scalar fields are copies, but it shares its resource index with the
// registry, so resources defined on the object later are visible
// through it.
func (r *DefinitionRegistry) GetObjectDefinition(id int) (ObjectDefinition, bool) {
	return r.objects.Find(id)
}

// IterateDefinitions returns every object definition, ordered by
// object ID for a stable, reproducible iteration within one call —
// spec §4.A only requires stability within a single iterator, but a
// deterministic total order is strictly stronger and simpler to
// implement via the teacher's already-required golang.org/x/exp dep.
func (r *DefinitionRegistry) IterateDefinitions() []ObjectDefinition {
	all, _ := r.objects.Query(context.Background(), 0, MaxID+1)
	byID := make(map[int]ObjectDefinition, len(all))
	for _, o := range all {
		byID[o.ObjectID] = o
	}
	ids := maps.Keys(byID)
	slices.Sort(ids)
	out := make([]ObjectDefinition, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

func validateDefinitionShape(id int, name string, min, max int) error {
	if id < 0 || id > MaxID {
		return fmt.Errorf("%w: id %d out of range", errs.ErrDefinitionInvalid, id)
	}
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", errs.ErrDefinitionInvalid)
	}
	if min > max {
		return fmt.Errorf("%w: min %d > max %d", errs.ErrDefinitionInvalid, min, max)
	}
	return nil
}
