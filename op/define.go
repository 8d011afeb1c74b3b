package op

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/model"
	"github.com/lwm2m-go/core/path"
	"github.com/lwm2m-go/core/session"
)

// DefineOperation sends one or more Object/Resource Definitions to the
// daemon and, on a successful perform, imports the same definitions
// into the session's local registry — spec §4.D's "Define" operation.
// Grounded on PutHandler's validate-then-persist shape, adapted from
// a single document write into a batch of definition entries encoded
// with the same JSON shape model.LoadDefinitionManifest already reads.
type DefineOperation struct {
	base
	objects map[int]*model.ManifestObject
	order   []int
}

// NewDefine starts a Define operation against s.
func NewDefine(s *session.Session) *DefineOperation {
	return &DefineOperation{
		base:    newBase(s, KindDefine),
		objects: make(map[int]*model.ManifestObject),
	}
}

// AddObjectDefinition queues a new object definition for the batch.
// Adding the same object ID twice within one operation is rejected
// with ErrAddInvalid (unlike Set's last-wins tie-break, a definition
// batch has no sensible "replace" semantics for a duplicate ID).
func (o *DefineOperation) AddObjectDefinition(id int, name string, minInstance, maxInstance int) error {
	if id < 0 || id > model.MaxID {
		return fmt.Errorf("%w: object id %d out of range", errs.ErrAddInvalid, id)
	}
	if name == "" {
		return fmt.Errorf("%w: object name must not be empty", errs.ErrAddInvalid)
	}
	if minInstance > maxInstance {
		return fmt.Errorf("%w: min %d > max %d", errs.ErrAddInvalid, minInstance, maxInstance)
	}
	if _, exists := o.objects[id]; exists {
		return fmt.Errorf("%w: object %d already added to this Define operation", errs.ErrAddInvalid, id)
	}
	o.objects[id] = &model.ManifestObject{ID: id, Name: name, MinInstance: minInstance, MaxInstance: maxInstance}
	o.order = append(o.order, id)
	p, err := path.Parse(fmt.Sprintf("/%d", id))
	if err != nil {
		return err
	}
	o.addEntry(path.LeafEntry{Path: p})
	return nil
}

// AddResourceDefinition queues a resource definition within an object
// already added to this batch via AddObjectDefinition.
func (o *DefineOperation) AddResourceDefinition(objectID, resourceID int, name string, kind model.Kind, minInstance, maxInstance int, access model.Access) error {
	obj, found := o.objects[objectID]
	if !found {
		return fmt.Errorf("%w: object %d not added to this Define operation yet", errs.ErrAddInvalid, objectID)
	}
	if resourceID < 0 || resourceID > model.MaxID {
		return fmt.Errorf("%w: resource id %d out of range", errs.ErrAddInvalid, resourceID)
	}
	if name == "" {
		return fmt.Errorf("%w: resource name must not be empty", errs.ErrAddInvalid)
	}
	obj.Resources = append(obj.Resources, model.ManifestResource{
		ID:          resourceID,
		Name:        name,
		Kind:        kind.String(),
		Access:      access.String(),
		MinInstance: minInstance,
		MaxInstance: maxInstance,
	})
	p, err := path.Parse(fmt.Sprintf("/%d/0/%d", objectID, resourceID))
	if err != nil {
		return err
	}
	o.addEntry(path.LeafEntry{Path: p})
	return nil
}

// Perform ships the accumulated definitions to the daemon and, when
// every path result is Success, imports them into the session's local
// registry so subsequent operations on this session can reference them
// immediately.
func (o *DefineOperation) Perform(timeout time.Duration) error {
	t := resolveTimeout(o.session, timeout)
	if err := o.checkPerform(t); err != nil {
		return err
	}

	manifest := make([]model.ManifestObject, 0, len(o.order))
	for _, id := range o.order {
		manifest = append(manifest, *o.objects[id])
	}
	blob, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("op: encoding definitions: %w", err)
	}
	blobText := string(blob)

	tree, err := path.Build(o.entries)
	if err != nil {
		return err
	}
	req := Envelope{
		Type:        MessageRequest,
		SubType:     SubDefine,
		Objects:     &tree,
		Definitions: &blobText,
	}
	resp, err := o.send(req, t)
	if err != nil {
		return err
	}

	result := newResponse(o.session.Registry())
	if resp.Objects != nil {
		result.populateFromTree(*resp.Objects)
	}
	if err := o.finish(result); err != nil {
		return err
	}

	reg := o.session.Registry()
	for _, id := range o.order {
		obj := o.objects[id]
		if defErr := reg.DefineObject(obj.ID, obj.Name, obj.MinInstance, obj.MaxInstance); defErr != nil {
			return defErr
		}
		for _, res := range obj.Resources {
			kind, access, convErr := model.ParseManifestKindAccess(res.Kind, res.Access)
			if convErr != nil {
				return convErr
			}
			if defErr := reg.DefineResource(obj.ID, res.ID, res.Name, kind, res.MinInstance, res.MaxInstance, access); defErr != nil {
				return defErr
			}
		}
	}
	return nil
}

// Free releases the operation. A nil receiver is a no-op.
func (o *DefineOperation) Free() error {
	if o == nil {
		return nil
	}
	return o.free()
}
