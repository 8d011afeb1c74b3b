package path

import (
	"encoding/xml"
	"sort"

	"github.com/lwm2m-go/core/errs"
)

// SubscribeTag names the action attached to a Resource node's Subscribe
// child, per spec §6's content subtree grammar.
type SubscribeTag string

const (
	SubscribeToChange        SubscribeTag = "SubscribeToChange"
	CancelSubscribeToChange  SubscribeTag = "CancelSubscribeToChange"
	SubscribeToExecute       SubscribeTag = "SubscribeToExecute"
	CancelSubscribeToExecute SubscribeTag = "CancelSubscribeToExecute"
	Observe                  SubscribeTag = "Observe"
	CancelObserve            SubscribeTag = "CancelObserve"
)

// ResultError is the per-path outcome carried on a Result node.
type ResultError string

const (
	ResultSuccess      ResultError = "Success"
	ResultPathNotFound ResultError = "PathNotFound"
	ResultNotDefined   ResultError = "NotDefined"
	ResultTypeMismatch ResultError = "TypeMismatch"
	ResultLWM2MError   ResultError = "LWM2MError"
	ResultTimeout      ResultError = "Timeout"
	ResultInternal     ResultError = "Internal"
)

// Result mirrors a Result node: an outcome and, when the outcome is
// LWM2MError, the specific daemon-reported code.
type Result struct {
	Error      ResultError `xml:"Error"`
	LWM2MError string      `xml:"LWM2MError,omitempty"`
}

// ResourceInstanceNode is a leaf ResourceInstance node.
type ResourceInstanceNode struct {
	ID     int     `xml:"ID"`
	Value  *string `xml:"Value"`
	Result *Result `xml:"Result"`
}

// AttributeNode is one Discover-reported attribute: a name (e.g. "pmin",
// "gt") and its text value, integer or float per spec §4.D.
type AttributeNode struct {
	Name  string `xml:"Name"`
	Value string `xml:"Value"`
}

// ResourceNode is a Resource node: either a scalar Value, a set of
// ResourceInstance children, a subscribe tag, a Result, or (Discover
// only) a set of attributes — never more than the combination the
// operation that produced it actually carries.
type ResourceNode struct {
	ID         int                    `xml:"ID"`
	Value      *string                `xml:"Value"`
	Instances  []ResourceInstanceNode `xml:"ResourceInstance"`
	Subscribe  *SubscribeTag          `xml:"SubscribeTag"`
	Result     *Result                `xml:"Result"`
	Attributes []AttributeNode        `xml:"Attribute"`
	// Change tags a notification leaf as "Create", "Modify", or
	// "Delete" — spec §4.E step 1's change-set classification. Absent
	// on every other operation kind's tree.
	Change *string `xml:"Change"`
}

// ObjectInstanceNode is an ObjectInstance node.
type ObjectInstanceNode struct {
	ID        int            `xml:"ID"`
	Resources []ResourceNode `xml:"Resource"`
	Result    *Result        `xml:"Result"`
}

// ObjectNode is an Object node.
type ObjectNode struct {
	ID        int                  `xml:"ID"`
	Instances []ObjectInstanceNode `xml:"ObjectInstance"`
	Result    *Result              `xml:"Result"`
}

// Tree is the root Objects node of a request or response content
// subtree.
type Tree struct {
	XMLName xml.Name     `xml:"Objects"`
	Objects []ObjectNode `xml:"Object"`
}

type resourceBuilder struct {
	id        int
	value     *string
	instances map[int]*ResourceInstanceNode
	subscribe *SubscribeTag
	result    *Result
	change    *string
}

type instanceBuilder struct {
	id        int
	resources map[int]*resourceBuilder
	result    *Result
}

type objectBuilder struct {
	id        int
	instances map[int]*instanceBuilder
	result    *Result
}

// builder accumulates paths into a minimal Tree, merging subtrees that
// share an Object/ObjectInstance/Resource prefix instead of emitting a
// duplicate for every leaf path — spec §4.B's "minimal tree, no
// duplicate subtrees" requirement. Every intermediate node is built
// behind a stable map key so growing a sibling slice never invalidates
// an already-handed-out pointer.
type builder struct {
	objects map[int]*objectBuilder
}

func newBuilder() *builder {
	return &builder{objects: make(map[int]*objectBuilder)}
}

func (b *builder) object(id int) *objectBuilder {
	o, ok := b.objects[id]
	if !ok {
		o = &objectBuilder{id: id, instances: make(map[int]*instanceBuilder)}
		b.objects[id] = o
	}
	return o
}

func (o *objectBuilder) instance(id int) *instanceBuilder {
	inst, ok := o.instances[id]
	if !ok {
		inst = &instanceBuilder{id: id, resources: make(map[int]*resourceBuilder)}
		o.instances[id] = inst
	}
	return inst
}

func (inst *instanceBuilder) resource(id int) *resourceBuilder {
	res, ok := inst.resources[id]
	if !ok {
		res = &resourceBuilder{id: id, instances: make(map[int]*ResourceInstanceNode)}
		inst.resources[id] = res
	}
	return res
}

// add inserts one leaf path (any depth) into the builder, tolerating
// nil value/result/subscribe/change payloads.
func (b *builder) add(p Path, value *string, result *Result, subscribe *SubscribeTag, change *string, riResult *Result) error {
	switch p.Depth() {
	case 1:
		o := b.object(p.ObjectID)
		if result != nil {
			o.result = result
		}
	case 2:
		inst := b.object(p.ObjectID).instance(p.InstanceID)
		if result != nil {
			inst.result = result
		}
	case 3:
		res := b.object(p.ObjectID).instance(p.InstanceID).resource(p.ResourceID)
		if value != nil {
			res.value = value
		}
		if subscribe != nil {
			res.subscribe = subscribe
		}
		if result != nil {
			res.result = result
		}
		if change != nil {
			res.change = change
		}
	case 4:
		res := b.object(p.ObjectID).instance(p.InstanceID).resource(p.ResourceID)
		res.instances[p.ResourceInstanceID] = &ResourceInstanceNode{
			ID:     p.ResourceInstanceID,
			Value:  value,
			Result: riResult,
		}
	default:
		return errs.ErrPathInvalid
	}
	return nil
}

func sortedKeys[V any](m map[int]V) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func (b *builder) build() Tree {
	objIDs := sortedKeys(b.objects)
	objects := make([]ObjectNode, 0, len(objIDs))
	for _, oid := range objIDs {
		ob := b.objects[oid]
		instIDs := sortedKeys(ob.instances)
		instances := make([]ObjectInstanceNode, 0, len(instIDs))
		for _, iid := range instIDs {
			ib := ob.instances[iid]
			resIDs := sortedKeys(ib.resources)
			resources := make([]ResourceNode, 0, len(resIDs))
			for _, rid := range resIDs {
				rb := ib.resources[rid]
				riIDs := sortedKeys(rb.instances)
				riInstances := make([]ResourceInstanceNode, 0, len(riIDs))
				for _, riid := range riIDs {
					riInstances = append(riInstances, *rb.instances[riid])
				}
				resources = append(resources, ResourceNode{
					ID:        rb.id,
					Value:     rb.value,
					Instances: riInstances,
					Subscribe: rb.subscribe,
					Result:    rb.result,
					Change:    rb.change,
				})
			}
			instances = append(instances, ObjectInstanceNode{
				ID:        ib.id,
				Resources: resources,
				Result:    ib.result,
			})
		}
		objects = append(objects, ObjectNode{
			ID:        ob.id,
			Instances: instances,
			Result:    ob.result,
		})
	}
	return Tree{Objects: objects}
}
