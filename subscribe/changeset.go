package subscribe

import (
	"fmt"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/model"
	"github.com/lwm2m-go/core/path"
)

// ChangeKind classifies how a path was touched by one notification.
type ChangeKind int

const (
	ChangeCreate ChangeKind = iota
	ChangeModify
	ChangeDelete
)

type changeEntry struct {
	kind  ChangeKind
	value *string
}

// ChangeSet is the read-only, per-notification view handed to Change
// callbacks: which paths were touched, how, and (for create/modify)
// their new value, decoded against the session's registry — the same
// "callback queries any present path with Get-like accessors" contract
// a Get response offers. Grounded on contents.go's HandleUpdate/
// HandleDocumentUpdate event-payload construction, generalized from an
// ad hoc JSON string into a typed, queryable structure.
type ChangeSet struct {
	registry *model.DefinitionRegistry
	order    []path.Path
	entries  map[path.Path]changeEntry
	clientID string
}

// NewChangeSet creates an empty change-set bound to registry for value
// decoding. clientID is empty for a client-side session.
func NewChangeSet(registry *model.DefinitionRegistry, clientID string) *ChangeSet {
	return &ChangeSet{
		registry: registry,
		entries:  make(map[path.Path]changeEntry),
		clientID: clientID,
	}
}

// Record adds one touched path to the change-set, preserving arrival
// order for Paths().
func (c *ChangeSet) Record(p path.Path, kind ChangeKind, value *string) {
	if _, exists := c.entries[p]; !exists {
		c.order = append(c.order, p)
	}
	c.entries[p] = changeEntry{kind: kind, value: value}
}

// ClientID is the originating client for a server-side observation
// change-set; empty on the client side.
func (c *ChangeSet) ClientID() string { return c.clientID }

// Paths returns every path touched by this change-set, in the order
// Record was called.
func (c *ChangeSet) Paths() []path.Path {
	out := make([]path.Path, len(c.order))
	copy(out, c.order)
	return out
}

// Kind reports how p was touched, or false if p is not in this
// change-set.
func (c *ChangeSet) Kind(p path.Path) (ChangeKind, bool) {
	e, ok := c.entries[p]
	return e.kind, ok
}

// Value decodes and returns the new value recorded at p. It returns
// ErrPathNotFound if p was not touched, and ErrNotDefined if p's
// resource is not defined in the registry (so its kind is unknown).
func (c *ChangeSet) Value(p path.Path) (model.Value, error) {
	e, ok := c.entries[p]
	if !ok || e.value == nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrPathNotFound, p)
	}
	obj, found := c.registry.GetObjectDefinition(p.ObjectID)
	if !found {
		return nil, fmt.Errorf("%w: object %d", errs.ErrNotDefined, p.ObjectID)
	}
	res, found := obj.Resource(p.ResourceID)
	if !found {
		return nil, fmt.Errorf("%w: resource %d/%d", errs.ErrNotDefined, p.ObjectID, p.ResourceID)
	}
	return path.DecodeValue(res.Kind, *e.value)
}

// ExecuteArgs carries the payload of an invoked executable resource.
type ExecuteArgs struct {
	Data []byte
}

// Size reports the payload length in bytes, mirroring the source's
// ExecuteArguments{data, size} pair.
func (e ExecuteArgs) Size() int { return len(e.Data) }
