package subscribe

import "github.com/lwm2m-go/core/path"

// ObservationIndex is the server-side mirror of Dispatcher: observations
// are keyed by (client-id, path) instead of path alone, so the same
// fan-out machinery can distinguish originating clients. Grounded on
// database.go nesting contents.Collection/contents.Document skiplists
// one level deeper than a flat document store; here a Dispatcher is
// nested one level deeper than the flat, path-only client index.
type ObservationIndex struct {
	byClient map[string]*Dispatcher
}

// NewObservationIndex returns an empty server-side index.
func NewObservationIndex() *ObservationIndex {
	return &ObservationIndex{byClient: make(map[string]*Dispatcher)}
}

func (o *ObservationIndex) dispatcherFor(clientID string) *Dispatcher {
	d, ok := o.byClient[clientID]
	if !ok {
		d = NewDispatcher()
		o.byClient[clientID] = d
	}
	return d
}

// Install activates sub for the given client.
func (o *ObservationIndex) Install(clientID string, sub *Subscription) error {
	return o.dispatcherFor(clientID).Install(sub)
}

// Remove deactivates sub for the given client.
func (o *ObservationIndex) Remove(clientID string, sub *Subscription) {
	if d, ok := o.byClient[clientID]; ok {
		d.Remove(sub)
	}
}

// Dispatch delivers cs (whose ClientID identifies the originating
// client) to that client's observations only.
func (o *ObservationIndex) Dispatch(cs *ChangeSet) {
	d, ok := o.byClient[cs.ClientID()]
	if !ok {
		return
	}
	d.Dispatch(cs)
}

// DispatchExecute delivers an execute invocation from clientID at p.
func (o *ObservationIndex) DispatchExecute(clientID string, p path.Path, args ExecuteArgs) {
	if d, ok := o.byClient[clientID]; ok {
		d.DispatchExecute(p, args)
	}
}

// RemoveClient drops every observation registered for clientID, used
// when a ClientDeregister event arrives.
func (o *ObservationIndex) RemoveClient(clientID string) {
	delete(o.byClient, clientID)
}
