package subscribe

import "github.com/lwm2m-go/core/path"

// ClientEventKind classifies a server-side client lifecycle event,
// distinct from data-change notifications per spec §4.E: Register and
// Update events carry the client's registered entity paths; Deregister
// carries only the departing client IDs.
type ClientEventKind int

const (
	ClientRegister ClientEventKind = iota
	ClientUpdate
	ClientDeregister
)

func (k ClientEventKind) String() string {
	switch k {
	case ClientRegister:
		return "Register"
	case ClientUpdate:
		return "Update"
	case ClientDeregister:
		return "Deregister"
	default:
		return "Unknown"
	}
}

// ClientRecord is one client named by a client event or a ListClients
// response: its ID and, for register/update, the entity paths it has
// registered.
type ClientRecord struct {
	ID       string
	Entities []path.Path
}

// ClientEvent is one parsed client lifecycle notification.
type ClientEvent struct {
	Kind    ClientEventKind
	Clients []ClientRecord
}

// ClientEventCallback receives client lifecycle events on a server
// session, invoked synchronously from DispatchCallbacks like every
// other callback.
type ClientEventCallback func(ev ClientEvent)
