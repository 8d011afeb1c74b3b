package op

import (
	"encoding/xml"
	"fmt"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/path"
)

// MessageType is the IPC frame's top-level tag, per spec §6.
type MessageType string

const (
	MessageRequest      MessageType = "Request"
	MessageResponse     MessageType = "Response"
	MessageNotification MessageType = "Notification"
)

// SubType is the IPC frame's operation tag.
type SubType string

const (
	SubDefine           SubType = "Define"
	SubGet              SubType = "Get"
	SubSet              SubType = "Set"
	SubDelete           SubType = "Delete"
	SubExecute          SubType = "Execute"
	SubSubscribe        SubType = "Subscribe"
	SubObserve          SubType = "Observe"
	SubListClients      SubType = "ListClients"
	SubClientRegister   SubType = "ClientRegister"
	SubClientDeregister SubType = "ClientDeregister"
	SubClientUpdate     SubType = "ClientUpdate"
)

// ResponseCode is the IPC frame's top-level outcome, distinct from the
// per-path Result carried inside the content subtree.
type ResponseCode string

const (
	CodeSuccess           ResponseCode = "Success"
	CodeFailureBadRequest ResponseCode = "FailureBadRequest"
)

// ClientEntry is one Client node under a Clients root — the server-side
// content subtree rooted at Clients instead of Objects.
type ClientEntry struct {
	ID      string    `xml:"ID"`
	Objects path.Tree `xml:"Objects"`
}

// Envelope is the full IPC frame: type/sub-type tags, a session
// identifier, an optional response code, and a content subtree rooted
// at either Objects or Clients. Grounded on spec §6's explicit wire
// grammar; no pack example carries a reusable framed-RPC envelope for
// this shape, so the envelope itself is hand-rolled atop the already
// third-party-backed path.Tree codec (encoding/xml).
type Envelope struct {
	XMLName   xml.Name      `xml:"Message"`
	Type      MessageType   `xml:"Type"`
	SubType   SubType       `xml:"SubType"`
	SessionID uint32        `xml:"SessionID"`
	Code      ResponseCode  `xml:"Code,omitempty"`
	Objects   *path.Tree    `xml:"Objects"`
	Clients   []ClientEntry `xml:"Clients>Client"`

	// Definitions carries a Define request's JSON-encoded object/
	// resource definitions (the same shape model.LoadDefinitionManifest
	// consumes). Spec §6 only prescribes the Objects/Clients content
	// subtree grammar for data operations; a batch of definitions is a
	// distinct payload shape, so it rides as its own top-level leaf
	// rather than being shoehorned into a Resource Value.
	Definitions *string `xml:"Definitions"`
}

// EncodeEnvelope renders e to its wire XML form.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	out, err := xml.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("op: encoding envelope: %w", err)
	}
	return out, nil
}

// DecodeEnvelope parses the wire XML form of one IPC frame.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := xml.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", errs.ErrResponseInvalid, err)
	}
	return e, nil
}
