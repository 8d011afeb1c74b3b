package static

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lwm2m-go/core/errs"
	"github.com/lwm2m-go/core/model"
	"github.com/lwm2m-go/core/path"
	"github.com/lwm2m-go/core/skiplist"
	"github.com/lwm2m-go/core/subscribe"
)

// SecurityMode enumerates the factory-bootstrap security blob's mode
// field, per spec §6.
type SecurityMode int

const (
	SecurityNone SecurityMode = iota
	SecurityPSK
	SecurityRPK
	SecurityCertificate
)

// Security is the security half of the factory bootstrap blob: server
// URI, bootstrap flag, security mode, identity/key/secret, server ID,
// and hold-off — field-for-field per spec §6.
type Security struct {
	ServerURI  string // up to 255 bytes on the wire; unconstrained here
	Bootstrap  bool
	Mode       SecurityMode
	Identity   []byte // up to 255 bytes
	Key        []byte // up to 255 bytes
	Secret     []byte // up to 255 bytes
	ServerID   int
	HoldOffSec int
}

// ServerConfig is the server half of the factory bootstrap blob.
type ServerConfig struct {
	ShortServerID       int
	LifetimeSec         int
	MinPeriodSec        int
	MaxPeriodSec        int
	DisableTimeoutSec   int
	NotificationStoring bool
	Binding             string // up to 10 bytes, e.g. "U" for UDP
}

// FactoryBootstrap is the fixed record a static client can be
// configured with instead of contacting a bootstrap server, per
// spec §6's "factory bootstrap blob".
type FactoryBootstrap struct {
	Security Security
	Server   ServerConfig
}

// Client is the in-process embedded variant of an LwM2M client: a
// fixed object/instance/resource store driven by a cooperative Process
// tick instead of a perform/dispatch_callbacks request-response loop.
// Grounded on main.go's construct-then-serve shape; the HTTP server's
// blocking Serve loop becomes a caller-driven tick, per spec §4.F/§9.
type Client struct {
	logger   *slog.Logger
	logLevel *slog.LevelVar

	endpointName       string
	bootstrapServerURI string
	coapAddress        string
	coapPort           int
	bootstrap          *FactoryBootstrap

	registry *model.DefinitionRegistry
	storage  *storageIndex
	instances skiplist.DBIndex[string, struct{}] // "/O/I" existence set

	dispatcher *subscribe.Dispatcher
	scheduler  *scheduler

	initialized bool
	running     bool
}

// NewClient returns an unconfigured, uninitialized static client bound
// to registry for its Object/Resource Definitions — callers define
// objects/resources on registry with registry.DefineObject/DefineResource
// (or a manifest loader) exactly as session-based code does, before
// calling Init.
func NewClient(registry *model.DefinitionRegistry, logger *slog.Logger) *Client {
	level := &slog.LevelVar{}
	if env := os.Getenv("LWM2M_LOG_LEVEL"); env != "" {
		if parsed, err := parseLogLevel(env); err == nil {
			level.Set(parsed)
		}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return &Client{
		logger:     logger,
		logLevel:   level,
		registry:   registry,
		storage:    newStorageIndex(),
		instances:  skiplist.NewSkipList[string, struct{}](),
		dispatcher: subscribe.NewDispatcher(),
		scheduler:  newScheduler(),
	}
}

func (c *Client) checkNotRunning() error {
	if c.running {
		return fmt.Errorf("%w: cannot reconfigure while running", errs.ErrStaticClientInvalid)
	}
	return nil
}

// SetBootstrapServerURI configures the bootstrap server to contact
// when no factory bootstrap information is supplied.
func (c *Client) SetBootstrapServerURI(uri string) error {
	if err := c.checkNotRunning(); err != nil {
		return err
	}
	if uri == "" {
		return fmt.Errorf("%w: bootstrap server uri must not be empty", errs.ErrStaticClientInvalid)
	}
	c.bootstrapServerURI = uri
	return nil
}

// SetEndpointName configures the client's registered endpoint name.
func (c *Client) SetEndpointName(name string) error {
	if err := c.checkNotRunning(); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: endpoint name must not be empty", errs.ErrStaticClientInvalid)
	}
	c.endpointName = name
	return nil
}

// SetCoAPListenAddressPort configures the local address/port the
// client's CoAP-layer collaborator would bind. Out of scope per §1/§4;
// the value is stored on the client and nothing in this package reads it.
func (c *Client) SetCoAPListenAddressPort(address string, port int) error {
	if err := c.checkNotRunning(); err != nil {
		return err
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: invalid port %d", errs.ErrStaticClientInvalid, port)
	}
	c.coapAddress = address
	c.coapPort = port
	return nil
}

// SetFactoryBootstrapInformation supplies security and server
// parameters directly, skipping the bootstrap server.
func (c *Client) SetFactoryBootstrapInformation(fb FactoryBootstrap) error {
	if err := c.checkNotRunning(); err != nil {
		return err
	}
	c.bootstrap = &fb
	return nil
}

// Init validates that the client has enough configuration to start —
// an endpoint name, and either a bootstrap server URI or factory
// bootstrap information — and marks it initialized. Resource storage
// bindings may still be added or changed after Init, but never while
// Process is executing (spec §4.F).
func (c *Client) Init() error {
	if c.initialized {
		return fmt.Errorf("%w: already initialized", errs.ErrStaticClientInvalid)
	}
	if c.endpointName == "" {
		return fmt.Errorf("%w: endpoint name not configured", errs.ErrStaticClientNotConfigured)
	}
	if c.bootstrapServerURI == "" && c.bootstrap == nil {
		return fmt.Errorf("%w: no bootstrap server uri or factory bootstrap information", errs.ErrStaticClientNotConfigured)
	}
	c.initialized = true
	c.logger.Info("static client initialized", "endpoint", c.endpointName)
	return nil
}

// SetLogLevel adjusts the client's logging verbosity. It only takes
// effect on the client's own default logger; a logger injected via
// NewClient controls its level itself. Fails with ErrLogLevelInvalid
// for an unrecognised level name.
func (c *Client) SetLogLevel(level string) error {
	parsed, err := parseLogLevel(level)
	if err != nil {
		return err
	}
	c.logLevel.Set(parsed)
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", errs.ErrLogLevelInvalid, s)
	}
}

// Dispatcher exposes the client's change/execute subscription index,
// so application code (or a bridging session) can register observers
// exactly the way op.SubscribeOperation installs them on a session.
func (c *Client) Dispatcher() *subscribe.Dispatcher { return c.dispatcher }

// Registry returns the client's definition registry.
func (c *Client) Registry() *model.DefinitionRegistry { return c.registry }

func instanceKey(objectID, instanceID int) string { return fmt.Sprintf("/%d/%d", objectID, instanceID) }

func (c *Client) resourceKind(objectID, resourceID int) (model.Kind, bool) {
	obj, found := c.registry.GetObjectDefinition(objectID)
	if !found {
		return model.KindNone, false
	}
	res, found := obj.Resource(resourceID)
	if !found {
		return model.KindNone, false
	}
	return res.Kind, true
}

// CreateObjectInstance creates object instance (objectID, instanceID),
// failing with ErrCannotCreate if it already exists or the object's
// MaxInstance cardinality would be exceeded.
func (c *Client) CreateObjectInstance(objectID, instanceID int) error {
	obj, found := c.registry.GetObjectDefinition(objectID)
	if !found {
		return fmt.Errorf("%w: object %d", errs.ErrNotDefined, objectID)
	}
	key := instanceKey(objectID, instanceID)
	if _, exists := c.instances.Find(key); exists {
		return fmt.Errorf("%w: object instance %s already exists", errs.ErrCannotCreate, key)
	}
	if count := c.countInstances(objectID); obj.MaxInstance >= 0 && count >= obj.MaxInstance {
		return fmt.Errorf("%w: object %d already has max %d instances", errs.ErrCannotCreate, objectID, obj.MaxInstance)
	}
	if _, err := c.instances.Upsert(key, func(_ string, _ struct{}, _ bool) (struct{}, error) {
		return struct{}{}, nil
	}); err != nil {
		return err
	}
	if b, found := c.storage.lookup(objectID, 0); found && b.kind == bindingHandler {
		_, _, _ = b.handler(c, OpCreateObjectInstance, objectID, instanceID, 0, model.InvalidID, nil)
	}
	c.ObjectInstanceChanged(objectID, instanceID)
	return nil
}

// DeleteObjectInstance removes object instance (objectID, instanceID),
// failing with ErrCannotDelete if it does not exist or the object's
// MinInstance cardinality would be violated.
func (c *Client) DeleteObjectInstance(objectID, instanceID int) error {
	obj, found := c.registry.GetObjectDefinition(objectID)
	if !found {
		return fmt.Errorf("%w: object %d", errs.ErrNotDefined, objectID)
	}
	key := instanceKey(objectID, instanceID)
	if _, exists := c.instances.Find(key); !exists {
		return fmt.Errorf("%w: object instance %s does not exist", errs.ErrCannotDelete, key)
	}
	if count := c.countInstances(objectID); count-1 < obj.MinInstance {
		return fmt.Errorf("%w: object %d requires at least %d instances", errs.ErrCannotDelete, objectID, obj.MinInstance)
	}
	if b, found := c.storage.lookup(objectID, 0); found && b.kind == bindingHandler {
		_, _, _ = b.handler(c, OpDeleteObjectInstance, objectID, instanceID, 0, model.InvalidID, nil)
	}
	c.instances.Remove(key)
	c.ObjectInstanceChanged(objectID, instanceID)
	return nil
}

func (c *Client) countInstances(objectID int) int {
	prefix := fmt.Sprintf("/%d/", objectID)
	all, _ := c.instances.Query(context.Background(), prefix, prefix+"\xff")
	return len(all)
}

// CreateResource creates an optional resource instance at
// (objectID, instanceID, resourceID), failing with ErrCannotCreate if
// the resource's definition is not optional (MinInstance > 0 means it
// must always be present) or the object instance does not exist.
func (c *Client) CreateResource(objectID, instanceID, resourceID int) error {
	key := instanceKey(objectID, instanceID)
	if _, exists := c.instances.Find(key); !exists {
		return fmt.Errorf("%w: object instance %s does not exist", errs.ErrCannotCreate, key)
	}
	obj, found := c.registry.GetObjectDefinition(objectID)
	if !found {
		return fmt.Errorf("%w: object %d", errs.ErrNotDefined, objectID)
	}
	res, found := obj.Resource(resourceID)
	if !found {
		return fmt.Errorf("%w: resource %d/%d", errs.ErrNotDefined, objectID, resourceID)
	}
	if res.MinInstance > 0 {
		return fmt.Errorf("%w: resource %d/%d is mandatory, not optional", errs.ErrCannotCreate, objectID, resourceID)
	}
	if b, found := c.storage.lookup(objectID, resourceID); found && b.kind == bindingHandler {
		if _, _, err := b.handler(c, OpCreateResource, objectID, instanceID, resourceID, model.InvalidID, nil); err != nil {
			return err
		}
	}
	c.ResourceChanged(objectID, instanceID, resourceID)
	return nil
}

// DeleteResource removes an optional resource instance, per the same
// mandatory/optional rule as CreateResource.
func (c *Client) DeleteResource(objectID, instanceID, resourceID int) error {
	obj, found := c.registry.GetObjectDefinition(objectID)
	if !found {
		return fmt.Errorf("%w: object %d", errs.ErrNotDefined, objectID)
	}
	res, found := obj.Resource(resourceID)
	if !found {
		return fmt.Errorf("%w: resource %d/%d", errs.ErrNotDefined, objectID, resourceID)
	}
	if res.MinInstance > 0 {
		return fmt.Errorf("%w: resource %d/%d is mandatory, not optional", errs.ErrCannotDelete, objectID, resourceID)
	}
	if b, found := c.storage.lookup(objectID, resourceID); found && b.kind == bindingHandler {
		if _, _, err := b.handler(c, OpDeleteResource, objectID, instanceID, resourceID, model.InvalidID, nil); err != nil {
			return err
		}
	}
	c.ResourceChanged(objectID, instanceID, resourceID)
	return nil
}

// ResourceChanged marks (objectID, instanceID, resourceID) as changed,
// scheduling a change notification for the next Process tick.
func (c *Client) ResourceChanged(objectID, instanceID, resourceID int) {
	p := path.Path{ObjectID: objectID, InstanceID: instanceID, ResourceID: resourceID, ResourceInstanceID: model.InvalidID}
	c.scheduler.schedule(time.Now(), workChangeNotification, p.Format())
}

// ObjectInstanceChanged marks (objectID, instanceID) as changed.
func (c *Client) ObjectInstanceChanged(objectID, instanceID int) {
	p := path.Path{ObjectID: objectID, InstanceID: instanceID, ResourceID: model.InvalidID, ResourceInstanceID: model.InvalidID}
	c.scheduler.schedule(time.Now(), workChangeNotification, p.Format())
}

// Process runs one cooperative tick: it dispatches every change
// notification whose deadline has elapsed and returns how long the
// caller should wait before calling Process again. budget bounds how
// long this call itself may run; Process never blocks on network I/O
// (the static client's transport is out of scope per §1), so budget
// only matters as an upper bound on work performed this tick.
func (c *Client) Process(budget time.Duration) (time.Duration, error) {
	if !c.initialized {
		return 0, fmt.Errorf("%w", errs.ErrStaticClientNotInitialized)
	}
	c.running = true
	defer func() { c.running = false }()

	deadline := time.Now().Add(budget)
	now := time.Now()
	due := c.scheduler.due(now)
	for i, w := range due {
		if time.Now().After(deadline) {
			// Budget exhausted; re-queue and let the next tick continue.
			for _, rest := range due[i:] {
				c.scheduler.schedule(now, rest.kind, rest.path)
			}
			break
		}
		c.dispatchWork(w)
	}

	if next, ok := c.scheduler.nextDeadline(); ok {
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		return wait, nil
	}
	return time.Hour, nil
}

func (c *Client) dispatchWork(w *scheduledWork) {
	switch w.kind {
	case workChangeNotification:
		p, err := path.Parse(w.path)
		if err != nil {
			c.logger.Warn("static client: malformed scheduled path", "path", w.path, "err", err)
			return
		}
		cs := subscribe.NewChangeSet(c.registry, "")
		cs.Record(p, subscribe.ChangeModify, nil)
		c.dispatcher.Dispatch(cs)
	case workLifetimeTimer:
		c.logger.Debug("static client: lifetime timer fired")
	}
}

// Execute invokes the executable resource at (objectID, instanceID,
// resourceID) with argument, the static-client entry point server-side
// Execute requests ultimately reach.
func (c *Client) Execute(objectID, instanceID, resourceID int, argument []byte) error {
	if err := c.executeResource(objectID, instanceID, resourceID, argument); err != nil {
		return err
	}
	p := path.Path{ObjectID: objectID, InstanceID: instanceID, ResourceID: resourceID, ResourceInstanceID: model.InvalidID}
	c.dispatcher.DispatchExecute(p, subscribe.ExecuteArgs{Data: argument})
	return nil
}

// Write applies a value write to a bound resource instance and
// schedules a change notification iff the binding reports the stored
// value actually changed.
func (c *Client) Write(objectID, instanceID, resourceID, resourceInstanceID int, v model.Value) error {
	changed, err := c.writeResourceInstance(objectID, instanceID, resourceID, resourceInstanceID, v)
	if err != nil {
		return err
	}
	if changed {
		c.ResourceChanged(objectID, instanceID, resourceID)
	}
	return nil
}
