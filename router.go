package reskit

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// OpenerFactory constructs an opener for a resource identifier. Factories
// may block on ctx (the HTTP opener probes the server during
// construction).
type OpenerFactory func(ctx context.Context, cfg *Config, resource string) (Opener, error)

type registration struct {
	name    string
	prefix  string
	factory OpenerFactory
}

var (
	registeredOpeners  []registration
	registeredFallback *registration
	registryMutex      sync.RWMutex
)

// RegisterOpener registers an opener factory for identifiers starting
// with prefix. Registration order is the dispatch order; the built-in
// prefixes do not overlap. Typically called from an opener package's
// init.
func RegisterOpener(name, prefix string, factory OpenerFactory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	registeredOpeners = append(registeredOpeners, registration{name: name, prefix: prefix, factory: factory})
}

// RegisterFallback registers the factory used when no prefix matches.
func RegisterFallback(name string, factory OpenerFactory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	registeredFallback = &registration{name: name, factory: factory}
}

// Router dispatches resource identifiers to openers based on an ordered
// prefix table: "http://" and "https://" resolve over the network,
// "/dev/" opens a serial device, anything else is a filesystem path.
//
// A Router is an explicitly constructed value, not process-global state;
// construct one per component (or per test) and pass it down.
type Router struct {
	cfg      *Config
	logger   logrus.FieldLogger
	openers  []registration
	fallback *registration
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithLogger sets the router's logger. Defaults to the standard logrus
// logger.
func WithLogger(logger logrus.FieldLogger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithOpener adds a prefix-dispatched opener to this router only, checked
// before the package-registered ones. Useful for tests and for embedding
// custom schemes.
func WithOpener(name, prefix string, factory OpenerFactory) RouterOption {
	return func(r *Router) {
		r.openers = append([]registration{{name: name, prefix: prefix, factory: factory}}, r.openers...)
	}
}

// WithFallback overrides the fallback opener for this router only.
func WithFallback(name string, factory OpenerFactory) RouterOption {
	return func(r *Router) {
		r.fallback = &registration{name: name, factory: factory}
	}
}

// NewRouter creates a Router. A nil cfg uses DefaultConfig. The dispatch
// table is snapshotted from the package registry at construction, so
// openers registered later are not picked up by existing routers.
func NewRouter(cfg *Config, opts ...RouterOption) (*Router, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registryMutex.RLock()
	openers := make([]registration, len(registeredOpeners))
	copy(openers, registeredOpeners)
	fallback := registeredFallback
	registryMutex.RUnlock()

	r := &Router{
		cfg:      cfg,
		logger:   logrus.StandardLogger(),
		openers:  openers,
		fallback: fallback,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Default creates a Router from environment configuration. It is a
// convenience constructor, not a shared instance: every call returns a
// fresh value.
func Default(opts ...RouterOption) (*Router, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return NewRouter(cfg, opts...)
}

// Opener resolves a resource identifier to its backend opener.
func (r *Router) Opener(ctx context.Context, resource string) (Opener, error) {
	for _, reg := range r.openers {
		if strings.HasPrefix(resource, reg.prefix) {
			r.logger.WithFields(logrus.Fields{"resource": resource, "opener": reg.name}).
				Debug("resolved resource opener")
			return reg.factory(ctx, r.cfg, resource)
		}
	}
	if r.fallback == nil {
		return nil, NewResourceError("open", resource, fmt.Errorf("%w: no prefix matched and no fallback registered", ErrNoOpener))
	}
	r.logger.WithFields(logrus.Fields{"resource": resource, "opener": r.fallback.name}).
		Debug("resolved resource opener")
	return r.fallback.factory(ctx, r.cfg, resource)
}

// Filename resolves a resource identifier to a local path, downloading
// network resources into the payload cache when necessary.
func (r *Router) Filename(ctx context.Context, resource string) (string, error) {
	op, err := r.Opener(ctx, resource)
	if err != nil {
		return "", err
	}
	return op.Filename(ctx)
}

// Content resolves a resource identifier and reads it fully into memory.
// A warning is logged when the materialized file exceeds the configured
// threshold, since the whole payload is buffered.
func (r *Router) Content(ctx context.Context, resource string) ([]byte, error) {
	op, err := r.Opener(ctx, resource)
	if err != nil {
		return nil, err
	}

	filename, err := op.Filename(ctx)
	if err != nil {
		return nil, err
	}
	if fi, err := os.Stat(filename); err == nil {
		if fi.Size() > r.cfg.ContentWarnBytes {
			r.logger.WithFields(logrus.Fields{"resource": resource, "filename": filename, "size": fi.Size()}).
				Warn("reading large resource into memory")
		}
	} else {
		r.logger.WithFields(logrus.Fields{"filename": filename, "error": err}).
			Debug("unable to check resource size")
	}

	rc, err := op.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, NewResourceError("read", resource, err)
	}
	return content, nil
}
