package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/stagegrid/internal/capability"
	"github.com/vk/stagegrid/internal/ctxlog"
	"github.com/vk/stagegrid/internal/nodeid"
	"github.com/vk/stagegrid/internal/stage"
)

var (
	// ErrFrozen is returned by registration calls made after Freeze.
	ErrFrozen = errors.New("registry is frozen")
	// ErrDuplicate is returned when a stage name or base kind is registered twice.
	ErrDuplicate = errors.New("stage already registered")
	// ErrInvalid is returned for malformed registrations.
	ErrInvalid = errors.New("invalid stage registration")
)

// Module is the interface that all stage modules must implement to be registered.
type Module interface {
	Register(r *Registry) error
}

// Rule is a conditional stage: Fn runs for every view whose capabilities
// contain Requires, after that view's base pipeline.
type Rule struct {
	Name      string
	Requires  capability.Set
	Fn        stage.Func
	Unordered bool

	order int
}

// Order is the rule's registration index.
func (r *Rule) Order() int { return r.order }

// Option customizes a conditional rule.
type Option func(*Rule)

// Unordered opts a rule out of nested-requirement tie-break edges.
func Unordered() Option {
	return func(r *Rule) { r.Unordered = true }
}

// Registry holds all the registered stages for a single application instance.
type Registry struct {
	mu       sync.RWMutex
	prepare  stage.Func
	render   stage.Func
	rules    []*Rule
	byName   map[string]*Rule
	tieBreak TieBreak
	frozen   bool
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{byName: make(map[string]*Rule)}
}

// RegisterBase sets the function for one of the two base stages.
func (r *Registry) RegisterBase(kind stage.Kind, fn stage.Func) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}
	if fn == nil {
		return fmt.Errorf("%w: nil function for base stage %s", ErrInvalid, kind)
	}

	var slot *stage.Func
	switch kind {
	case stage.KindPrepare:
		slot = &r.prepare
	case stage.KindRender:
		slot = &r.render
	default:
		return fmt.Errorf("%w: %s is not a base stage kind", ErrInvalid, kind)
	}
	if *slot != nil {
		return fmt.Errorf("base stage %s: %w", kind, ErrDuplicate)
	}
	*slot = fn
	return nil
}

// RegisterConditional appends a conditional rule. Rules are matched in
// registration order.
func (r *Registry) RegisterConditional(name string, requires capability.Set, fn stage.Func, opts ...Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}
	if !nodeid.ValidStage(name) {
		return fmt.Errorf("%w: stage name %q", ErrInvalid, name)
	}
	switch name {
	case stage.PrepareName, stage.RenderName, stage.MarkerName:
		return fmt.Errorf("%w: stage name %q is reserved", ErrInvalid, name)
	}
	if fn == nil {
		return fmt.Errorf("%w: nil function for stage %q", ErrInvalid, name)
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("conditional stage %q: %w", name, ErrDuplicate)
	}

	rule := &Rule{Name: name, Requires: requires, Fn: fn, order: len(r.rules)}
	for _, opt := range opts {
		opt(rule)
	}
	r.rules = append(r.rules, rule)
	r.byName[name] = rule
	return nil
}

// SetTieBreak chooses the direction of nested-requirement edges.
func (r *Registry) SetTieBreak(tb TieBreak) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}
	r.tieBreak = tb
	return nil
}

// Load registers every module in order and stops at the first failure.
func (r *Registry) Load(ctx context.Context, modules ...Module) error {
	logger := ctxlog.FromContext(ctx)
	for i, mod := range modules {
		if err := mod.Register(r); err != nil {
			return fmt.Errorf("registering module %d (%T): %w", i, mod, err)
		}
		logger.Debug("Module registered.", "module", fmt.Sprintf("%T", mod))
	}
	return nil
}

// Freeze ends the setup phase. Missing base stages fall back to no-ops.
// Calling Freeze more than once is harmless.
func (r *Registry) Freeze(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return
	}
	logger := ctxlog.FromContext(ctx)
	if r.prepare == nil {
		logger.Warn("No prepare stage registered, using a no-op.")
		r.prepare = stage.Noop
	}
	if r.render == nil {
		logger.Warn("No render stage registered, using a no-op.")
		r.render = stage.Noop
	}
	r.frozen = true
	logger.Debug("Registry frozen.", "conditional_rules", len(r.rules), "tie_break", r.tieBreak.String())
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Base returns the function registered for a base stage kind.
func (r *Registry) Base(kind stage.Kind) stage.Func {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case stage.KindPrepare:
		return r.prepare
	case stage.KindRender:
		return r.render
	default:
		return nil
	}
}

// Rules returns the conditional rules in registration order.
func (r *Registry) Rules() []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Rule looks up a conditional rule by stage name.
func (r *Registry) Rule(name string) (*Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.byName[name]
	return rule, ok
}

// TieBreak returns the configured tie-break direction.
func (r *Registry) TieBreak() TieBreak {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tieBreak
}
