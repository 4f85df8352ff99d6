package hypervisor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jbweber/virtfleet/internal/cache"
	"github.com/jbweber/virtfleet/internal/event"
	"github.com/jbweber/virtfleet/internal/mirror"
)

// Dispatcher applies push events of one host to its cache and reports each
// committed transition through notify.
//
// Dispatch is called from the host's event loop only, so events are applied
// one at a time in arrival order.
type Dispatcher struct {
	hostID        string
	cache         *cache.Cache
	tagsNamespace string
	notify        ChangeFunc
	logger        *zap.Logger
}

// NewDispatcher creates a dispatcher for the host owning c.
func NewDispatcher(c *cache.Cache, tagsNamespace string, notify ChangeFunc, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notify == nil {
		notify = func(Change) {}
	}
	return &Dispatcher{
		hostID:        c.HostID(),
		cache:         c,
		tagsNamespace: tagsNamespace,
		notify:        notify,
		logger:        logger,
	}
}

// Dispatch applies one event. Errors and panics are returned for this event
// only; the caller keeps dispatching.
func (d *Dispatcher) Dispatch(ctx context.Context, sess Session, ev event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while handling %s event: %v", ev.Kind(), r)
		}
	}()

	if err := event.Validate(ev); err != nil {
		return err
	}

	switch e := ev.(type) {
	case event.DomainLifecycle:
		return d.domainLifecycle(ctx, sess, e)
	case event.DomainMetadataChange:
		return d.domainMetadata(ctx, sess, e)
	case event.PoolLifecycle:
		return d.poolLifecycle(ctx, sess, e)
	case event.PoolRefresh:
		// Volumes are re-enumerated on pool lifecycle events only
		d.logger.Debug("pool refresh ignored", zap.String("pool_id", e.PoolID))
		return nil
	default:
		return fmt.Errorf("%w: unhandled event %T", event.ErrMalformed, ev)
	}
}

func (d *Dispatcher) emit(action Action, vm *mirror.VirtualMachine, pool *mirror.StoragePool) {
	c := Change{Action: action, HostID: d.hostID, VM: vm, Pool: pool}
	if vm != nil {
		c.Kind = KindVirtualMachine
	} else {
		c.Kind = KindStoragePool
	}
	d.notify(c)
}

func (d *Dispatcher) domainLifecycle(ctx context.Context, sess Session, e event.DomainLifecycle) error {
	log := d.logger.With(zap.String("vm_id", e.DomainID), zap.Stringer("type", e.Type))

	cached, ok := d.cache.VM(e.DomainID)
	if !ok {
		if e.Type == event.DomainUndefined {
			log.Debug("undefined event for unknown domain ignored")
			return nil
		}

		vm, err := sess.LookupDomain(ctx, e.DomainID)
		if err != nil {
			return fmt.Errorf("failed to load domain %s: %w", e.DomainID, err)
		}
		if !d.cache.InsertVM(vm) {
			return fmt.Errorf("domain %s already cached", e.DomainID)
		}
		vm, _ = d.cache.VM(e.DomainID)
		log.Debug("virtual machine created")
		d.emit(ActionCreate, vm, nil)
		return nil
	}

	if e.Type == event.DomainUndefined || (e.Type == event.DomainStopped && !cached.Persistent) {
		removed, ok := d.cache.RemoveVM(e.DomainID)
		if !ok {
			return nil
		}
		removed.State = mirror.PowerShutoff
		log.Debug("virtual machine destroyed")
		d.emit(ActionDestroy, removed, nil)
		return nil
	}

	state, persistent, err := sess.DomainState(ctx, e.DomainID)
	if err != nil {
		return fmt.Errorf("failed to refresh domain %s: %w", e.DomainID, err)
	}
	vm, ok := d.cache.UpdateVM(e.DomainID, func(vm *mirror.VirtualMachine) {
		vm.State = state
		vm.Persistent = persistent
	})
	if !ok {
		return nil
	}
	log.Debug("virtual machine updated", zap.Stringer("state", state))
	d.emit(ActionUpdate, vm, nil)
	return nil
}

func (d *Dispatcher) domainMetadata(ctx context.Context, sess Session, e event.DomainMetadataChange) error {
	if e.Type != event.MetadataElement || e.Namespace != d.tagsNamespace {
		return nil
	}
	if _, ok := d.cache.VM(e.DomainID); !ok {
		d.logger.Debug("metadata change for unknown domain ignored", zap.String("vm_id", e.DomainID))
		return nil
	}

	tags, err := sess.DomainTags(ctx, e.DomainID)
	if err != nil {
		return fmt.Errorf("failed to reload tags of domain %s: %w", e.DomainID, err)
	}
	vm, ok := d.cache.UpdateVM(e.DomainID, func(vm *mirror.VirtualMachine) {
		vm.Tags = tags
	})
	if !ok {
		return nil
	}
	d.emit(ActionUpdate, vm, nil)
	return nil
}

func (d *Dispatcher) poolLifecycle(ctx context.Context, sess Session, e event.PoolLifecycle) error {
	log := d.logger.With(zap.String("pool_id", e.PoolID), zap.Stringer("type", e.Type))
	gone := e.Type == event.PoolUndefined || e.Type == event.PoolDeleted

	cached, ok := d.cache.Pool(e.PoolID)
	if !ok {
		if gone {
			log.Debug("event for unknown pool ignored")
			return nil
		}

		p, err := sess.LookupPool(ctx, e.PoolID)
		if err != nil {
			return fmt.Errorf("failed to load pool %s: %w", e.PoolID, err)
		}
		if !d.cache.InsertPool(p) {
			return fmt.Errorf("pool %s already cached", e.PoolID)
		}
		p, _ = d.cache.Pool(e.PoolID)
		log.Debug("storage pool created")
		d.emit(ActionCreate, nil, p)
		return nil
	}

	if gone || (e.Type == event.PoolStopped && !cached.Persistent) {
		removed, ok := d.cache.RemovePool(e.PoolID)
		if !ok {
			return nil
		}
		removed.State = mirror.PoolInactive
		removed.Volumes = nil
		log.Debug("storage pool destroyed")
		d.emit(ActionDestroy, nil, removed)
		return nil
	}

	fresh, err := sess.LookupPool(ctx, e.PoolID)
	if err != nil {
		return fmt.Errorf("failed to refresh pool %s: %w", e.PoolID, err)
	}
	p, ok := d.cache.UpdatePool(e.PoolID, func(p *mirror.StoragePool) {
		*p = *fresh.Clone()
		if !p.Running() {
			p.Volumes = nil
		}
	})
	if !ok {
		return nil
	}
	log.Debug("storage pool updated", zap.Stringer("state", p.State))
	d.emit(ActionUpdate, nil, p)
	return nil
}
