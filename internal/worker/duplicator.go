// Package worker contains event consumer workers that maintain derived data
// in the node store.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/event"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/nodestore"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/repeater"
)

// Duplicator is the instance-duplication service: it consumes
// repeater_instance_requested events and persists copies of the repeater's
// template subtrees. The next render picks the refreshed tree up.
type Duplicator struct {
	store nodestore.Store
	bus   event.Publisher
	log   *zap.Logger
}

// NewDuplicator creates a duplication worker. bus may be nil.
func NewDuplicator(store nodestore.Store, bus event.Publisher, log *zap.Logger) *Duplicator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Duplicator{store: store, bus: bus, log: log}
}

// HandleEvent processes a domain event. Other event types are ignored.
func (w *Duplicator) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	if evt.EventType != event.TypeRepeaterInstanceRequested {
		return nil
	}
	var p event.RepeaterInstancePayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	nodes, err := w.store.LoadTree(ctx, evt.TreeID)
	if err != nil {
		return fmt.Errorf("load tree %s: %w", evt.TreeID, err)
	}
	idx := nodestore.NewIndex(nodes)

	templateIDs := p.TemplateNodeIDs
	if len(templateIDs) == 0 {
		if rep, ok := idx.Node(p.RepeaterID); ok {
			templateIDs = rep.Repeater.TemplateIDs()
		}
	}
	copies := repeater.Duplicate(idx, p.RepeaterID, templateIDs, p.InstanceIndex)
	if len(copies) == 0 {
		w.log.Debug("duplicator: nothing to copy",
			zap.String("repeater_id", p.RepeaterID), zap.Int("instance_index", p.InstanceIndex))
		return nil
	}
	for i := range copies {
		copies[i].TreeID = evt.TreeID
	}
	if err := w.store.SaveNodes(ctx, copies); err != nil {
		return fmt.Errorf("save copies of %s: %w", p.RepeaterID, err)
	}

	p.CopiedNodeIDs = make([]string, len(copies))
	for i, n := range copies {
		p.CopiedNodeIDs[i] = n.ID
	}
	w.log.Info("duplicator: templates copied",
		zap.String("repeater_id", p.RepeaterID),
		zap.Int("instance_index", p.InstanceIndex),
		zap.Int("nodes", len(copies)))
	if w.bus != nil {
		w.bus.Publish(ctx, event.NewRepeaterInstanceDuplicated(evt.SessionID, evt.TreeID, p))
	}
	return nil
}
