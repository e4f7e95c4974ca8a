package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/event"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/mirror"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/pipeline"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/render"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/repeater"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

// Change records a field value change: the value itself and its mirror
// writes. The field is looked up in the session's latest render; a field
// that was never rendered is written without mirrors.
func (s *Service) Change(ctx context.Context, sessionID, fieldID string, value any) (ChangeResult, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return ChangeResult{}, err
	}
	sess.Lock()
	defer sess.Unlock()

	f, ok := render.FindField(sess.Rendered(), fieldID)
	if !ok {
		s.log.Debug("change on unrendered field", zap.String("session_id", sessionID), zap.String("field_id", fieldID))
		f = types.FieldDescriptor{ID: fieldID}
	}

	writes := make(map[string]any)
	var keys []string
	syncer := mirror.NewSynchronizer(mirror.SetterFunc(func(k string, v any) {
		if _, seen := writes[k]; !seen {
			keys = append(keys, k)
		}
		writes[k] = v
	}), s.log.Named("mirror"))
	syncer.Change(f, value)

	if err := s.values.SetMany(ctx, sessionID, writes); err != nil {
		return ChangeResult{}, fmt.Errorf("write values: %w", err)
	}
	sess.Touch()
	s.publish(ctx, event.NewFieldValueChanged(sessionID, sess.TreeID, event.FieldValueChangedPayload{
		FieldID:    fieldID,
		Value:      value,
		MirrorKeys: mirror.Keys(f),
	}))
	return ChangeResult{FieldID: fieldID, Keys: keys}, nil
}

func (s *Service) repeaterNode(ctx context.Context, treeID, repeaterID string) (types.TreeNode, error) {
	idx, err := s.index(ctx, treeID)
	if err != nil {
		return types.TreeNode{}, err
	}
	node, ok := idx.Node(repeaterID)
	if !ok || (!node.Type.IsRepeater() && node.Repeater == nil) {
		return types.TreeNode{}, fmt.Errorf("%w: %s", ErrUnknownRepeater, repeaterID)
	}
	return node, nil
}

// AddInstance creates a new instance of a repeater and returns its index.
// It fails with repeater.ErrMaxItems when the repeater is full.
func (s *Service) AddInstance(ctx context.Context, sessionID, repeaterID string) (int, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return 0, err
	}
	sess.Lock()
	defer sess.Unlock()

	node, err := s.repeaterNode(ctx, sess.TreeID, repeaterID)
	if err != nil {
		return 0, err
	}
	values, err := s.values.Snapshot(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("load values: %w", err)
	}
	var maxItems *int
	if node.Repeater != nil {
		maxItems = node.Repeater.MaxItems
	}
	change, index, err := repeater.AddInstance(values, repeaterID, maxItems)
	if err != nil {
		return 0, err
	}
	if err := s.values.SetMany(ctx, sessionID, change.Set); err != nil {
		return 0, fmt.Errorf("write values: %w", err)
	}
	sess.Touch()

	p := event.RepeaterInstancePayload{
		RepeaterID:      repeaterID,
		InstanceIndex:   index,
		InstanceCount:   index + 1,
		TemplateNodeIDs: node.Repeater.TemplateIDs(),
	}
	s.publish(ctx, event.NewRepeaterInstanceAdded(sessionID, sess.TreeID, p))
	s.publish(ctx, event.NewRepeaterInstanceRequested(sessionID, sess.TreeID, p))
	return index, nil
}

// RemoveInstance deletes instance index of a repeater and shifts the later
// instances down.
func (s *Service) RemoveInstance(ctx context.Context, sessionID, repeaterID string, index int) error {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	sess.Lock()
	defer sess.Unlock()

	if _, err := s.repeaterNode(ctx, sess.TreeID, repeaterID); err != nil {
		return err
	}
	values, err := s.values.Snapshot(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load values: %w", err)
	}
	change, err := repeater.RemoveInstance(values, repeaterID, index)
	if err != nil {
		return err
	}
	if err := s.values.Delete(ctx, sessionID, change.Delete...); err != nil {
		return fmt.Errorf("delete values: %w", err)
	}
	if err := s.values.SetMany(ctx, sessionID, change.Set); err != nil {
		return fmt.Errorf("write values: %w", err)
	}
	sess.Touch()

	s.publish(ctx, event.NewRepeaterInstanceRemoved(sessionID, sess.TreeID, event.RepeaterInstancePayload{
		RepeaterID:    repeaterID,
		InstanceIndex: index,
		InstanceCount: pipeline.InstanceCount(change.Set, repeaterID),
	}))
	return nil
}

// CloseSession forgets a session and its values.
func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	s.sessions.Remove(sessionID)
	s.dropEvaluator(sessionID)
	return s.values.Drop(ctx, sessionID)
}

// Cleanup expires idle and old sessions and drops their values.
func (s *Service) Cleanup(ctx context.Context) int {
	removed := s.sessions.Cleanup()
	for _, id := range removed {
		s.dropEvaluator(id)
		if err := s.values.Drop(ctx, id); err != nil {
			s.log.Warn("drop session values", zap.String("session_id", id), zap.Error(err))
		}
	}
	if len(removed) > 0 {
		s.log.Info("sessions expired", zap.Int("count", len(removed)))
	}
	return len(removed)
}

// RunJanitor calls Cleanup every interval until ctx is done. A
// non-positive interval means one minute.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Cleanup(ctx)
		}
	}
}

func (s *Service) dropEvaluator(sessionID string) {
	s.mu.Lock()
	delete(s.evaluators, sessionID)
	s.mu.Unlock()
}
