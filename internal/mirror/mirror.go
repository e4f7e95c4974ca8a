// Package mirror keeps the label-keyed mirror slots of the form in sync with
// field value changes.
//
// A mirror key is "__mirror_data_" followed by the canonical label of a
// field: the label with any repeater instance prefix removed. Display cards
// that have no data or formula capability read their value from that slot.
package mirror

import (
	"strings"

	"go.uber.org/zap"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/field"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

// KeyPrefix starts every mirror key.
const KeyPrefix = "__mirror_data_"

// Setter receives proposed form value writes.
type Setter interface {
	Set(key string, value any)
}

// SetterFunc adapts a function to Setter.
type SetterFunc func(key string, value any)

func (fn SetterFunc) Set(key string, value any) { fn(key, value) }

// Key returns the mirror key of a canonical label.
func Key(label string) string {
	return KeyPrefix + label
}

// IsKey reports whether key is a mirror key.
func IsKey(key string) bool {
	return strings.HasPrefix(key, KeyPrefix)
}

// CleanLabel returns the label of f without its repeater instance prefix.
func CleanLabel(f types.FieldDescriptor) string {
	if f.RepeaterNamespace == nil {
		return f.Label
	}
	return field.StripLabelPrefix(f.RepeaterNamespace.LabelPrefix, f.Label)
}

// Keys lists the mirror keys a change of f writes, without duplicates.
func Keys(f types.FieldDescriptor) []string {
	var keys []string
	if label := strings.TrimSpace(CleanLabel(f)); label != "" {
		keys = append(keys, Key(label))
	}
	if injected(f) {
		k := Key(f.MirrorTargetLabel)
		if len(keys) == 0 || keys[0] != k {
			keys = append(keys, k)
		}
	}
	return keys
}

// injected reports whether f was injected for an option and names that
// option's label. Older trees did not flag injected fields, so a composed
// " - " label counts too.
func injected(f types.FieldDescriptor) bool {
	if strings.TrimSpace(f.MirrorTargetLabel) == "" {
		return false
	}
	return f.IsConditional || strings.Contains(f.Label, field.LabelSeparator)
}

// Synchronizer forwards field changes to a Setter along with their mirror
// writes. Replaying a change converges to the same state.
type Synchronizer struct {
	set Setter
	log *zap.Logger
}

// NewSynchronizer creates a Synchronizer writing to set.
func NewSynchronizer(set Setter, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{set: set, log: log}
}

// Change records that f now holds value.
func (s *Synchronizer) Change(f types.FieldDescriptor, value any) {
	s.set.Set(f.ID, value)
	for _, k := range Keys(f) {
		s.set.Set(k, value)
		s.log.Debug("mirror write", zap.String("field_id", f.ID), zap.String("key", k))
	}
}
