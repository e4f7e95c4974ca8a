package visibility

import "github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"

// VisibleFields drops fields whose visible flag is off. The input is not
// modified.
func VisibleFields(fields []types.FieldDescriptor) []types.FieldDescriptor {
	out := make([]types.FieldDescriptor, 0, len(fields))
	for _, f := range fields {
		if f.Visible {
			out = append(out, f)
		}
	}
	return out
}
