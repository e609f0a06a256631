package classify

import "strings"

// BodyRegion is one selectable area of the pain location diagram.
type BodyRegion struct {
	ID    string
	Label string
}

// BodyRegions lists the diagram regions in display order.
var BodyRegions = []BodyRegion{
	{"head", "Head"},
	{"neck", "Neck"},
	{"jaw", "Jaw"},
	{"throat", "Throat"},
	{"ear_left", "Left Ear"},
	{"ear_right", "Right Ear"},
	{"shoulder_left", "Left Shoulder"},
	{"shoulder_right", "Right Shoulder"},
	{"chest", "Chest"},
	{"arm_left", "Left Arm"},
	{"arm_right", "Right Arm"},
	{"abdomen", "Abdomen"},
	{"pelvis", "Pelvis"},
	{"leg_left", "Left Leg"},
	{"leg_right", "Right Leg"},
}

// BodyRegionLabels returns the region labels in display order.
func BodyRegionLabels() []string {
	labels := make([]string, len(BodyRegions))
	for i, r := range BodyRegions {
		labels[i] = r.Label
	}
	return labels
}

// BodyRegionLabel resolves a region id or label, in any case and with
// underscores or spaces, to its display label.
func BodyRegionLabel(s string) (string, bool) {
	key := normalize(strings.ReplaceAll(s, "_", " "))
	for _, r := range BodyRegions {
		if key == normalize(strings.ReplaceAll(r.ID, "_", " ")) || key == normalize(r.Label) {
			return r.Label, true
		}
	}
	return "", false
}

// BodyRegionsFrom splits a body-region answer and normalizes each item, given
// as an id, a label or a 1-based position in BodyRegionLabels, to a display
// label. Unknown items are kept as typed.
func BodyRegionsFrom(raw string) []string {
	items := SplitMulti(raw)
	labels := BodyRegionLabels()
	out := make([]string, 0, len(items))
	for _, item := range items {
		if label, ok := BodyRegionLabel(item); ok {
			out = append(out, label)
			continue
		}
		if label, ok := MatchChoice(item, labels); ok {
			out = append(out, label)
			continue
		}
		out = append(out, item)
	}
	return dedupe(out)
}
