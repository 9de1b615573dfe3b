package evidence

import (
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/governedloop/core/pkg/canon"
	"github.com/governedloop/core/pkg/ids"
)

// Serialize renders m as canonical JSON: sorted object keys (via
// pkg/canon), results ordered by oracle_id, artifacts ordered by name,
// as §4.5 requires for bundle-hash stability and round-trip equality
// (§8 invariant 10).
func Serialize(m *Manifest) ([]byte, error) {
	sorted := *m
	sorted.Results = append([]Result(nil), m.Results...)
	sort.Slice(sorted.Results, func(i, j int) bool { return sorted.Results[i].OracleID < sorted.Results[j].OracleID })

	sorted.Artifacts = append([]Artifact(nil), m.Artifacts...)
	sort.Slice(sorted.Artifacts, func(i, j int) bool { return sorted.Artifacts[i].Name < sorted.Artifacts[j].Name })

	raw, err := canon.Marshal(sorted)
	if err != nil {
		return nil, err
	}

	// encoding/json's omitempty already drops both nil and empty
	// slices/maps for these optional fields; this pass is a second guard
	// that deletes any of them still holding an empty collection in the
	// canonical bytes, so "optional fields omitted when absent" (§4.5)
	// holds.
	for _, path := range []string{"artifacts", "metadata", "stage_context", "environment_fingerprint"} {
		if v := gjson.GetBytes(raw, path); v.Exists() && v.IsObject() && len(v.Map()) == 0 ||
			v.Exists() && v.IsArray() && len(v.Array()) == 0 {
			raw, err = sjson.DeleteBytes(raw, path)
			if err != nil {
				return nil, err
			}
		}
	}
	return raw, nil
}

// BundleHash implements §4.5: H(manifest_bytes ‖ Σ sort_by_name(name ‖ blob)).
func BundleHash(manifestBytes []byte, blobs map[string][]byte) string {
	names := make([]string, 0, len(blobs))
	for name := range blobs {
		names = append(names, name)
	}
	sort.Strings(names)

	input := append([]byte(nil), manifestBytes...)
	for _, name := range names {
		input = append(input, []byte(name)...)
		input = append(input, blobs[name]...)
	}
	return ids.ContentHash(input)
}
