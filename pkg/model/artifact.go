package model

import "sort"

// ArtifactRef pairs a logical artifact name ("raw", "events", "forward")
// with a concrete storage path. Input refs come from a step's input
// declaration; output refs are produced by the step body.
type ArtifactRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// SortedRefs flattens an artifact map into a slice ordered by logical name,
// so that persisted records are stable across runs.
func SortedRefs(refs map[string]ArtifactRef) []ArtifactRef {
	out := make([]ArtifactRef, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
