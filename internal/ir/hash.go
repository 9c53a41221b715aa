package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// SpecHash returns a stable content hash of a declaration's kind and
// spec, with references kept in symbolic form. encoding/json emits map
// keys in sorted order, so the hash is deterministic for a given
// declaration and identical between plan and apply.
func SpecHash(d *Declaration) string {
	payload := struct {
		Kind Kind           `json:"type"`
		Spec map[string]any `json:"spec"`
	}{Kind: d.Kind, Spec: d.Spec}

	raw, err := json.Marshal(payload)
	if err != nil {
		// Specs are built from YAML scalars, maps, lists and Refs, all
		// of which marshal cleanly; an error here means a loader bug.
		panic("ir: unmarshalable spec for " + d.ID + ": " + err.Error())
	}

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
