// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package certificate

import (
	"encoding/json"

	vwerrors "github.com/coldforge/veriwipe/pkg/errors"
)

// canonicalize produces the signable byte string for cert: the
// certificate serialized with keys sorted lexicographically, no
// insignificant whitespace, and the signature and anchor fields
// removed. Marshaling a Go map[string]interface{} already
// sorts its keys, at every nesting level, and compact json.Marshal
// output carries no insignificant whitespace — round-tripping the
// struct through a map is the standard-library route to canonical JSON
// with no extra dependency.
func canonicalize(cert *Certificate) ([]byte, error) {
	raw, err := json.Marshal(cert)
	if err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.SignerCanonicalizeFailed)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.SignerCanonicalizeFailed)
	}

	delete(fields, "signature")
	delete(fields, "anchor")

	canonical, err := json.Marshal(fields)
	if err != nil {
		return nil, vwerrors.Wrap(err, vwerrors.SignerCanonicalizeFailed)
	}
	return canonical, nil
}
