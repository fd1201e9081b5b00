// Utility functions for the Vigil CLI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/agilira/vigil"
)

// resolveStore opens the remote store: the --store flag wins, then the
// VIGIL_STORE_URL environment variable.
func (m *Manager) resolveStore(ctx *orpheus.Context) (vigil.RemoteStore, error) {
	storeURL := ctx.GetFlagString("store")
	if storeURL == "" {
		storeURL = vigil.StoreURLFromEnv()
	}
	if storeURL == "" {
		return nil, errors.New(vigil.ErrCodeInvalidConfig,
			"no store URL: pass --store or set VIGIL_STORE_URL")
	}
	return vigil.OpenStore(storeURL)
}

// printEntries renders entries one per line as "<key>\t<json value>".
func (m *Manager) printEntries(entries []vigil.Entry) error {
	for _, entry := range entries {
		value, err := json.Marshal(entry.Value)
		if err != nil {
			return errors.Wrap(err, vigil.ErrCodeStoreError, "failed to render entry value")
		}
		fmt.Fprintf(m.out, "%s\t%s\n", entry.Key, value)
	}
	return nil
}
