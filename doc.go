// Package vigil provides a client-side manager for remote key/value
// configuration and feature flags, built around a conditional refresh cycle:
// poll a remote store on a fixed interval, short-circuit full refreshes
// through a sentinel key, replace the snapshot wholesale, and notify a
// listener when values change.
//
// # Philosophy: Cheap Refreshes, Whole Snapshots
//
// Vigil never merges, caches or diffs individual values. Every completed
// refresh produces a complete new snapshot in filter-declaration order, and
// a configured sentinel key turns the common no-change tick into a single
// GET instead of a full filter fan-out.
//
// # Architecture Overview
//
// Vigil consists of five integrated pieces:
//  1. **Manager**: the refresh cycle and self-rescheduling poll loop
//  2. **Remote Stores**: pluggable scheme-routed store backends (memory, HTTP)
//  3. **Value Parser**: closed-variant decoding (structured / raw / absent)
//  4. **Audit System**: buffered refresh trail with SQLite and JSONL backends
//  5. **Settings Layer**: flags, environment and YAML profiles in one surface
//
// Quick start:
//
//	store, err := vigil.OpenStore("https://config.mycompany.com/api")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	manager, err := vigil.Start(ctx, "checkout", store, vigil.Config{
//		Filters:      []vigil.Filter{{KeyFilter: "checkout/*", LabelFilter: "prod"}},
//		Sentinel:     &vigil.SentinelKey{Key: "checkout/sentinel", Label: "prod"},
//		PollInterval: 30 * time.Second,
//		OnUpdate: func(entries []vigil.Entry) {
//			for _, entry := range entries {
//				log.Printf("%s = %v", entry.Key, entry.Value.Interface())
//			}
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer manager.Stop()
//
// Start returns only after the first refresh cycle has completed, so the
// snapshot is populated immediately:
//
//	for _, entry := range manager.GetConfigurations() {
//		// entries arrive parsed: structured JSON, raw string, or absent
//	}
//
// # Sentinel Keys
//
// A sentinel is one designated setting whose value changing signals that a
// full refresh is needed. While it stays unchanged, polling costs exactly one
// request per tick and the previous snapshot is kept untouched. A declared
// sentinel missing from the server logs a warning and skips that tick.
//
// # Teardown
//
// The poll loop is owned by the manager and stops deterministically:
// Stop (or Close) cancels the loop, waits for the in-flight tick to finish,
// and flushes the audit trail. No timers outlive the manager.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package vigil
