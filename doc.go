// Package pedigree is the Composition Root of the pedigree save/load engine.
//
// It connects the engine (serializer, version migrator, proband bridge and
// history sink) with a storage adapter using the Hexagonal Architecture
// pattern.
//
// A pedigree document is a JSON object holding the family graph and the
// view settings. Stored documents may come from any earlier schema version;
// they are migrated on load, reconciled with the patient record (name,
// gender, dates of the proband) and recorded in the undo history. Saves
// write the document together with an SVG snapshot, at most one at a time.
//
// Features:
//
//   - **Versioned stores**: a directory with git history (default), SQLite,
//     PostgreSQL, S3, Redis, an in-memory store, or a remote record service.
//   - **Forward migration**: documents from every schema version load.
//   - **Non-blocking saves**: overlapping save requests are dropped, not queued.
//   - **Events**: load and save lifecycle events for observers, WebSocket
//     clients, MQTT and Prometheus.
//
// Usage:
//
//	s, err := pedigree.New("./P0001",
//		pedigree.WithAutoInit(true),
//		pedigree.WithLogger(logger),
//	)
//
//	if err := s.Engine.Load(ctx); err != nil { ... }
//	err = s.Engine.SaveAndWait(ctx)
package pedigree
