// Package store provides the document store adapter for the FFCS lab
// database: five logical collections resolved to physical collections on
// one shared connection, with conditional per-document updates.
//
// # Backends
//
// Three [Backend] implementations share the [Collection] contract:
//
//   - [Mongo] for the laboratory MongoDB deployment ($jsonSchema validators,
//     session transactions on replica sets)
//   - [Dynamo] for AWS deployments (one table per collection, condition
//     expressions, TransactWriteItems, optional scope index)
//   - [Memory] for tests and local runs
//
// # Updates
//
// Every update carries a [Filter] that doubles as its guard. A document that
// no longer satisfies the filter is not touched, and an update that matches
// nothing is a successful no-op reported through [UpdateResult]. Multi-document
// writes are atomic only through [Store.Atomic], which requires
// Config.Transactional and a backend implementing [Transactor].
//
// # Configuration
//
// Use [DefaultConfig] for the laboratory defaults:
//
//	cfg := store.DefaultConfig()
//	cfg.Database = "ffcs_db"
//	backend, err := store.OpenMongo(uri, cfg)
//	s, err := store.Open(ctx, backend, cfg)
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrConfiguration] - unknown logical collection or unusable settings
//   - [ErrConnection] - the connectivity check failed
//   - [ErrNotFound] - lookup matched nothing
//   - [ErrConflict] - insert collided with an existing id
//   - [ErrSchemaViolation] - the document broke the collection schema
//   - [ErrConditionFailed] - no document in the expected state
//   - [ErrStore] - any other read or write failure
//
// [KindOf] classifies an error for transports.
package store
