// Package internal documents the datastudy server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem responses, and routing
// - domain/records: record validation and the create/update/delete workflow
// - storage: the Postgres repository and migrations
// - kafka: the best-effort change event publisher
// - auth: bearer token introspection (Keycloak, local JWT)
// - audit, config, metrics, telemetry, validation: shared infrastructure
// - loadtest: traffic generator for the /data API
//
// Code in internal/ is not meant for external import.
package internal
