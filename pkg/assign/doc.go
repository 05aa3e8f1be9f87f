// Package assign implements the device-to-MDM assignment flow.
//
// The Orchestrator walks a fixed sequence of phases against a Backend:
//
//	prepare session -> keep alive -> check current server (bounded recheck)
//	  -> submit assignment -> poll activity (bounded) -> tenant status read
//
// Every phase error becomes a FAILED Result; Assign never returns an error.
// APIBackend drives the console's GraphQL API and UIBackend drives its DOM.
// Both retry loops are built on Poll, which runs a step function a bounded
// number of times with an injectable Sleeper.
package assign
