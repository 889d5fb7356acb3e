// Package handlers implements the HTTP API layer of the workd daemon.
//
// Handlers delegate to services.WorkService and focus on request validation,
// response formatting and HTTP semantics.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                     HTTP Request (Gin)                          │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│            v1.ServerInterfaceWrapper (query binding)            │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│                      Handler (this package)                     │
//	│  - Body validation                                              │
//	│  - Pagination and sort parsing                                  │
//	│  - Error mapping to HTTP status codes                           │
//	│  - Model-to-API conversion                                      │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│                 services.WorkService ──► Engine                 │
//	└─────────────────────────────────────────────────────────────────┘
//
// The Handler implements v1.ServerInterface and is registered with:
//
//	v1.RegisterHandlers(router, handlers.New(workSrv))
//
// # API Endpoints
//
//	┌────────┬─────────────────────────┬──────────────────────────────────────┐
//	│ Method │ Endpoint                │ Description                          │
//	├────────┼─────────────────────────┼──────────────────────────────────────┤
//	│ GET    │ /queues                 │ Queues with toggles and counts       │
//	│ PATCH  │ /queues/{id}            │ Toggle queuing/processing ("*": all) │
//	│ GET    │ /queues/{id}/works      │ Items of a queue, ?state=            │
//	│ DELETE │ /queues/{id}/completed  │ Drop completed items, ?olderThan=    │
//	│ POST   │ /works                  │ Schedule work of a registered kind   │
//	│ GET    │ /works/{id}             │ Item by id                           │
//	│ DELETE │ /works/{id}             │ Cancel a scheduled item              │
//	│ POST   │ /await                  │ Wait for a queue to go idle          │
//	│ GET    │ /history                │ Finished items, filtered and paged   │
//	└────────┴─────────────────────────┴──────────────────────────────────────┘
//
// # Scheduling Work
//
// POST /works:
//
//	{
//	    "kind": "sleep",
//	    "id": "nightly-copy",          // optional, generated when omitted
//	    "category": "copy",            // routes to the queue mapped to it
//	    "priorityKey": "a",            // optional, used with priority ordering
//	    "policy": "if_not_scheduled",  // optional, defaults to enqueue
//	    "afterCommit": true,           // start only once the transaction commits
//	    "params": {"duration": "5s"}
//	}
//
// The response is 202 with the item. An item refused by its policy or by a
// queue with queuing disabled is returned in the canceled state.
//
// # History
//
// GET /history takes repeated queue, state, kind and id filters, sort entries
// in "field:direction" form and page/pageSize (default 20, max 100).
//
// Valid Sort Fields:
//   - id, queue, category, kind, state, schedulingTime, startTime, completionTime
//
// # Error Handling
//
//	┌─────────────────────────────┬────────┬──────────────────────────────┐
//	│ Error Type                  │ Status │ When                         │
//	├─────────────────────────────┼────────┼──────────────────────────────┤
//	│ Validation error            │ 400    │ Bad body, params or filters  │
//	│ ResourceNotFoundError       │ 404    │ Unknown queue or work        │
//	│ ConflictError               │ 409    │ Cancel of a non-scheduled id │
//	│ ConfigurationError          │ 409    │ Queue the engine cannot run  │
//	│ ErrNotStarted               │ 503    │ Engine stopped               │
//	│ SubmissionError             │ 503    │ Queue rejected the item      │
//	│ Internal error              │ 500    │ Unexpected failures          │
//	└─────────────────────────────┴────────┴──────────────────────────────┘
//
// Responses use the format { "error": "message" }.
package handlers
