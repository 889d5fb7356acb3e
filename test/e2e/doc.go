/*
Package main provides the end-to-end suite of the workd daemon.

The suite is a standalone binary that drives an already running daemon over
its HTTP API with pkg/client. It expects a configuration with a second queue
and a category mapped to it:

	engine:
	  queues:
	    - id: io
	      maxConcurrency: 1
	      categories: [copy]

# Package Structure

	test/e2e/
	├── main.go   Entry point: flags, config validation, client, Ginkgo runner
	├── tests.go  Ginkgo specs (routing, failures, policies, toggles, errors)
	└── doc.go    This file

# Running

	workd run --config workd.yaml &
	go run ./test/e2e -workd-url http://localhost:8000

Flags:
  - -workd-url: daemon under test (default http://localhost:8000)
  - -io-queue, -io-category: the extra queue and its category (io, copy)
  - -wait-timeout: timeout of await calls (30s)

Work ids carry a per-run prefix so the suite can run repeatedly against the
same daemon. Toggles changed by a test are restored before it ends.
*/
package main
