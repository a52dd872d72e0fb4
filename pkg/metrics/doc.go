/*
Package metrics provides Prometheus metrics collection and exposition for a
JaxBucket peer.

It registers gauges and counters for the three things an operator watching
a peer cares about: how many buckets it has open, how its local blob store
is growing, and how its sync engine's pulls are behaving (states reached,
blobs downloaded, conflicts resolved, revocations encountered). It also
exposes generic liveness/readiness/health HTTP handlers, unchanged in shape
from the teacher's cluster-node health checker, just pointed at
bucket-store components instead of Raft/containerd.

# Usage

	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", metrics.LivenessHandler())
	mux.HandleFunc("/readyz", metrics.ReadyHandler())

	metrics.RegisterComponent("bucketlog", true, "")
	metrics.RegisterComponent("blobstore", true, "")

Callers time an operation with Timer and record it against a histogram:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SaveDuration)
*/
package metrics
