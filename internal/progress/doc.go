// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces that topic crawlers use to report how far each topic has got
// toward its quota. The hub batches events on a background goroutine and fans
// them out to pluggable sinks such as structured logs or Prometheus metrics.
package progress
