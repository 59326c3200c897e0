// Package broadcast periodically fans one content item out to every known
// destination.
//
// The loop is self-rescheduling: after a startup delay it runs a cycle, then
// sleeps base_interval plus a uniform random jitter before the next one, so
// long-running bots don't fall into synchronized bursts. A cycle with no
// destinations sends nothing and just resleeps.
//
// Delivery semantics
//
// Sends within a cycle are paced by a rate limiter and isolated per
// destination: one failure is logged and recorded, and delivery continues to
// the rest. A destination that fails enough consecutive cycles is evicted
// from the registry (revoked chats would otherwise accumulate forever).
package broadcast
