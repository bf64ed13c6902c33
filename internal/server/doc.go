// Package server provides the read-only listing API with its routing, middleware and metrics.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order of registration, so the first added runs outermost.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns internally.
//
// # Listing Endpoints
//
//	GET /events/upcoming  events from the start of today onward, soonest first
//	GET /events/past      earlier events, most recent first
//	GET /events/{key}     one event by id or listing hash
//	GET /healthz          liveness
//	GET /metrics          Prometheus exposition
//
// [ListingHandler] reloads its [listing.Source] at most once per cache TTL. Every event in a response carries
// its "key" so clients can build stable links.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
