// Package scrapql builds request/response protocols out of five composable
// shapes and interprets queries and results against caller-supplied handlers.
//
// Shapes
//
//   - Literal: a constant. Queries for it always produce the same result, and
//     reporting it has no side effect. Used for protocol version tags.
//   - Leaf: an opaque payload fetched by a LeafResolver and consumed by a
//     LeafReporter.
//   - Keys: an ordered dict from key to sub-query. Every key is assumed to
//     exist.
//   - Ids: an ordered dict from id to sub-query. An ExistenceResolver decides
//     per id whether the sub-query runs; absent ids map to None.
//   - Properties: a record of named sub-protocols. Only the properties present
//     in a query or result are processed.
//
// A Protocol is assembled bottom-up, leaves first:
//
//	root := scrapql.Properties(
//		scrapql.Prop[API, API]{Name: "protocol", Protocol: scrapql.Literal[API, API]("v1", "v1")},
//		scrapql.Prop[API, API]{Name: "items", Protocol: scrapql.Ids(exists, existed,
//			scrapql.Keys(scrapql.Leaf(fetch, store)))},
//	)
//	result, err := root.QueryInstance(api)(ctx, query)
//
// Go values
//
// Literal and leaf payloads are JSON-like values. Keys queries and results
// and ids queries are dict.Dict[string, any]. Ids results are
// dict.Dict[string, maybe.Option[any]]. Properties queries and results are
// map[string]any holding only the present properties.
//
// Paths
//
// Every handler receives the path from the root to its node, root first. Keys
// add the key and ids add the id; the other shapes pass the path through. An
// ExistenceResolver sees the path leading to the ids node, while the matching
// ExistenceReporter and everything below see the path including the id.
//
// Concurrency and errors
//
// Query processing fans out over the entries of keys, ids and properties
// concurrently. The first handler error cancels the context passed to the
// remaining siblings and fails the whole query; it is returned wrapped in a
// *PathError. Result processing is sequential: reporters are called in input
// order (dict order for keys and ids, declared order for properties), and an
// ids entry reports existence before its sub-result. A value of the wrong Go
// type at any node yields a *TypeError; nothing panics.
package scrapql
