// Package extension implements the narrow, language-neutral contract
// spec §4.8 describes for sandboxed policies and resolvers: a
// prepare/resolve split with an opaque cached artifact, a SharedContext
// carrying request-scoped data, and a subscription trio
// (create_subscription/next_item/drop_subscription) with broadcast
// deduplication.
//
// Grounded on hanpama-protograph's internal/executor Runtime interface
// (ResolveSync/BatchResolveAsync's batched-by-depth contract, and its
// "implementations must be stateless/concurrency-safe" discipline) and
// the teacher's graphql/batch_scheduler.go (one goroutine per
// dispatchable unit). Unlike Runtime, which is an in-process Go
// interface the host implements directly, this package's Host talks to
// the extension across a real sandbox boundary (spec §6 "Extension
// wire... CBOR-encoded arguments"), so Prepare/Resolve are wire calls
// rather than direct method dispatch -- WireClient is the adapter
// between the two.
package extension
