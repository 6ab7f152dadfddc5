// Package llm turns a prompt-producing Go function into a call against any
// supported model provider and normalizes what comes back.
//
// Design goals:
//   - One pipeline, many vendors: a Provider implements a small capability set
//     (build the wire request, dispatch it, normalize responses and chunks, price
//     usage) and the pipeline in this package does the rest.
//   - Four execution modes decided once, when the call is declared: plain call,
//     streaming, structured extraction and structured streaming. Contradictory
//     option combinations fail with ConfigurationError before any network I/O.
//   - Canonical history: callers build conversations from llm/schema messages;
//     every response can be turned back into a schema.Message for chaining, and
//     MessageParam exposes the vendor's own assistant-turn shape.
//   - No hidden retries: transport errors are returned unchanged so callers can
//     compose their own retry policy.
//
// Provider implementations live under llm/providers.
package llm
