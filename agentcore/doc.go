// Package agentcore implements the per-session runtime that drives a
// tool-using conversation with a language model.
//
// A Session owns the conversation history and runs one turn at a time.
// Each turn loops steps: call the model, parse the response into
// actions or a final answer, gate risky actions behind the approval
// protocol, dispatch tools (serially or as a parallel batch), and feed
// observations back into history. A repetition guard injects a
// loop-breaking warning after consecutive identical calls, and the
// compaction engine condenses history into a summary checkpoint when
// the context window fills up.
//
// Lifecycle notifications flow two ways: a buffered live event stream
// for interactive consumers, and a history emitter that fans durable
// records out to pluggable sinks. Hooks and middleware observe turn
// start, actions, observations, and the final answer; their failures
// are logged and never abort the turn.
package agentcore
