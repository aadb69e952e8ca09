// Package modelkit defines the model-call boundary consumed by the
// session runtime: flat chat messages, tool call/definition types, token
// usage accounting, and the Caller contract.
//
// It also resolves model capability profiles. Capability resolution is
// deliberately conservative: a provider/model pair with no override and
// no built-in entry gets the fallback profile with every capability
// disabled, because advertising an unsupported capability (parallel tool
// calls, verbosity control) to a provider that rejects it fails the
// whole request.
//
// GollmCaller is the production Caller implementation, built on gollm
// with retry/backoff and a provider-agnostic error taxonomy.
package modelkit
