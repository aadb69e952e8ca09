package agentcore

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
)

// DecisionScope is the scope of an approval decision.
type DecisionScope string

const (
	// DecisionOnce approves the single pending request only.
	DecisionOnce DecisionScope = "once"
	// DecisionSession approves every matching fingerprint for the rest
	// of the session.
	DecisionSession DecisionScope = "session"
	// DecisionDeny rejects the pending action without invoking the tool.
	DecisionDeny DecisionScope = "deny"
)

// ApprovalRequest describes a risky action awaiting an external decision.
type ApprovalRequest struct {
	Fingerprint string          `json:"fingerprint"`
	ToolName    string          `json:"tool_name"`
	Reason      string          `json:"reason"`
	RiskLevel   string          `json:"risk_level"`
	Params      json.RawMessage `json:"params"`
}

// Approver delivers approval decisions from outside the session (a
// terminal prompt, a UI, a policy service). Decide blocks until a
// decision arrives or ctx is cancelled; step execution suspends on it.
type Approver interface {
	Decide(ctx context.Context, req ApprovalRequest) (DecisionScope, error)
}

// ApproverFunc adapts a function to the Approver interface.
type ApproverFunc func(ctx context.Context, req ApprovalRequest) (DecisionScope, error)

// Decide implements Approver.
func (f ApproverFunc) Decide(ctx context.Context, req ApprovalRequest) (DecisionScope, error) {
	return f(ctx, req)
}

// Verdict is the outcome of an approval gate check.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictAsk
	VerdictDeny
)

// RiskAssessor is the risk policy applied to every action before
// dispatch. It returns VerdictAllow to let the action through,
// VerdictAsk with a request to route it through the approval protocol,
// or VerdictDeny with a request to reject it outright.
type RiskAssessor func(action Action) (Verdict, *ApprovalRequest)

// Fingerprint computes a stable risk fingerprint for a tool call: a hash
// over the tool name and its canonicalized parameters, so semantically
// equal calls map to the same cached decision regardless of key order or
// whitespace.
func Fingerprint(toolName string, params json.RawMessage) string {
	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	h.Write(canonicalParams(params))
	return fmt.Sprintf("%x", h.Sum(nil)[:16])
}

// canonicalParams re-marshals params so object keys are sorted and
// insignificant whitespace is dropped. Unparseable input falls back to
// the raw bytes.
func canonicalParams(params json.RawMessage) []byte {
	if len(params) == 0 {
		return []byte("null")
	}
	var v any
	if err := json.Unmarshal(params, &v); err != nil {
		return params
	}
	out, err := json.Marshal(v)
	if err != nil {
		return params
	}
	return out
}

// ApprovalGate maps tool calls to risk fingerprints and caches
// session-scoped approvals. The cache is private to one session and
// holds only DecisionSession grants; once decisions are discarded after
// use and a deny aborts only the action it answered.
type ApprovalGate struct {
	assess RiskAssessor

	mu      sync.Mutex
	granted map[string]bool
}

// NewApprovalGate creates a gate with the given risk assessor. A nil
// assessor allows everything.
func NewApprovalGate(assess RiskAssessor) *ApprovalGate {
	return &ApprovalGate{
		assess:  assess,
		granted: make(map[string]bool),
	}
}

// Check evaluates an action: allow it outright, deny it by policy, or
// require an external decision for the returned request. A previously
// granted session-scoped approval for the same fingerprint short-cuts
// to allow.
func (g *ApprovalGate) Check(action Action) (Verdict, *ApprovalRequest) {
	if g.assess == nil {
		return VerdictAllow, nil
	}
	verdict, req := g.assess(action)
	if verdict == VerdictAllow {
		return VerdictAllow, nil
	}
	req = completeRequest(req, action)
	if verdict == VerdictDeny {
		return VerdictDeny, req
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.granted[req.Fingerprint] {
		return VerdictAllow, nil
	}
	return VerdictAsk, req
}

// Record stores the decision for a pending request. Only session-scoped
// approvals persist; once and deny apply to the pending request alone.
func (g *ApprovalGate) Record(req *ApprovalRequest, scope DecisionScope) {
	if req == nil || scope != DecisionSession {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.granted[req.Fingerprint] = true
}

// completeRequest fills in the derivable fields of an approval request.
func completeRequest(req *ApprovalRequest, action Action) *ApprovalRequest {
	if req == nil {
		req = &ApprovalRequest{}
	}
	if req.ToolName == "" {
		req.ToolName = action.Tool
	}
	if req.Params == nil {
		req.Params = action.Input
	}
	if req.Fingerprint == "" {
		req.Fingerprint = Fingerprint(action.Tool, action.Input)
	}
	return req
}
