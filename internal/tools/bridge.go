package tools

import "log"

// Recorder receives audit events from lifecycle tools. The server wires the
// audit store in at startup; when nil, recording is a no-op so the engine
// stays usable without a database.
type Recorder interface {
	Record(actor, action, graphID, nodeID, detail string) error
}

var auditRecorder Recorder

// SetAuditBridge installs the audit recorder used by graph lifecycle tools.
func SetAuditBridge(r Recorder) {
	auditRecorder = r
}

// record forwards an event to the audit recorder, best effort. A failed
// write never fails the tool call that triggered it.
func record(actor, action, graphID, nodeID, detail string) {
	if auditRecorder == nil {
		return
	}
	if err := auditRecorder.Record(actor, action, graphID, nodeID, detail); err != nil {
		log.Printf("WARNING: failed to record audit event %s: %v", action, err)
	}
}
