package channel

import "strings"

// Topics builds the simulation's topic names below a root prefix.
//
//	topics := channel.Topics{Root: "freeaimTwin/StateMachine"}
//	topics.Head("robots", "Agv-001")
//	// Returns: "freeaimTwin/StateMachine/robots/Agv-001"
type Topics struct {
	Root string
}

// Fixed namespaces used by inbound control topics.
const (
	NamespaceJobs    = "jobs"
	NamespaceManager = "scenario_manager"
)

func (t Topics) join(parts ...string) string {
	root := strings.TrimSuffix(t.Root, "/")
	if root == "" {
		return strings.Join(parts, "/")
	}
	return root + "/" + strings.Join(parts, "/")
}

// =============================================================================
// Entity Topics
// =============================================================================

// Head returns the topic carrying an entity's full snapshot.
//
// Example: freeaimTwin/StateMachine/jobs/Job-001
func (t Topics) Head(namespace, id string) string {
	return t.join(namespace, id)
}

// Atomic returns the topic carrying a single snapshot key.
//
// Example: freeaimTwin/StateMachine/jobs/Job-001/progress
func (t Topics) Atomic(namespace, id, key string) string {
	return t.join(namespace, id, key)
}

// =============================================================================
// Control Topics
// =============================================================================

// JobStatus returns the status topic of a job.
func (t Topics) JobStatus(jobID string) string {
	return t.join(NamespaceJobs, jobID, "status")
}

// AllJobStatuses returns the wildcard pattern for every job status topic.
func (t Topics) AllJobStatuses() string {
	return t.join(NamespaceJobs, "+", "status")
}

// ManagerAttribute returns a scenario manager attribute topic.
//
// Example: freeaimTwin/StateMachine/scenario_manager/DTV-000/selected_flexibility
func (t Topics) ManagerAttribute(managerID, key string) string {
	return t.join(NamespaceManager, managerID, key)
}

// AllManagerAttributes returns the wildcard pattern for a manager's attributes.
func (t Topics) AllManagerAttributes(managerID string) string {
	return t.join(NamespaceManager, managerID, "+")
}

// SimulationStatus returns the online/offline status topic of the process.
func (t Topics) SimulationStatus() string {
	return t.join("simulation", "status")
}

// JobIDFromStatus extracts the job id from a job status topic.
func (t Topics) JobIDFromStatus(topic string) (string, bool) {
	prefix := t.join(NamespaceJobs) + "/"
	rest, ok := strings.CutPrefix(topic, prefix)
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/status")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// ManagerKey extracts the attribute key from a manager attribute topic.
func (t Topics) ManagerKey(managerID, topic string) (string, bool) {
	prefix := t.join(NamespaceManager, managerID) + "/"
	key, ok := strings.CutPrefix(topic, prefix)
	if !ok || key == "" || strings.Contains(key, "/") {
		return "", false
	}
	return key, true
}
