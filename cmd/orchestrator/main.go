// Command orchestrator drives ContinuousDevOrchestrator from the shell:
// `run` starts a requirement end to end, while status/pause/resume/approve/
// rollback/report talk to that running process through the .orchestrator
// control directory, grounded on the teacher's cmd/root.go + flag-file
// control pattern (internal/state).
package main

func main() {
	Execute()
}
