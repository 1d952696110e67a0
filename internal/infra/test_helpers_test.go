package infra

import (
	"fmt"
	"os"
)

// mockProcessInspector is a test double for domain.ProcessInspector
type mockProcessInspector struct {
	runningPIDs map[int]string
}

func newMockProcessInspector() *mockProcessInspector {
	return &mockProcessInspector{
		runningPIDs: make(map[int]string),
	}
}

func (m *mockProcessInspector) IsRunning(pid int) bool {
	_, ok := m.runningPIDs[pid]
	return ok
}

func (m *mockProcessInspector) Name(pid int) (string, error) {
	name, ok := m.runningPIDs[pid]
	if !ok {
		return "", fmt.Errorf("process %d not found", pid)
	}
	return name, nil
}

func (m *mockProcessInspector) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessInspector) SetRunning(pid int, name string) {
	m.runningPIDs[pid] = name
}
