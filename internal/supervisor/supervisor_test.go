package supervisor

import (
	"os/exec"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckChildrenReapsExitedProcess(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 7")
	require.NoError(t, cmd.Start())

	table := NewChildTable()
	table.Add(&ChildRecord{PID: cmd.Process.Pid, TransactionID: 1, Status: StatusRunning})

	var mu sync.Mutex
	var notified *ChildRecord
	s := New(table, func(rec *ChildRecord) {
		mu.Lock()
		defer mu.Unlock()
		notified = rec
	})

	require.Eventually(t, func() bool {
		s.checkChildren()
		mu.Lock()
		defer mu.Unlock()
		return notified != nil
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, StatusExited, notified.Status)
	require.Equal(t, 7, notified.ExitCode)
	require.Equal(t, 0, table.Len())
}

func TestCheckChildrenReapsSignaledProcess(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	table := NewChildTable()
	table.Add(&ChildRecord{PID: pid, TransactionID: 2, Status: StatusRunning})

	var mu sync.Mutex
	var notified *ChildRecord
	s := New(table, func(rec *ChildRecord) {
		mu.Lock()
		defer mu.Unlock()
		notified = rec
	})

	require.NoError(t, syscall.Kill(pid, syscall.SIGKILL))

	require.Eventually(t, func() bool {
		s.checkChildren()
		mu.Lock()
		defer mu.Unlock()
		return notified != nil
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, StatusSignaled, notified.Status)
	require.Equal(t, int(syscall.SIGKILL), notified.Signal)
}

func TestRunningDoesNotIncludeReapedChildren(t *testing.T) {
	table := NewChildTable()
	table.Add(&ChildRecord{PID: 111, Status: StatusRunning})
	table.Add(&ChildRecord{PID: 222, Status: StatusRunning})

	table.MoveToExited(111, StatusExited, 0, 0)

	running := table.Running()
	require.Len(t, running, 1)
	require.Equal(t, 222, running[0].PID)
}

func TestMoveToExitedIsNoOpForUnknownPid(t *testing.T) {
	table := NewChildTable()
	_, ok := table.MoveToExited(999, StatusExited, 0, 0)
	require.False(t, ok)
}

func TestKillProcessRecordsSignaledTerminalStatus(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	table := NewChildTable()
	table.Add(&ChildRecord{PID: pid, TransactionID: 3, Status: StatusRunning})

	var mu sync.Mutex
	var notified *ChildRecord
	s := New(table, func(rec *ChildRecord) {
		mu.Lock()
		defer mu.Unlock()
		notified = rec
	})

	require.NoError(t, s.KillProcess(pid))

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, notified)
	require.Equal(t, StatusSignaled, notified.Status)
	require.Equal(t, int(syscall.SIGKILL), notified.Signal)
	require.Equal(t, 0, table.Len())
}
