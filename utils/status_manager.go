package utils

import "sync"

const (
	// Idle 没有调试会话
	Idle = "idle"
	// Starting 子进程已启动，等待第一次暂停
	Starting = "starting"
	// Stopped 用户程序暂停，可以接收单步命令
	Stopped = "stopped"
	// AwaitingStop 已发送单步命令，等待程序再次暂停
	AwaitingStop = "awaitingStop"
	// Terminated 调试结束状态
	Terminated = "terminated"
)

// StatusManager 记录调试器的状态的
type StatusManager struct {
	lock   sync.RWMutex
	status string
}

func NewStatusManager() *StatusManager {
	return &StatusManager{
		status: Idle,
	}
}

func (s *StatusManager) Set(status string) {
	defer s.lock.Unlock()
	s.lock.Lock()
	s.status = status
}

func (s *StatusManager) Get() string {
	defer s.lock.RUnlock()
	s.lock.RLock()
	return s.status
}

func (s *StatusManager) Is(statusList ...string) bool {
	defer s.lock.RUnlock()
	s.lock.RLock()
	for _, status := range statusList {
		if s.status == status {
			return true
		}
	}
	return false
}
