package dto

type WorkerDescriptor struct {
	PID     int    `json:"pid"`
	Name    string `json:"name"`
	IsAlive bool   `json:"is_alive"`
}

// QueueStats 各状态的申请数量
type QueueStats struct {
	Depth  int64            `json:"depth"`
	Counts map[string]int64 `json:"counts"`
}

// ManagerStatus 任务管理器状态快照
type ManagerStatus struct {
	ManagerStatus string             `json:"manager_status"`
	ManagerPID    int                `json:"manager_pid"`
	WorkerCount   int                `json:"worker_count"`
	Workers       []WorkerDescriptor `json:"workers"`
	Queue         *QueueStats        `json:"queue,omitempty"`
}
