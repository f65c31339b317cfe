package config

import "time"

// Resolve выбирает первое заданное значение: задача, затем агент, затем глобальное.
func Resolve[T any](job, agent *T, global T) T {
	if job != nil {
		return *job
	}
	if agent != nil {
		return *agent
	}
	return global
}

// ResolveTimeout возвращает бюджет ожидания задачи. job может быть nil
// для входящих сообщений, которые не являются задачами.
func ResolveTimeout(agent AgentConfig, job *JobConfig, globalSeconds int) time.Duration {
	var jobTimeout *int
	if job != nil {
		jobTimeout = job.TimeoutSeconds
	}
	return time.Duration(Resolve(jobTimeout, agent.TimeoutSeconds, globalSeconds)) * time.Second
}

// ResolveAllowedTools возвращает allowlist инструментов; пустая строка означает "без флага".
func ResolveAllowedTools(agent AgentConfig, job *JobConfig) string {
	var jobTools *string
	if job != nil {
		jobTools = job.AllowedTools
	}
	return Resolve(jobTools, agent.AllowedTools, "")
}
