// Package runner executes one job end-to-end: it builds the agent command,
// types it into the job's tmux window, waits for the completion marker in
// the run log, classifies the outcome, notifies chat channels and records
// the run in the ledger.
//
// The agent's exit status is never inspected. A run is finished when the
// marker appears in its log or when its timeout budget is exhausted; a
// timed-out agent keeps running in its window.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aatumaykin/ocalt/internal/agentcli"
	"github.com/aatumaykin/ocalt/internal/config"
	"github.com/aatumaykin/ocalt/internal/constants"
	"github.com/aatumaykin/ocalt/internal/logger"
	"github.com/aatumaykin/ocalt/internal/metrics"
	"github.com/aatumaykin/ocalt/internal/relay"
	"github.com/aatumaykin/ocalt/internal/state"
	"github.com/aatumaykin/ocalt/internal/workspace"
)

// Store records terminal run outcomes.
type Store interface {
	Record(key string, status state.Status, duration time.Duration, at time.Time) (state.JobState, error)
}

// Windower is the display surface jobs run in.
type Windower interface {
	Run(ctx context.Context, window, command string) error
	KillWindow(ctx context.Context, window string) error
}

// Notifier sends agent output to one chat channel.
type Notifier interface {
	SendAgentMessage(ctx context.Context, agent, job, text string) (string, error)
}

// Result describes one finished run.
type Result struct {
	Status   state.Status
	Output   string
	LogPath  string
	Duration time.Duration
	State    state.JobState
}

// Options wires the runner's collaborators.
type Options struct {
	Config    *config.Config
	Store     Store
	Windows   Windower
	Awaiter   Awaiter
	Notifiers map[string]Notifier // "telegram", "discord"
	Relay     *relay.DropFolder   // nil: drop folder disabled
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

// Runner runs jobs. It is safe for concurrent use.
type Runner struct {
	cfg       *config.Config
	store     Store
	windows   Windower
	awaiter   Awaiter
	builder   agentcli.Builder
	notifiers map[string]Notifier
	relay     *relay.DropFolder
	metrics   *metrics.Metrics
	guard     *Guard
	logger    *logger.Logger
	now       func() time.Time
}

// New creates a Runner. When opts.Awaiter is nil the log poller configured
// in [scheduler] is used.
func New(opts Options) *Runner {
	awaiter := opts.Awaiter
	if awaiter == nil {
		awaiter = LogPoller{
			Marker:   opts.Config.Scheduler.CompletionMarker,
			Interval: time.Duration(opts.Config.Scheduler.PollIntervalSeconds) * time.Second,
		}
	}
	notifiers := opts.Notifiers
	if notifiers == nil {
		notifiers = map[string]Notifier{}
	}

	return &Runner{
		cfg:       opts.Config,
		store:     opts.Store,
		windows:   opts.Windows,
		awaiter:   awaiter,
		builder:   agentcli.NewBuilder(opts.Config.CLI),
		notifiers: notifiers,
		relay:     opts.Relay,
		metrics:   opts.Metrics,
		guard:     NewGuard(opts.Config.Scheduler.OverlapPolicy),
		logger:    opts.Logger.With(logger.Field{Key: "component", Value: "runner"}),
		now:       time.Now,
	}
}

// Classify maps what the awaiter saw to a terminal status. Suppression is
// only considered for runs that completed before their budget.
func Classify(c Completion, suppressIfMatch string) state.Status {
	if !c.TimedOut && suppressIfMatch != "" && strings.Contains(c.Output, suppressIfMatch) {
		return state.StatusSuppressed
	}
	if c.TimedOut {
		return state.StatusTimeout
	}
	return state.StatusOK
}

// WindowName is the tmux window a job runs in.
func WindowName(agent, job string) string {
	return agent + "-" + job
}

// LogPath returns the run log path for a run started at start.
func LogPath(logsDir, agent, job string, start time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s-%s-%s.log", agent, job, start.Format("20060102-150405")))
}

// Trigger runs a job by reference ("agent/job" or bare job name) right away.
func (r *Runner) Trigger(ctx context.Context, ref string) (Result, error) {
	agent, job, ok := r.cfg.FindJob(ref)
	if !ok {
		return Result{}, fmt.Errorf("job not found: %s", ref)
	}
	return r.Run(ctx, agent, job)
}

// Run executes one job to a terminal state. It returns ErrJobBusy when the
// overlap policy rejects the run, and ctx.Err() when ctx ends before the
// run completes; in that case nothing is recorded.
func (r *Runner) Run(ctx context.Context, agent config.AgentConfig, job config.JobConfig) (Result, error) {
	key := job.Key(agent.Name)
	log := r.logger.With(
		logger.Field{Key: "agent", Value: agent.Name},
		logger.Field{Key: "job", Value: job.Name})

	release, err := r.guard.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, ErrJobBusy) {
			log.Warn("previous run still in flight, skipping")
			r.metrics.RecordSkip(agent.Name, job.Name)
		}
		return Result{}, err
	}
	defer release()

	r.metrics.RunStarted()
	defer r.metrics.RunFinished()

	start := r.now()
	logPath := LogPath(r.cfg.Scheduler.LogsDir, agent.Name, job.Name, start)
	window := WindowName(agent.Name, job.Name)
	budget := config.ResolveTimeout(agent, &job, r.cfg.Scheduler.DefaultTimeoutSeconds)

	log.Info("job started",
		logger.Field{Key: "log", Value: logPath},
		logger.Field{Key: "timeout", Value: budget.String()})

	command, err := r.command(agent, job, logPath)
	if err == nil {
		err = r.windows.Run(ctx, window, command)
	}
	if err != nil {
		log.Error("failed to dispatch job", err)
		r.notify(ctx, log, agent, job, fmt.Sprintf(constants.MsgJobDispatchFailed, err))
		return r.finish(log, agent, job, start, Result{Status: state.StatusError, LogPath: logPath})
	}

	completion, err := r.awaiter.Await(ctx, logPath, budget)
	if err != nil {
		log.Warn("stopped waiting for job", logger.Field{Key: "reason", Value: err.Error()})
		return Result{}, err
	}

	status := Classify(completion, job.SuppressIfMatch)
	switch status {
	case state.StatusTimeout:
		r.notify(ctx, log, agent, job, fmt.Sprintf(constants.MsgJobTimeout, int(budget.Seconds())))
	case state.StatusOK:
		if completion.Output != "" {
			r.notify(ctx, log, agent, job, completion.Output)
			r.share(log, agent, job, completion.Output)
		}
	case state.StatusSuppressed:
		log.Info("output matched suppress_if_match, not notifying")
	}

	result, err := r.finish(log, agent, job, start, Result{Status: status, Output: completion.Output, LogPath: logPath})

	// по таймауту агент продолжает работать в своём окне
	if !job.Interactive && status != state.StatusTimeout {
		if killErr := r.windows.KillWindow(context.WithoutCancel(ctx), window); killErr != nil {
			log.Warn("failed to close job window", logger.Field{Key: "error", Value: killErr.Error()})
		}
	}
	return result, err
}

// command строит полную строку для окна: cd + вызов CLI + перенаправление в лог
func (r *Runner) command(agent config.AgentConfig, job config.JobConfig, logPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create logs directory: %w", err)
	}
	workdir, err := workspace.ResolvePath(agent.Workdir)
	if err != nil {
		return "", err
	}

	args := r.builder.Args(agent, job, r.prompt(agent, job))
	return agentcli.Wrap(agentcli.ShellCommand(workdir, args), logPath, r.cfg.Scheduler.CompletionMarker, job.Interactive), nil
}

// prompt добавляет к промпту свежие сообщения других агентов
func (r *Runner) prompt(agent config.AgentConfig, job config.JobConfig) string {
	if r.relay == nil || len(agent.SharedChannels) == 0 {
		return job.Prompt
	}
	shared, err := r.relay.BuildSharedContext(agent.SharedChannels, r.cfg.Relay.MaxAgeHours)
	if err != nil {
		r.logger.Warn("failed to read shared context",
			logger.Field{Key: "agent", Value: agent.Name},
			logger.Field{Key: "error", Value: err.Error()})
		return job.Prompt
	}
	if shared == "" {
		return job.Prompt
	}
	return shared + "\n\n---\n\n" + job.Prompt
}

// notify отправляет текст во все включённые для задачи каналы; ошибки только логируются
func (r *Runner) notify(ctx context.Context, log *logger.Logger, agent config.AgentConfig, job config.JobConfig, text string) {
	var targets []string
	if job.Telegram {
		targets = append(targets, "telegram")
	}
	if job.Discord {
		targets = append(targets, "discord")
	}

	for _, name := range targets {
		n, ok := r.notifiers[name]
		if !ok {
			log.Debug("channel not available, skipping notification", logger.Field{Key: "channel", Value: name})
			continue
		}
		if _, err := n.SendAgentMessage(ctx, agent.Name, job.Name, text); err != nil {
			log.Error("failed to notify channel", err, logger.Field{Key: "channel", Value: name})
		}
	}
}

// share публикует вывод задачи в drop folder, если у задачи задан relay_channel
func (r *Runner) share(log *logger.Logger, agent config.AgentConfig, job config.JobConfig, output string) {
	if r.relay == nil || job.RelayChannel == "" {
		return
	}
	if _, err := r.relay.Post(agent.Name, job.RelayChannel, output); err != nil {
		log.Error("failed to post output to drop folder", err,
			logger.Field{Key: "channel", Value: job.RelayChannel})
	}
}

func (r *Runner) finish(log *logger.Logger, agent config.AgentConfig, job config.JobConfig, start time.Time, res Result) (Result, error) {
	end := r.now()
	res.Duration = end.Sub(start)
	r.metrics.RecordRun(agent.Name, job.Name, string(res.Status), res.Duration)

	st, err := r.store.Record(job.Key(agent.Name), res.Status, res.Duration, end)
	if err != nil {
		log.Error("failed to update ledger", err)
		return res, fmt.Errorf("failed to update ledger: %w", err)
	}
	res.State = st

	log.Info("job finished",
		logger.Field{Key: "status", Value: string(res.Status)},
		logger.Field{Key: "duration", Value: res.Duration.Round(time.Millisecond).String()},
		logger.Field{Key: "run_count", Value: st.RunCount})
	return res, nil
}
