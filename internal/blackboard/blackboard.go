package blackboard

import (
	"context"
	"errors"
	"sync"

	"github.com/srcfl/srcful-gateway-sub001/internal/clock"
	"github.com/srcfl/srcful-gateway-sub001/internal/device"
	"github.com/srcfl/srcful-gateway-sub001/internal/settings"
	"github.com/srcfl/srcful-gateway-sub001/internal/task"
)

// saveStateDelayMs is how long after a mutation the state is saved.
const saveStateDelayMs = 100

// ErrDeviceNotOpen is the panic value (wrapped) when a closed device is
// added to the registry.
var ErrDeviceNotOpen = errors.New("blackboard: only open devices can be registered")

// Logger defines the logging interface used by the blackboard.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ConnectionStore persists device connections across restarts. The SQLite
// store in package state implements it.
type ConnectionStore interface {
	SaveConnection(ctx context.Context, cfg device.Config) error
	RemoveConnection(ctx context.Context, sn string) error
	Connections(ctx context.Context) ([]device.Config, error)
}

// SaveStateFactory builds the task that persists a state snapshot.
type SaveStateFactory func(dueMs int64, bb *Blackboard) task.Task

// Options configures a Blackboard. Zero values get defaults.
type Options struct {
	Clock    clock.Clock
	Settings *settings.Settings
	Version  string
	Logger   Logger

	// Connections is optional. Without it only settings decide whether a
	// device is still wanted.
	Connections ConnectionStore
}

// Blackboard is the shared state every task and the scheduler work through:
// live device registry, message log, settings, task inbox and clock.
//
// It is constructed once at start-up and passed explicitly. All methods are
// safe for concurrent use.
type Blackboard struct {
	clock    clock.Clock
	settings *settings.Settings
	version  string
	startMs  int64
	logger   Logger
	store    ConnectionStore

	devices  *Registry
	messages *messageLog

	inboxMu      sync.Mutex
	inbox        []task.Task
	taskListener func()

	saveMu    sync.RWMutex
	saveState SaveStateFactory
}

// New creates a Blackboard.
func New(opts Options) *Blackboard {
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}
	if opts.Settings == nil {
		opts.Settings = settings.New()
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	bb := &Blackboard{
		clock:    opts.Clock,
		settings: opts.Settings,
		version:  opts.Version,
		startMs:  opts.Clock.NowMs(),
		logger:   opts.Logger,
		store:    opts.Connections,
		messages: newMessageLog(),
	}
	bb.devices = newRegistry(bb.requestSave, opts.Logger)
	return bb
}

// NowMs returns the current clock time in milliseconds.
func (bb *Blackboard) NowMs() int64 {
	return bb.clock.NowMs()
}

// UptimeMs returns the time since the blackboard was created.
func (bb *Blackboard) UptimeMs() int64 {
	return bb.clock.NowMs() - bb.startMs
}

// Version returns the gateway version.
func (bb *Blackboard) Version() string {
	return bb.version
}

// Devices returns the live device registry.
func (bb *Blackboard) Devices() *Registry {
	return bb.devices
}

// Settings returns the gateway settings.
func (bb *Blackboard) Settings() *settings.Settings {
	return bb.settings
}

// Logger returns the logger tasks should use.
func (bb *Blackboard) Logger() Logger {
	return bb.logger
}

// Connections returns the persisted connection store, or nil.
func (bb *Blackboard) Connections() ConnectionStore {
	return bb.store
}

// ===== Task inbox =====

// AddTask queues t for the scheduler.
func (bb *Blackboard) AddTask(t task.Task) {
	bb.inboxMu.Lock()
	bb.inbox = append(bb.inbox, t)
	listener := bb.taskListener
	bb.inboxMu.Unlock()

	if listener != nil {
		listener()
	}
}

// PurgeTasks returns and clears the queued tasks.
func (bb *Blackboard) PurgeTasks() []task.Task {
	bb.inboxMu.Lock()
	defer bb.inboxMu.Unlock()
	tasks := bb.inbox
	bb.inbox = nil
	return tasks
}

// SetTaskListener registers a callback invoked after every AddTask. The
// scheduler uses it to wake up.
func (bb *Blackboard) SetTaskListener(fn func()) {
	bb.inboxMu.Lock()
	bb.taskListener = fn
	bb.inboxMu.Unlock()
}

// ===== Messages =====

// AddError logs a user-visible error message.
func (bb *Blackboard) AddError(text string) Message {
	return bb.addMessage(text, MessageError)
}

// AddWarning logs a user-visible warning message.
func (bb *Blackboard) AddWarning(text string) Message {
	return bb.addMessage(text, MessageWarning)
}

// AddInfo logs a user-visible info message.
func (bb *Blackboard) AddInfo(text string) Message {
	return bb.addMessage(text, MessageInfo)
}

// Messages returns the message log, oldest first.
func (bb *Blackboard) Messages() []Message {
	return bb.messages.list()
}

// ClearMessages empties the message log.
func (bb *Blackboard) ClearMessages() {
	bb.messages.clear()
	bb.requestSave()
}

// DeleteMessage removes the message with the given id.
func (bb *Blackboard) DeleteMessage(id int) bool {
	deleted := bb.messages.delete(id)
	if deleted {
		bb.requestSave()
	}
	return deleted
}

func (bb *Blackboard) addMessage(text string, typ MessageType) Message {
	m := bb.messages.add(text, typ, float64(bb.clock.NowMs())/1000)
	bb.requestSave()
	return m
}

// ===== State =====

// SetSaveStateFactory sets how state saves are scheduled. Without one,
// mutations do not trigger saves.
func (bb *Blackboard) SetSaveStateFactory(f SaveStateFactory) {
	bb.saveMu.Lock()
	bb.saveState = f
	bb.saveMu.Unlock()
}

// requestSave queues a state save shortly after a mutation.
func (bb *Blackboard) requestSave() {
	bb.saveMu.RLock()
	f := bb.saveState
	bb.saveMu.RUnlock()

	if f == nil {
		return
	}
	bb.AddTask(f(bb.clock.NowMs()+saveStateDelayMs, bb))
}
