package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sentriwatch/notification-engine/internal/config"
	"github.com/sentriwatch/notification-engine/internal/domain"
	"github.com/sentriwatch/notification-engine/internal/observability/metrics"
	"github.com/sentriwatch/notification-engine/internal/service/cooldown"
	"github.com/sentriwatch/notification-engine/internal/service/dispatch"
	"github.com/sentriwatch/notification-engine/internal/service/ledger"
)

// Review states as reported by the detection pipeline.
const (
	ReviewStateNew    = "new"
	ReviewStateUpdate = "update"
	ReviewStateEnd    = "end"
)

// ReviewEvent is one update of a detection review item.
type ReviewEvent struct {
	Camera      string
	ReviewID    string
	State       string
	Severity    string
	Objects     []string
	SubLabels   []string
	Zones       []string
	PrevObjects []string
	PrevZones   []string
	ThumbPath   string
}

// TriggerEvent is a semantic trigger firing on a camera.
type TriggerEvent struct {
	Camera  string
	Type    string
	EventID string
	Name    string
	Score   float64
}

// CustomEvent is an API-submitted notification. Camera is optional; without
// one only the global cooldown applies.
type CustomEvent struct {
	Camera    string
	Title     string
	Message   string
	DirectURL string
	Image     string
	TTL       int
}

// Saver is the debounced persistence surface the engine drives.
type Saver interface {
	MarkDirty()
	Save(ctx context.Context, force bool) bool
}

// Engine evaluates incoming events against per-camera adaptive cooldowns
// and feeds deliverable notifications to the dispatch queue. All event
// handlers are safe for concurrent use.
type Engine struct {
	cameras   *config.Manager
	ledger    *ledger.Ledger
	policy    *cooldown.Policy
	queue     *dispatch.Queue
	registry  domain.SubscriptionRegistry
	saver     Saver
	decisions domain.ThrottleDecisionRecorder
	metrics   *metrics.EngineMetrics
	logger    *slog.Logger

	mu               sync.Mutex
	suspendedUntil   map[string]float64
	lastCamera       map[string]float64
	lastNotification float64

	now func() time.Time
}

func New(
	cameras *config.Manager,
	weightLedger *ledger.Ledger,
	policy *cooldown.Policy,
	queue *dispatch.Queue,
	registry domain.SubscriptionRegistry,
	saver Saver,
	decisions domain.ThrottleDecisionRecorder,
	engineMetrics *metrics.EngineMetrics,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cameras:        cameras,
		ledger:         weightLedger,
		policy:         policy,
		queue:          queue,
		registry:       registry,
		saver:          saver,
		decisions:      decisions,
		metrics:        engineMetrics,
		logger:         logger,
		suspendedUntil: make(map[string]float64),
		lastCamera:     make(map[string]float64),
		now:            time.Now,
	}
}

// ApplyConfig syncs the ledger with the camera list of a freshly loaded
// configuration. Cameras removed from the config lose their state.
func (e *Engine) ApplyConfig(doc *config.CameraDocument) {
	known := make(map[string]struct{}, len(doc.Cameras))
	for name, entry := range doc.Cameras {
		known[name] = struct{}{}
		e.ledger.Configure(name, entry.Notifications.WeightTimeSlots)
	}
	for _, name := range e.ledger.Cameras() {
		if _, ok := known[name]; !ok {
			e.ledger.Remove(name)
			e.mu.Lock()
			delete(e.suspendedUntil, name)
			delete(e.lastCamera, name)
			e.mu.Unlock()
		}
	}
	e.logger.Info("camera configuration applied",
		slog.Int("cameras", len(doc.Cameras)))
}

// HandleAlert processes one review event of severity alert.
func (e *Engine) HandleAlert(ctx context.Context, ev ReviewEvent) {
	started := e.now()
	defer func() {
		e.metrics.RecordDecisionDuration(ctx, domain.ClassAlert, e.now().Sub(started))
	}()

	doc := e.cameras.Get()
	entry, settings, ok := e.cameraSettings(doc, ev.Camera)
	if !ok {
		e.finishDecision(ctx, ev.Camera, domain.ClassAlert, domain.OutcomeSkipped, settings)
		return
	}

	now := e.now()
	if e.ledger.PruneCamera(ev.Camera, now, settings.DecaySeconds()) {
		e.saver.MarkDirty()
	}

	if e.isSuspendedAt(ev.Camera, now) {
		e.logger.DebugContext(ctx, "camera suspended, dropping alert",
			slog.String("camera", ev.Camera))
		e.finishDecision(ctx, ev.Camera, domain.ClassAlert, domain.OutcomeSuspended, settings)
		return
	}

	if e.suppressed(ev.Camera, doc, settings, now) {
		e.logger.DebugContext(ctx, "alert suppressed by cooldown",
			slog.String("camera", ev.Camera),
			slog.Float64("effective_cooldown", e.effectiveCooldown(ev.Camera, settings, now)))
		e.finishDecision(ctx, ev.Camera, domain.ClassAlert, domain.OutcomeSuppressed, settings)
		e.saver.Save(ctx, false)
		return
	}

	// Updates that add nothing over the previous state of the same review
	// item are noise and never delivered.
	if ev.State == ReviewStateUpdate && !hasNewInfo(ev) {
		e.logger.DebugContext(ctx, "alert update carries no new information",
			slog.String("camera", ev.Camera),
			slog.String("review_id", ev.ReviewID))
		e.finishDecision(ctx, ev.Camera, domain.ClassAlert, domain.OutcomeSkipped, settings)
		return
	}

	force := e.recordDelivery(ev.Camera, now)
	content := alertContent(ev, entry.FriendlyName)
	e.enqueueAll(ctx, domain.ClassAlert, ev.ReviewID, content)

	e.finishDecision(ctx, ev.Camera, domain.ClassAlert, domain.OutcomeDelivered, settings)
	e.saver.Save(ctx, force)
}

// HandleTrigger processes a semantic trigger firing. Triggers share the
// camera's cooldown state with alerts.
func (e *Engine) HandleTrigger(ctx context.Context, ev TriggerEvent) {
	started := e.now()
	defer func() {
		e.metrics.RecordDecisionDuration(ctx, domain.ClassTrigger, e.now().Sub(started))
	}()

	doc := e.cameras.Get()
	entry, settings, ok := e.cameraSettings(doc, ev.Camera)
	if !ok {
		e.finishDecision(ctx, ev.Camera, domain.ClassTrigger, domain.OutcomeSkipped, settings)
		return
	}

	now := e.now()
	if e.ledger.PruneCamera(ev.Camera, now, settings.DecaySeconds()) {
		e.saver.MarkDirty()
	}

	if e.isSuspendedAt(ev.Camera, now) {
		e.finishDecision(ctx, ev.Camera, domain.ClassTrigger, domain.OutcomeSuspended, settings)
		return
	}

	if e.suppressed(ev.Camera, doc, settings, now) {
		e.finishDecision(ctx, ev.Camera, domain.ClassTrigger, domain.OutcomeSuppressed, settings)
		e.saver.Save(ctx, false)
		return
	}

	force := e.recordDelivery(ev.Camera, now)
	content := triggerContent(ev, entry.FriendlyName)
	e.enqueueAll(ctx, domain.ClassTrigger, ev.EventID, content)

	e.finishDecision(ctx, ev.Camera, domain.ClassTrigger, domain.OutcomeDelivered, settings)
	e.saver.Save(ctx, force)
}

// HandleTest sends a test notification to every user, bypassing all
// throttling and leaving the ledger untouched. With notifications disabled
// everywhere nothing is sent.
func (e *Engine) HandleTest(ctx context.Context) {
	if !e.NotificationsEnabled() {
		e.logger.DebugContext(ctx, "notifications disabled everywhere, skipping test notification")
		e.metrics.RecordDecision(ctx, "", domain.ClassTest, domain.OutcomeSkipped)
		return
	}

	e.enqueueAll(ctx, domain.ClassTest, "", testContent())
	e.metrics.RecordDecision(ctx, "", domain.ClassTest, domain.OutcomeDelivered)
}

// NotificationsEnabled reports whether notifications are enabled globally
// or for at least one camera.
func (e *Engine) NotificationsEnabled() bool {
	return e.cameras.Get().AnyEnabled()
}

// HandleCustom processes an API-submitted notification. With a camera it
// follows the camera's cooldown; without one only the global cooldown
// applies and no weight is recorded.
func (e *Engine) HandleCustom(ctx context.Context, ev CustomEvent) domain.DecisionOutcome {
	doc := e.cameras.Get()
	now := e.now()
	nowSecs := float64(now.UnixNano()) / 1e9

	if ev.Camera == "" {
		e.mu.Lock()
		inCooldown := nowSecs-e.lastNotification < float64(doc.Notifications.Cooldown)
		if !inCooldown {
			e.lastNotification = nowSecs
		}
		e.mu.Unlock()

		if inCooldown {
			e.metrics.RecordDecision(ctx, "", domain.ClassCustom, domain.OutcomeSuppressed)
			return domain.OutcomeSuppressed
		}

		e.enqueueAll(ctx, domain.ClassCustom, "", Content{
			Title:     ev.Title,
			Message:   ev.Message,
			DirectURL: ev.DirectURL,
			Image:     ev.Image,
			TTL:       ev.TTL,
		})
		e.metrics.RecordDecision(ctx, "", domain.ClassCustom, domain.OutcomeDelivered)
		return domain.OutcomeDelivered
	}

	_, settings, ok := e.cameraSettings(doc, ev.Camera)
	if !ok {
		e.finishDecision(ctx, ev.Camera, domain.ClassCustom, domain.OutcomeSkipped, settings)
		return domain.OutcomeSkipped
	}

	if e.ledger.PruneCamera(ev.Camera, now, settings.DecaySeconds()) {
		e.saver.MarkDirty()
	}

	if e.isSuspendedAt(ev.Camera, now) {
		e.finishDecision(ctx, ev.Camera, domain.ClassCustom, domain.OutcomeSuspended, settings)
		return domain.OutcomeSuspended
	}

	if e.suppressed(ev.Camera, doc, settings, now) {
		e.finishDecision(ctx, ev.Camera, domain.ClassCustom, domain.OutcomeSuppressed, settings)
		e.saver.Save(ctx, false)
		return domain.OutcomeSuppressed
	}

	force := e.recordDelivery(ev.Camera, now)
	e.enqueueAll(ctx, domain.ClassCustom, "", Content{
		Title:     ev.Title,
		Message:   ev.Message,
		DirectURL: ev.DirectURL,
		Image:     ev.Image,
		TTL:       ev.TTL,
	})
	e.finishDecision(ctx, ev.Camera, domain.ClassCustom, domain.OutcomeDelivered, settings)
	e.saver.Save(ctx, force)
	return domain.OutcomeDelivered
}

// Suspend mutes a camera's notifications until now plus the given number of
// minutes. Suspensions are deliberately not persisted; a restart clears
// them.
func (e *Engine) Suspend(camera string, minutes int) error {
	doc := e.cameras.Get()
	if _, ok := doc.Cameras[camera]; !ok {
		return domain.ErrCameraNotFound
	}

	until := float64(e.now().Add(time.Duration(minutes)*time.Minute).UnixNano()) / 1e9
	e.mu.Lock()
	e.suspendedUntil[camera] = until
	e.mu.Unlock()

	e.logger.Info("camera notifications suspended",
		slog.String("camera", camera),
		slog.Int("minutes", minutes))
	return nil
}

// Unsuspend lifts a camera's suspension immediately.
func (e *Engine) Unsuspend(camera string) error {
	doc := e.cameras.Get()
	if _, ok := doc.Cameras[camera]; !ok {
		return domain.ErrCameraNotFound
	}

	e.mu.Lock()
	delete(e.suspendedUntil, camera)
	e.mu.Unlock()

	e.logger.Info("camera notifications resumed", slog.String("camera", camera))
	return nil
}

// SuspendedUntil returns the suspension deadline in epoch seconds, or zero
// when the camera is not suspended.
func (e *Engine) SuspendedUntil(camera string) float64 {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	until := e.suspendedUntil[camera]
	if until <= float64(now.UnixNano())/1e9 {
		return 0
	}
	return until
}

// PruneAll expires aged weight across every camera. Run periodically so
// long-idle cameras do not keep stale snapshots on disk.
func (e *Engine) PruneAll(ctx context.Context) {
	doc := e.cameras.Get()
	now := e.now()

	changed := false
	for name, entry := range doc.Cameras {
		if e.ledger.PruneCamera(name, now, entry.Notifications.DecaySeconds()) {
			changed = true
		}
	}
	if changed {
		e.saver.MarkDirty()
		e.saver.Save(ctx, false)
	}
}

// Shutdown drains the dispatch pipeline and forces a final snapshot save.
// The caller must have started the worker; Shutdown joins it.
func (e *Engine) Shutdown(ctx context.Context, worker *dispatch.Worker) {
	e.queue.Close()
	worker.Join()

	e.saver.Save(ctx, true)

	if err := e.decisions.Flush(ctx); err != nil {
		e.logger.Warn("failed to flush decision recorder", slog.String("error", err.Error()))
	}
	e.logger.Info("notification engine stopped")
}

// cameraSettings resolves the camera's throttling settings, reporting false
// when the camera is unknown or notifications are disabled for it.
func (e *Engine) cameraSettings(doc *config.CameraDocument, camera string) (config.CameraEntry, cooldown.CameraSettings, bool) {
	entry, ok := doc.Cameras[camera]
	if !ok || !entry.Enabled || !entry.Notifications.Enabled {
		return config.CameraEntry{}, cooldown.CameraSettings{}, false
	}

	return entry, cameraSettingsOf(entry.Notifications), true
}

func cameraSettingsOf(s config.NotificationSettings) cooldown.CameraSettings {
	return cooldown.CameraSettings{
		Cooldown:        s.Cooldown,
		WeightFactor:    s.WeightFactor,
		WeightMaxFactor: s.WeightMaxFactor,
		WeightDecayDays: s.WeightDecayDays,
		SlotCount:       s.WeightTimeSlots,
	}
}

func (e *Engine) suppressed(camera string, doc *config.CameraDocument, settings cooldown.CameraSettings, now time.Time) bool {
	e.mu.Lock()
	lastCamera := e.lastCamera[camera]
	lastGlobal := e.lastNotification
	e.mu.Unlock()

	return e.policy.IsSuppressed(camera, settings, doc.Notifications.Cooldown, lastCamera, lastGlobal, now)
}

func (e *Engine) effectiveCooldown(camera string, settings cooldown.CameraSettings, now time.Time) float64 {
	e.mu.Lock()
	lastCamera := e.lastCamera[camera]
	e.mu.Unlock()
	return e.policy.EffectiveCooldown(camera, settings, lastCamera, now)
}

func (e *Engine) isSuspendedAt(camera string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.suspendedUntil[camera] > float64(now.UnixNano())/1e9
}

// recordDelivery adds weight for a delivered notification and updates the
// last-notification clocks. It reports whether the snapshot save should be
// forced, which happens every tenth entry in the active bucket.
func (e *Engine) recordDelivery(camera string, now time.Time) bool {
	count, ok := e.ledger.Record(camera, now)
	if ok {
		e.saver.MarkDirty()
	}

	nowSecs := float64(now.UnixNano()) / 1e9
	e.mu.Lock()
	e.lastCamera[camera] = nowSecs
	e.lastNotification = nowSecs
	e.mu.Unlock()

	return ok && count%10 == 0
}

// enqueueAll fans the content out to every registered user.
func (e *Engine) enqueueAll(ctx context.Context, class domain.NotificationClass, eventID string, content Content) {
	users, err := e.registry.Users(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to list notification users",
			slog.String("error", err.Error()))
		return
	}

	enqueued := 0
	for _, user := range users {
		n := domain.NewPendingNotification(user, class)
		n.EventID = eventID
		n.Title = content.Title
		n.Message = content.Message
		n.DirectURL = content.DirectURL
		n.Image = content.Image
		n.TTL = content.TTL
		if e.queue.Enqueue(n) {
			enqueued++
		}
	}

	if enqueued > 0 {
		e.metrics.RecordEnqueued(ctx, class, enqueued)
	}
	e.logger.DebugContext(ctx, "notifications enqueued",
		slog.String("class", class.String()),
		slog.Int("count", enqueued))
}

func (e *Engine) finishDecision(ctx context.Context, camera string, class domain.NotificationClass, outcome domain.DecisionOutcome, settings cooldown.CameraSettings) {
	e.metrics.RecordDecision(ctx, camera, class, outcome)

	now := e.now()
	decision := domain.ThrottleDecision{
		Camera:  camera,
		Class:   class,
		Outcome: outcome,
		At:      now,
	}
	if settings.SlotCount > 0 {
		e.mu.Lock()
		lastCamera := e.lastCamera[camera]
		e.mu.Unlock()

		weight, multiplier := e.policy.Multiplier(camera, settings, lastCamera, now)
		decision.NormalizedWeight = weight
		decision.Multiplier = multiplier
		decision.DynamicFactor = e.policy.DynamicWeightFactor(camera, settings, lastCamera, now)
		decision.EffectiveCooldown = e.policy.EffectiveCooldown(camera, settings, lastCamera, now)
	}

	if err := e.decisions.RecordDecision(ctx, decision); err != nil {
		e.logger.Warn("failed to record throttle decision", slog.String("error", err.Error()))
	}
}

// hasNewInfo reports whether an update changed the number of objects or
// zones since the previous state of the review item. The comparison is by
// count, not membership: a label swap at the same count is still noise.
func hasNewInfo(ev ReviewEvent) bool {
	return len(ev.PrevObjects) != len(ev.Objects) || len(ev.PrevZones) != len(ev.Zones)
}
