package billy

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elicazer/billy-bass-nova-sonic/internal/log"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/audioio"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/motor"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/mouth"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/sonic"
	"github.com/elicazer/billy-bass-nova-sonic/pkg/torso"
)

// mouthWorkers is the dispatch bound for mouth computations fed from
// playback. One in flight at a time keeps the amplitude window in chunk
// order; motor pulses have their own pool inside the driver.
const mouthWorkers = 1

// App wires the session engine, the audio pipelines, and the actuation
// layers together and supervises them until shutdown.
type App struct {
	cfg    Config
	client *sonic.Client

	mouthCtl *mouth.Controller
	mouthDrv *mouth.Driver
	torso    *torso.Machine

	mouthSem chan struct{}
	ann      announcer

	// Device factories, overridable in tests.
	newSource func(audioio.Config) (audioio.Source, error)
	newSink   func(audioio.Config) (audioio.Sink, error)

	captureOn    atomic.Bool
	chunkSeen    atomic.Bool
	lastActivity atomic.Int64 // unix nanos
	saidGoodbye  atomic.Bool

	mu       sync.Mutex
	capture  *Handle
	playback *Handle

	// idleTicks counts consecutive quiet supervisor ticks; crossing the
	// threshold marks an utterance boundary.
	idleTicks int

	shutdownOnce sync.Once
}

// New builds an App around the given actuators. The actuators are the
// only hardware dependencies injected directly; audio devices open
// lazily inside their tasks.
func New(cfg Config, mouthAct, torsoAct motor.Actuator) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := sonic.NewClient(cfg.Sonic)
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:      cfg,
		client:   client,
		mouthCtl: mouth.NewController(),
		mouthDrv: mouth.NewDriver(mouthAct, cfg.MouthDriver),
		torso:    torso.NewMachine(torsoAct, cfg.Torso),
		mouthSem: make(chan struct{}, mouthWorkers),
	}
	client.OnUserText = func(text string) {
		a.noteActivity()
		log.Info("user said", "text", text)
	}
	client.OnAssistantText = func(text string) {
		a.noteActivity()
		log.Info("assistant said", "text", text)
	}
	client.OnAssistantPreview = func(text string) {
		log.Debug("assistant draft", "text", text)
	}
	client.OnAudioChunk = func(pcm []byte) {
		a.noteActivity()
	}
	return a, nil
}

// Client exposes the underlying session engine, mainly so callers can
// override its dialer.
func (a *App) Client() *sonic.Client {
	return a.client
}

// Announce queues out-of-band text for delivery to the model on the
// next supervisor tick.
func (a *App) Announce(text string) {
	a.ann.enqueue(text)
}

// Run connects, opens the session, and supervises all tasks until the
// context is cancelled or an unrecoverable error occurs. Shutdown is
// performed on every exit path.
func (a *App) Run(ctx context.Context) error {
	if err := a.client.Connect(); err != nil {
		return err
	}
	if err := a.client.OpenSession(); err != nil {
		a.client.Close()
		return err
	}

	a.noteActivity()
	a.captureOn.Store(true)
	a.torso.SetListening(true)

	g, gctx := errgroup.WithContext(ctx)

	a.mu.Lock()
	a.capture = startTask(gctx, "capture", a.runCapture)
	a.playback = startTask(gctx, "playback", a.runPlayback)
	a.mu.Unlock()

	g.Go(func() error {
		return a.client.ReceiveLoop(gctx)
	})
	g.Go(func() error {
		// Closing the session is what unblocks a pending Receive.
		<-gctx.Done()
		a.client.Close()
		return nil
	})
	g.Go(func() error {
		return a.supervise(gctx)
	})
	g.Go(func() error {
		a.idleWag(gctx)
		return nil
	})
	g.Go(func() error {
		a.watchInactivity(gctx)
		return nil
	})

	err := g.Wait()
	a.Shutdown()
	return err
}

// supervise runs the periodic tick: restart dead pipeline tasks,
// drain one announcement, and advance the torso state machine.
func (a *App) supervise(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *App) tick(ctx context.Context) {
	a.mu.Lock()
	capture, playback := a.capture, a.playback
	a.mu.Unlock()

	// At most one restart per task per tick.
	if a.captureOn.Load() && capture != nil && !capture.Alive() && a.client.Active() {
		log.Warn("capture task died, restarting", "err", capture.Err(), "restarts", capture.Restarts())
		capture.Restart(ctx, a.runCapture)
	}
	if playback != nil && !playback.Alive() && a.client.Active() {
		log.Warn("playback task died, restarting", "err", playback.Err(), "restarts", playback.Restarts())
		playback.Restart(ctx, a.runPlayback)
	}

	if text, ok := a.ann.pop(); ok {
		if err := a.client.SendTextTurn(text, sonic.RoleUser); err != nil {
			log.Error("announcement failed", "err", err)
		}
	}

	chunkSeen := a.chunkSeen.Swap(false)
	queueEmpty := a.client.Queue().Empty()
	a.torso.Evaluate(chunkSeen, queueEmpty)

	// Clear the mouth envelope at utterance boundaries so one turn's
	// tail doesn't bleed into the next.
	if chunkSeen || !queueEmpty {
		a.idleTicks = 0
	} else {
		a.idleTicks++
		if a.idleTicks == 5 {
			a.mouthCtl.Reset()
		}
	}
}

// idleWag fires the boredom gesture on a slow cadence. The machine
// itself suppresses it unless the fish is at rest and listening.
func (a *App) idleWag(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Torso.IdlePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.client.Queue().Empty() {
				a.torso.Wag()
			}
		}
	}
}

// watchInactivity deactivates listening and queues a goodbye once the
// conversation has been quiet for the configured timeout.
func (a *App) watchInactivity(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.saidGoodbye.Load() || !a.captureOn.Load() {
				continue
			}
			last := time.Unix(0, a.lastActivity.Load())
			if time.Since(last) < a.cfg.InactivityTimeout {
				continue
			}
			if a.saidGoodbye.CompareAndSwap(false, true) {
				log.Info("inactivity timeout, winding down")
				a.deactivateCapture()
				a.ann.enqueue(a.cfg.GoodbyeText)
			}
		}
	}
}

// Shutdown tears everything down in order: session, tasks, motors.
// Safe to call more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		log.Info("shutting down")

		a.client.Close()

		a.mu.Lock()
		capture, playback := a.capture, a.playback
		a.mu.Unlock()
		for _, h := range []*Handle{capture, playback} {
			if h != nil {
				h.Cancel()
				h.Wait()
			}
		}

		a.mouthDrv.Stop()
		a.torso.Stop()
	})
}

func (a *App) noteActivity() {
	a.lastActivity.Store(time.Now().UnixNano())
}

func (a *App) noteChunk() {
	a.chunkSeen.Store(true)
	a.noteActivity()
}
