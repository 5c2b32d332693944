// Command videoout-sim runs the video output subsystem against headless
// collaborators: one producer per output submits flips in step with vblank
// events, and a vsync driver ticks at the refresh rate, presenting queued
// flips at the flip rate. A summary is logged on exit.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joeycumines/go-videoout/equeue"
	"github.com/joeycumines/go-videoout/gpu"
	"github.com/joeycumines/go-videoout/internal/sysclock"
	"github.com/joeycumines/go-videoout/kernel"
	"github.com/joeycumines/go-videoout/videoout"
	"github.com/joeycumines/go-videoout/vsync"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

func run(ctx context.Context, args []string, output io.Writer) error {
	cfg, err := loadConfig(args, output)
	if err != nil {
		return err
	}
	level, _ := parseLevel(cfg.Sim.LogLevel)
	logger := newLogger(output, level)

	var memory gpu.Memory
	presenter := gpu.NewHeadlessPresenter(&memory,
		gpu.WithPresentDelay(cfg.Sim.PresentDelay),
		gpu.WithPresenterLogger(logger),
	)
	video, err := videoout.New(&cfg.VideoOut, videoout.Collaborators{
		Presenter: presenter,
		Memory:    &memory,
		Tiler:     gpu.Linear{},
		Clock:     sysclock.New(),
	}, videoout.WithLogger(logger))
	if err != nil {
		return err
	}
	defer video.Shutdown()

	k, err := kernel.New(video, kernel.WithLogger(logger))
	if err != nil {
		return err
	}
	defer k.Close()

	driver, err := vsync.New(video, video.Config().RefreshRate,
		vsync.WithFlipper(video),
		vsync.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	if cfg.Sim.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Sim.Duration)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)

	// the subscriber outlives every publisher (the group), as sends block
	subCtx, subCancel := context.WithCancel(context.Background())
	defer subCancel()
	notifications := make(chan videoout.Notification, 16)
	unsubscribe := video.Subscribe(subCtx, notifications)
	defer unsubscribe()
	var counts [3]uint64
	counted := make(chan struct{})
	go func() {
		defer close(counted)
		for {
			select {
			case <-subCtx.Done():
				return
			case n := <-notifications:
				counts[n.Kind]++
			}
		}
	}()

	g.Go(func() error {
		if err := driver.Run(ctx); !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	})

	producers := make([]*producer, cfg.Sim.Outputs)
	for i := range producers {
		p, err := newProducer(k, logger, i, cfg.Sim.Buffers, cfg.Sim.FlipRate)
		if err != nil {
			cancel()
			_ = g.Wait()
			subCancel()
			<-counted
			return err
		}
		producers[i] = p
	}

	var pg errgroup.Group
	for _, p := range producers {
		pg.Go(func() error { return p.run(ctx, cfg.Sim.Frames) })
	}
	g.Go(func() error {
		defer cancel()
		return pg.Wait()
	})

	err = g.Wait()
	subCancel()
	<-counted

	m := video.Metrics()
	b := logger.Info().
		Dur(`elapsed`, time.Since(start)).
		Uint64(`flips`, m.Flips).
		Uint64(`vblanks`, m.Vblanks).
		Uint64(`vsync_flips`, driver.Flips()).
		Float64(`flip_rate_hz`, video.FlipRate().Hz(video.Config().RefreshRate)).
		Uint64(`queue_full`, m.QueueFull).
		Uint64(`present_failures`, m.PresentFailures).
		Uint64(`dropped`, m.Dropped).
		Uint64(`frames_presented`, presenter.Frames()).
		Uint64(`flip_notifications`, counts[videoout.NotifyFlip]).
		Dur(`latency_p50`, m.Latency.P50).
		Dur(`latency_p90`, m.Latency.P90).
		Dur(`latency_p99`, m.Latency.P99)
	for _, p := range producers {
		b = b.Uint64(fmt.Sprintf(`output_%d_flips`, p.index), p.flips)
	}
	b.Log(`simulation finished`)

	return err
}

// producer renders (nothing) into its buffers, submitting a flip each vblank.
type producer struct {
	k       *kernel.Kernel
	logger  *logiface.Logger[logiface.Event]
	flips   uint64
	eq      kernel.EqueueHandle
	index   int
	buffers int
	handle  int32
}

func newProducer(k *kernel.Kernel, logger *logiface.Logger[logiface.Event], index, buffers int, rate videoout.FlipRate) (*producer, error) {
	p := &producer{
		k:       k,
		logger:  logger.Clone().Int(`output`, index).Logger(),
		index:   index,
		buffers: buffers,
	}

	p.handle = k.VideoOutOpen(0, videoout.BusTypeMain, 0)
	if r := kernel.Result(p.handle); r.IsError() {
		return nil, errors.Errorf(`open video out: %s`, r)
	}

	if r := k.VideoOutSetFlipRate(p.handle, int32(rate)); r.IsError() {
		return nil, errors.Errorf(`set flip rate: %s`, r)
	}

	addresses := make([]uint64, buffers)
	for i := range addresses {
		addresses[i] = uint64(index+1)<<32 | uint64(i+1)<<24
	}
	cfg := k.VideoOut().Config()
	attr := videoout.BufferAttribute{
		PixelFormat:  videoout.PixelFormatA8R8G8B8Srgb,
		TilingMode:   videoout.TilingModeTile,
		Width:        cfg.Width,
		Height:       cfg.Height,
		PitchInPixel: cfg.Width,
	}
	if id := k.VideoOutRegisterBuffers(p.handle, 0, addresses, &attr); kernel.Result(id).IsError() {
		return nil, errors.Errorf(`register buffers: %s`, kernel.Result(id))
	}

	var r kernel.Result
	if p.eq, r = k.EqueueCreate(fmt.Sprintf(`output-%d`, index)); r.IsError() {
		return nil, errors.Errorf(`create equeue: %s`, r)
	}
	if r := k.VideoOutAddFlipEvent(p.eq, p.handle, index); r.IsError() {
		return nil, errors.Errorf(`add flip event: %s`, r)
	}
	if r := k.VideoOutAddVblankEvent(p.eq, p.handle, index); r.IsError() {
		return nil, errors.Errorf(`add vblank event: %s`, r)
	}

	return p, nil
}

// run submits frames flips, then waits for the last to complete.
func (x *producer) run(ctx context.Context, frames int) error {
	for frame := 0; frame < frames; {
		events, r := x.k.EqueueWait(ctx, x.eq, 4, 0)
		if ctx.Err() != nil {
			return nil
		}
		if r.IsError() {
			return errors.Errorf(`output %d: wait: %s`, x.index, r)
		}
		for _, ev := range events {
			if ev.Filter == equeue.FilterFlip {
				x.flips += ev.FFlags
			}
		}

		switch r := x.k.VideoOutSubmitFlip(x.handle, int32(frame%x.buffers), int64(frame)); r {
		case kernel.OK:
			frame++
		case kernel.ErrorVideoOutFlipQueueFull:
			// retry on the next vblank
		default:
			return errors.Errorf(`output %d: submit flip: %s`, x.index, r)
		}
	}

	if frames > 0 {
		if r := x.k.VideoOutWaitFlipDone(ctx, x.handle, int32((frames-1)%x.buffers)); r.IsError() && ctx.Err() == nil {
			return errors.Errorf(`output %d: wait flip done: %s`, x.index, r)
		}
	}
	if events := x.drain(); len(events) != 0 {
		x.logger.Debug().
			Int(`events`, len(events)).
			Log(`drained events`)
	}

	x.logger.Info().
		Uint64(`flips`, x.flips).
		Log(`producer finished`)

	return nil
}

func (x *producer) drain() []equeue.Event {
	q, ok := x.k.Equeue(x.eq)
	if !ok {
		return nil
	}
	events := q.GetTriggeredEvents(4)
	for _, ev := range events {
		if ev.Filter == equeue.FilterFlip {
			x.flips += ev.FFlags
		}
	}
	return events
}
