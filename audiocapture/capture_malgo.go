package audiocapture

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// capturer records from the default microphone through miniaudio.
// The audio context and device are created on Start and released on Stop,
// so the microphone is held only while a capture is active.
type capturer struct {
	sampleRate int

	mu      sync.Mutex
	running bool
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	scratch []float32
}

// New creates a Capturer for the default input device.
func New(sampleRate int) (Capturer, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &capturer{sampleRate: sampleRate}, nil
}

func (c *capturer) SampleRate() int { return c.sampleRate }

func (c *capturer) Start(handler AudioHandler) error {
	if handler == nil {
		return errors.New("audiocapture: nil handler")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrRunning
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return deviceError("init context", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(c.sampleRate)
	cfg.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			// miniaudio invokes this from a single audio thread.
			c.scratch = pcm16ToFloat32(c.scratch, in)
			handler(c.scratch)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		releaseContext(ctx)
		return deviceError("init device", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		releaseContext(ctx)
		return deviceError("start device", err)
	}

	c.ctx = ctx
	c.device = device
	c.running = true
	slog.Debug("microphone opened", "sample_rate", c.sampleRate)
	return nil
}

func (c *capturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false

	var err error
	if c.device != nil {
		err = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	if c.ctx != nil {
		releaseContext(c.ctx)
		c.ctx = nil
	}
	slog.Debug("microphone released")
	return err
}

func releaseContext(ctx *malgo.AllocatedContext) {
	if err := ctx.Uninit(); err != nil {
		slog.Warn("uninit audio context", "error", err)
	}
	ctx.Free()
}
