package quality

import (
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-vr/engine/compositor"
	"github.com/Carmen-Shannon/oxy-vr/engine/gpu"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// errFenceTimeout marks a single timed-out poll; it is retried and never returned to callers.
var errFenceTimeout = errors.New("fence poll timed out")

// waitFence polls a fence until it signals. A timeout is retried immediately; an explicit wait
// failure is permanent. maxAttempts bounds the number of polls, 0 polls forever.
//
// Parameters:
//   - fence: the fence to wait on
//   - timeout: the bound of a single poll
//   - maxAttempts: the poll budget, 0 for unbounded
//
// Returns:
//   - int: the number of polls made
//   - error: ErrFenceWaitFailed or ErrFenceWaitExhausted
func waitFence(fence gpu.Fence, timeout time.Duration, maxAttempts int) (int, error) {
	attempts := 0
	poll := func() error {
		attempts++
		switch status := fence.ClientWait(timeout); status {
		case gpu.FenceSignaled:
			return nil
		case gpu.FenceTimeout:
			return errFenceTimeout
		default:
			return backoff.Permanent(fmt.Errorf("%w: %s after %d polls", ErrFenceWaitFailed, status, attempts))
		}
	}

	var policy backoff.BackOff = &backoff.ZeroBackOff{}
	if maxAttempts > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(maxAttempts-1))
	}

	err := backoff.Retry(poll, policy)
	if errors.Is(err, errFenceTimeout) {
		return attempts, fmt.Errorf("%w: unsignaled after %d polls", ErrFenceWaitExhausted, attempts)
	}
	return attempts, err
}

func (c *controller) Present(readPixelProbe bool) error {
	if c.released {
		return ErrReleased
	}
	s := c.settings
	if s.SuspendedRendering {
		return nil
	}
	if c.resolvePool.Released() {
		return fmt.Errorf("%w: no targets allocated", ErrReleased)
	}
	c.fenceWaitAttempts = 0

	if !s.DoubleBuffering {
		// fences issued before double buffering was switched off
		for i := range 2 {
			if err := c.settle(i); err != nil {
				return err
			}
		}
		c.submit(c.resolveIndex, c.viewport, readPixelProbe)
		return nil
	}

	other := 1 - c.resolveIndex
	if err := c.settle(other); err != nil {
		return err
	}
	// the other buffer was resolved last frame, possibly at a different viewport
	if c.resolvePool.Target(other).resolved && !c.lastViewport.IsZero() {
		c.submit(other, c.lastViewport, readPixelProbe)
	}

	current := c.resolvePool.Target(c.resolveIndex)
	fence, err := c.device.InsertFence()
	if err != nil {
		return fmt.Errorf("failed to insert fence for resolve target %d: %w", current.Index, err)
	}
	if current.fence != nil {
		current.fence.Release()
	}
	current.fence = fence
	return nil
}

// settle waits for a resolve target's outstanding fence and frees it.
func (c *controller) settle(index int) error {
	t := c.resolvePool.Target(index)
	if t.fence == nil {
		return nil
	}
	s := c.settings
	attempts, err := waitFence(t.fence, s.FencePollTimeout, s.FenceMaxAttempts)
	c.fenceWaits++
	c.fenceWaitAttempts += attempts
	if s.FenceMaxAttempts > 0 && attempts*4 >= s.FenceMaxAttempts*3 && err == nil {
		c.logger.Warn("fence wait close to retry budget",
			zap.Int("resolve_target", index),
			zap.Int("attempts", attempts),
			zap.Int("budget", s.FenceMaxAttempts))
	}
	if err != nil {
		c.logger.Error("fence wait failed", zap.Int("resolve_target", index), zap.Int("attempts", attempts), zap.Error(err))
		return fmt.Errorf("resolve target %d: %w", index, err)
	}
	t.fence.Release()
	t.fence = nil
	return nil
}

// submit hands both eyes of a resolve target to the compositor, bounded to the viewport the buffer
// was rendered at. Rejected submissions are logged and counted; the frame is simply not shown.
func (c *controller) submit(index int, vp Viewport, readPixelProbe bool) {
	t := c.resolvePool.Target(index)
	bounds := compositor.Bounds{
		UMax: float64(vp.Width) / float64(t.Width),
		VMax: float64(vp.Height) / float64(t.Height),
	}

	if readPixelProbe {
		px, err := c.device.ReadPixel(t.Color, int(compositor.EyeLeft), vp.Width/2, vp.Height/2)
		if err != nil {
			c.logger.Warn("pixel probe failed", zap.Int("resolve_target", index), zap.Error(err))
		}
		c.probePixel, c.probeValid = px, err == nil
	}

	for _, eye := range compositor.Eyes {
		if err := c.comp.Submit(eye, t.View(eye), bounds); err != nil {
			c.submitErrors++
			c.logger.Warn("compositor rejected submission",
				zap.Int("resolve_target", index),
				zap.Stringer("eye", eye),
				zap.Error(err))
		}
	}
}
