package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-vr/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

var errWindowNotOpen = errors.New("mirror window is not open")

// glfwMirror is the glfw side of the mirror window.
type glfwMirror struct {
	owner  *engineWindow
	handle *glfw.Window
	open   bool
}

// newPlatformWindow opens the mirror window without a client API; wgpu creates the surface.
func newPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize glfw: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	handle, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create mirror window %dx%d: %w", w.width, w.height, err)
	}
	handle.SetSizeLimits(w.minWidth, w.minHeight, w.maxWidth, w.maxHeight)

	m := &glfwMirror{owner: w, handle: handle, open: true}
	handle.SetKeyCallback(m.key)
	handle.SetCloseCallback(func(*glfw.Window) { w.notifyClose() })
	handle.SetFramebufferSizeCallback(m.framebufferResized)
	w.internalWindow = m

	// the surface is sized in framebuffer pixels, which differ from window units on high-DPI
	w.width, w.height = handle.GetFramebufferSize()
	return nil
}

// key forwards operator keys. Escape ends the mirror session.
func (m *glfwMirror) key(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	code := uint32(key)
	if code == common.KeyEsc && action == glfw.Press {
		m.open = false
		m.handle.SetShouldClose(true)
		m.owner.notifyClose()
		return
	}

	if action == glfw.Release {
		if m.owner.onKeyUp != nil {
			m.owner.onKeyUp(code)
		}
		return
	}
	if m.owner.onKeyDown != nil {
		m.owner.onKeyDown(code)
	}
}

func (m *glfwMirror) framebufferResized(_ *glfw.Window, width, height int) {
	m.owner.width, m.owner.height = width, height
	if m.owner.onResize != nil {
		m.owner.onResize(width, height)
	}
}

func (m *glfwMirror) alive() bool {
	return m.open && !m.handle.ShouldClose()
}

func mirrorOf(w *engineWindow) (*glfwMirror, bool) {
	m, ok := w.internalWindow.(*glfwMirror)
	return m, ok && m != nil
}

func platformGetSurfaceDescriptor(w *engineWindow) *wgpu.SurfaceDescriptor {
	m, ok := mirrorOf(w)
	if !ok {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(m.handle)
}

func platformIsRunningCheck(w *engineWindow) bool {
	m, ok := mirrorOf(w)
	return ok && m.alive()
}

// platformCloseWindow destroys the mirror window and shuts glfw down.
//
// Parameters:
//   - w: the window to close
//
// Returns:
//   - error: errWindowNotOpen when the glfw window was never created
func platformCloseWindow(w *engineWindow) error {
	m, ok := mirrorOf(w)
	if !ok {
		return errWindowNotOpen
	}
	m.open = false
	m.handle.SetShouldClose(true)
	m.handle.Destroy()
	glfw.Terminate()
	return nil
}

// platformProcessMessages drains pending glfw events without blocking and reports whether the
// mirror is still open.
func platformProcessMessages(w *engineWindow) bool {
	glfw.PollEvents()
	return platformIsRunningCheck(w)
}
