package common

// Virtual key codes for the desktop mirror window's operator controls.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyD     = 68 // D key (ASCII), toggles double buffering
	KeyP     = 80 // P key (ASCII), toggles suspended rendering
	KeyR     = 82 // R key (ASCII), toggles forced interleaved reprojection
	KeyX     = 88 // X key (ASCII), toggles the read-pixel probe
	KeyMinus = 45 // - key (ASCII), lowers desired supersampling
	KeyEqual = 61 // = key (ASCII), raises desired supersampling

	KeyLeftBracket  = 91 // [ key (ASCII), lowers the maximum quality level
	KeyRightBracket = 93 // ] key (ASCII), raises the maximum quality level
	Key0            = 48 // 0 key (ASCII), resets the level band to the full table

	KeyEsc = 256 // Escape key (GLFW)
)
