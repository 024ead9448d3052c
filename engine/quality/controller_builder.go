package quality

import "go.uber.org/zap"

// ControllerBuilderOption is a functional option for configuring a Controller.
type ControllerBuilderOption func(*controller)

// WithTable replaces the default quality table. The table is copied and validated by NewController.
//
// Parameters:
//   - t: the quality table
//
// Returns:
//   - ControllerBuilderOption: option function to apply
func WithTable(t Table) ControllerBuilderOption {
	return func(c *controller) {
		c.table = t.Clone()
	}
}

// WithSettings sets the initial operator settings.
//
// Parameters:
//   - s: the settings
//
// Returns:
//   - ControllerBuilderOption: option function to apply
func WithSettings(s Settings) ControllerBuilderOption {
	return func(c *controller) {
		c.settings = s
	}
}

// WithInitialLevel sets the level the controller starts at. It is clamped to the operator band on
// the first frame. Negative values start in the middle of the table.
//
// Parameters:
//   - level: the starting quality level
//
// Returns:
//   - ControllerBuilderOption: option function to apply
func WithInitialLevel(level int) ControllerBuilderOption {
	return func(c *controller) {
		c.level = level
	}
}

// WithLogger sets the logger used for lifecycle and adaptation logging.
//
// Parameters:
//   - logger: the zap logger
//
// Returns:
//   - ControllerBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) ControllerBuilderOption {
	return func(c *controller) {
		c.logger = logger
	}
}
