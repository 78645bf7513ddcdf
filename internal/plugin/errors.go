package plugin

import "errors"

// Plugin system errors.
var (
	// ErrLoad wraps every failure mode of Load: resolution, validation,
	// initialization, and task type registration.
	ErrLoad = errors.New("plugin load failed")

	// ErrNotLoaded is returned when operating on a plugin that is not loaded.
	ErrNotLoaded = errors.New("plugin not loaded")

	// ErrAlreadyLoaded is returned when a plugin of the same name is loaded.
	ErrAlreadyLoaded = errors.New("plugin already loaded")

	// ErrInvalidPlugin is returned when a resolved plugin fails structural
	// validation.
	ErrInvalidPlugin = errors.New("invalid plugin")

	// ErrNoResolver is returned when no resolver can handle a path.
	ErrNoResolver = errors.New("no resolver for plugin path")
)
