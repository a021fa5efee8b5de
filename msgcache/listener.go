package msgcache

// Listener receives edge-triggered telemetry of Cache
//
// Callbacks are invoked outside of cache locks, from whichever goroutine made the change
type Listener interface {
	EnabledChanged(enabled bool)
	LoadChanged(percent int)
	CurrentSizeMBChanged(sizeMB uint64)
	MaxSizeMBChanged(sizeMB uint64)
	FullChanged(full bool)
}
