package noop

import "github.com/vkrmg/rmg/hal"

// init registers the noop backend with the HAL registry.
func init() {
	hal.RegisterBackend(API{})
}
