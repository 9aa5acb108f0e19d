package common

import (
	"cbs/src/config"
	"cbs/src/lib"
	"cbs/src/types"
)

// CurrentFlags resolves the global feature flags exactly once per request.
// The resolved value is passed into both the availability query and the
// checkout validator; neither may re-derive a flag on its own.
func CurrentFlags() types.FeatureFlags {
	enabled := config.WaitlistFeatureEnabled()
	if v, ok := lib.GetFlagOverride("waitlist"); ok {
		enabled = v
	}
	return types.FeatureFlags{WaitlistEnabled: enabled}
}
