package directory

import "errors"

var (
	ErrFailedToConnect     = errors.New("failed to connect to platform database")
	ErrFailedToParseConfig = errors.New("failed to parse platform database config")
	ErrLookupFailed        = errors.New("tenant directory lookup failed")
	ErrHealthcheckFailed   = errors.New("platform database healthcheck failed")
)
