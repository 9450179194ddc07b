package shelly

import "errors"

// ErrAdapterUnavailable is returned when the discovery adapter is
// unreachable or answers with a non-success status. Only action
// operations surface it; reads degrade to empty results instead.
var ErrAdapterUnavailable = errors.New("shelly adapter unavailable")
