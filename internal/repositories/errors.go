package repositories

import "errors"

// ErrDeviceRequired indicates a database-backed store was built without a device name.
var ErrDeviceRequired = errors.New("device name is required")
