package algo

import "errors"

var ErrStateKeyNotFound = errors.New("key not found in global state")
