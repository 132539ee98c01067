package dashboard

import "errors"

var ErrClosed = errors.New("dashboard: node stopped")
