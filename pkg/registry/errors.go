package registry

import "errors"

var (
    ErrInvalidWorker       = errors.New("registry: worker without host address")
    ErrNoTransactionalID   = errors.New("registry: transactional ids exhausted")
    ErrUnsupportedSnapshot = errors.New("registry: unsupported snapshot version")
)
