package inspect

import (
	"github.com/deploymenttheory/go-shellshock/pkg/app"
)

// maxWalkDepth bounds the tree walk; a volume this small cannot nest deeper
// than it has inodes.
const maxWalkDepth = 4096

// Validate validates an inspection request
func (r *Request) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid image target", err)
	}
	if r.MaxDepth < 0 || r.MaxDepth > maxWalkDepth {
		return app.NewError(app.ErrCodeInvalidInput, "max depth must be between 0 and 4096", nil)
	}
	return nil
}
