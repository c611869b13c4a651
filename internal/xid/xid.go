package xid

import "github.com/google/uuid"

// New returns a prefixed random id such as "shift-6f1c...".
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
