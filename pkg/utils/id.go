package utils

import "github.com/google/uuid"

func NewID() string { return uuid.NewString() }

// IsID 只接受标准 uuid 文本
func IsID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}
