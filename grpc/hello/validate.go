package hello

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/grpc/status"

	rpcerrors "github.com/rainbow-me/rpc-interceptors/grpc/errors"
)

const (
	MaxNameLength = 100

	invalidNameCharacters = "!@#$%^&*()"
)

// ValidateName checks a greeting name. The returned status is nil for a valid name.
func ValidateName(name string) *status.Status {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return rpcerrors.InvalidArgument("name", "Name cannot be empty")
	case strings.ContainsAny(name, invalidNameCharacters):
		return rpcerrors.InvalidArgument("name", "Name contains invalid characters")
	case utf8.RuneCountInString(name) > MaxNameLength:
		return rpcerrors.InvalidArgument("name", fmt.Sprintf("Name is too long (max %d characters)", MaxNameLength))
	case strings.HasPrefix(strings.ToLower(trimmed), "b"):
		return rpcerrors.FailedPrecondition("name", "Name cannot start with 'b'")
	}
	return nil
}

// validateStreamName applies the only rule server streaming enforces.
func validateStreamName(name string) *status.Status {
	if strings.TrimSpace(name) == "" {
		return rpcerrors.InvalidArgument("name", "Name cannot be empty")
	}
	return nil
}
