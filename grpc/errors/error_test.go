package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	rpcerrors "github.com/rainbow-me/rpc-interceptors/grpc/errors"
)

func TestInvalidArgument(t *testing.T) {
	err := rpcerrors.InvalidArgument("name", "Name cannot be empty").Err()

	st := status.Convert(err)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Equal(t, "Name cannot be empty", st.Message())
	assert.Equal(t,
		[]rpcerrors.Violation{{Field: "name", Description: "Name cannot be empty"}},
		rpcerrors.FieldViolations(err),
	)
}

func TestUnauthenticated(t *testing.T) {
	err := rpcerrors.Unauthenticated("MISSING_HEADER", "Missing Authorization header").Err()

	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "MISSING_HEADER", rpcerrors.Reason(err))
	assert.Empty(t, rpcerrors.FieldViolations(err))
}

func TestFailedPrecondition(t *testing.T) {
	err := rpcerrors.FailedPrecondition("name", "Name cannot start with 'b'").Err()
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, "Name cannot start with 'b'", status.Convert(err).Message())
}

func TestInternal(t *testing.T) {
	st := rpcerrors.Internal()
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, rpcerrors.InternalMessage, st.Message())
}

func TestIsStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"status", status.Error(codes.NotFound, "x"), true},
		{"wrapped status", fmt.Errorf("ctx: %w", status.Error(codes.NotFound, "x")), true},
		{"plain", fmt.Errorf("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rpcerrors.IsStatus(tt.err))
		})
	}
}
