// Package errors builds the gRPC statuses returned to callers. Validation failures carry a
// BadRequest detail naming the offending field, authentication failures an ErrorInfo reason.
package errors

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain is the ErrorInfo domain stamped on authentication failures.
const Domain = "rpc-interceptors"

// InternalMessage is the only description an unexpected failure ever surfaces to a caller.
const InternalMessage = "Internal server error"

// Violation describes a single invalid request field.
type Violation struct {
	Field       string
	Description string
}

// InvalidArgument returns an INVALID_ARGUMENT status whose message is description and whose
// details name the offending field.
func InvalidArgument(field, description string) *status.Status {
	return withViolations(codes.InvalidArgument, description, Violation{Field: field, Description: description})
}

// FailedPrecondition returns a FAILED_PRECONDITION status carrying the violated field.
func FailedPrecondition(field, description string) *status.Status {
	st := status.New(codes.FailedPrecondition, description)
	detailed, err := st.WithDetails(&errdetails.PreconditionFailure{
		Violations: []*errdetails.PreconditionFailure_Violation{
			{Type: "VALIDATION", Subject: field, Description: description},
		},
	})
	if err != nil {
		return st
	}
	return detailed
}

// Unauthenticated returns an UNAUTHENTICATED status with an ErrorInfo detail carrying reason.
func Unauthenticated(reason, message string) *status.Status {
	st := status.New(codes.Unauthenticated, message)
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: Domain})
	if err != nil {
		return st
	}
	return detailed
}

// Cancelled returns a CANCELLED status.
func Cancelled(message string) *status.Status {
	return status.New(codes.Canceled, message)
}

// Internal returns the generic INTERNAL status. The cause is never part of it.
func Internal() *status.Status {
	return status.New(codes.Internal, InternalMessage)
}

func withViolations(code codes.Code, message string, violations ...Violation) *status.Status {
	st := status.New(code, message)
	br := &errdetails.BadRequest{}
	for _, v := range violations {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       v.Field,
			Description: v.Description,
		})
	}
	detailed, err := st.WithDetails(br)
	if err != nil {
		return st
	}
	return detailed
}

// FieldViolations extracts the BadRequest field violations carried by err, if any.
func FieldViolations(err error) []Violation {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	var out []Violation
	for _, d := range st.Details() {
		if br, ok := d.(*errdetails.BadRequest); ok {
			for _, fv := range br.GetFieldViolations() {
				out = append(out, Violation{Field: fv.GetField(), Description: fv.GetDescription()})
			}
		}
	}
	return out
}

// Reason returns the ErrorInfo reason carried by err, or "" when there is none.
func Reason(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}

// IsStatus reports whether err already carries a gRPC status.
func IsStatus(err error) bool {
	var se interface{ GRPCStatus() *status.Status }
	return errors.As(err, &se)
}
