package auth

// Whitelist decides which methods bypass authentication.
type Whitelist interface {
	Allows(fullMethod string) bool
}

// WhitelistFunc adapts a function to Whitelist.
type WhitelistFunc func(fullMethod string) bool

func (f WhitelistFunc) Allows(fullMethod string) bool { return f(fullMethod) }

// MethodSet is a Whitelist over exact full method names such as "/grpc.health.v1.Health/Check".
type MethodSet map[string]struct{}

func NewMethodSet(methods ...string) MethodSet {
	s := make(MethodSet, len(methods))
	for _, m := range methods {
		s[m] = struct{}{}
	}
	return s
}

func (s MethodSet) Allows(fullMethod string) bool {
	_, ok := s[fullMethod]
	return ok
}
