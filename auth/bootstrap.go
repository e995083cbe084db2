package auth

import (
	"context"
	"fmt"

	"github.com/soroboxing/gymgate/member"
)

// BootstrapAdmin creates the first admin. It is meant for the operator CLI
// and is not exposed over HTTP. When secret is empty one is generated; the
// effective secret is returned.
func (s *Service) BootstrapAdmin(ctx context.Context, identifier, secret string) (_ *member.Member, _ string, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.bootstrap_admin")
	defer func() { endSpan(span, err) }()

	secret = member.NormalizeSecret(secret)
	if secret == "" {
		secret, err = GenerateSecret(s.secretLength)
		if err != nil {
			return nil, "", err
		}
	}
	if err := validateSecret(secret); err != nil {
		return nil, "", err
	}
	m, err := s.createMember(ctx, NewMember{Identifier: identifier, Role: member.RoleAdmin}, secret)
	if err != nil {
		return nil, "", err
	}
	return m, secret, nil
}

// validateSecret accepts 4 to 64 printable characters for operator-chosen
// secrets. Generated PINs always pass.
func validateSecret(secret string) error {
	if len(secret) < MinSecretLength || len(secret) > 64 {
		return fmt.Errorf("secret must be between %d and 64 characters", MinSecretLength)
	}
	return nil
}
