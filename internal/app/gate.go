package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Gate admits a connection only when its credential resolves to an identity.
type Gate struct {
	Verifier core.TokenVerifier
}

func NewGate(v core.TokenVerifier) *Gate {
	return &Gate{Verifier: v}
}

func (g *Gate) Admit(ctx context.Context, credential string) (domain.User, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return domain.User{}, fmt.Errorf("%w: missing credential", domain.ErrAuthentication)
	}
	user, err := g.Verifier.Verify(ctx, credential)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.gate").Msg("credential rejected")
		return domain.User{}, fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}
	if user.ID == "" {
		return domain.User{}, fmt.Errorf("%w: credential has no subject", domain.ErrAuthentication)
	}
	return user, nil
}
