package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
)

func coopIdentifierKey(identifier string) string { return "coop:id:" + identifier }

func coopHostnameKey(hostname string) string { return "coop:host:" + strings.ToLower(hostname) }

// GetCoopByIdentifier resolves the public configuration of a coop. Unknown identifiers
// fall back to the default coop; a missing default coop is a server error.
func (s *Service) GetCoopByIdentifier(ctx context.Context, identifier string) (CoopResponse, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier != "" {
		coop, err := s.cachedCoop(ctx, coopIdentifierKey(identifier), func() (domain.Coop, error) {
			return s.coops.GetByIdentifier(ctx, identifier)
		})
		if err == nil {
			return toCoopResponse(coop), nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return CoopResponse{}, err
		}
		logOperation(ctx, slog.LevelInfo, "unknown coop, using default", "get_coop_by_identifier", "noop",
			"coop", identifier, "default_coop", s.cfg.DefaultCoop)
	}

	coop, err := s.cachedCoop(ctx, coopIdentifierKey(s.cfg.DefaultCoop), func() (domain.Coop, error) {
		return s.coops.GetByIdentifier(ctx, s.cfg.DefaultCoop)
	})
	if errors.Is(err, domain.ErrNotFound) {
		// Not a sentinel on purpose: a deployment without its default coop is broken.
		return CoopResponse{}, fmt.Errorf("default coop %q is missing", s.cfg.DefaultCoop)
	}
	if err != nil {
		return CoopResponse{}, err
	}
	return toCoopResponse(coop), nil
}

func (s *Service) GetCoopByHostname(ctx context.Context, hostname string) (CoopResponse, error) {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return CoopResponse{}, fmt.Errorf("%w: hostname is required", domain.ErrInvalidInput)
	}
	coop, err := s.cachedCoop(ctx, coopHostnameKey(hostname), func() (domain.Coop, error) {
		return s.coops.GetByHostname(ctx, strings.ToLower(hostname))
	})
	if err != nil {
		return CoopResponse{}, err
	}
	return toCoopResponse(coop), nil
}

// cachedCoop is a read-through lookup. Cache failures are logged and bypassed.
func (s *Service) cachedCoop(ctx context.Context, key string, load func() (domain.Coop, error)) (domain.Coop, error) {
	if s.coopCache != nil {
		cached, err := s.coopCache.Get(ctx, key)
		if err != nil {
			logOperation(ctx, slog.LevelWarn, "coop cache read failed", "coop_cache_get", "warning",
				"key", key, "error", err)
		} else if cached != nil {
			return *cached, nil
		}
	}
	coop, err := load()
	if err != nil {
		return domain.Coop{}, err
	}
	if s.coopCache != nil && s.cfg.CoopCacheTTL > 0 {
		if err := s.coopCache.Put(ctx, key, coop, s.cfg.CoopCacheTTL); err != nil {
			logOperation(ctx, slog.LevelWarn, "coop cache write failed", "coop_cache_put", "warning",
				"key", key, "error", err)
		}
	}
	return coop, nil
}

// needUserVerification defaults to true when the coop cannot be read.
func (s *Service) needUserVerification(ctx context.Context, identifier string) bool {
	coop, err := s.cachedCoop(ctx, coopIdentifierKey(identifier), func() (domain.Coop, error) {
		return s.coops.GetByIdentifier(ctx, identifier)
	})
	if err != nil {
		return true
	}
	return coop.NeedUserVerification
}
