package service

import (
	"context"
	"fmt"

	"github.com/vcguard/vcguard/internal/infra/storage"
)

type PolicyService struct {
	repo PolicyRepo
}

func NewPolicyService(r PolicyRepo) *PolicyService { return &PolicyService{repo: r} }

func (s *PolicyService) Get(ctx context.Context, guildID string) (storage.EnforcementPolicy, error) {
	return s.repo.Get(ctx, guildID)
}

func (s *PolicyService) Show(ctx context.Context, guildID string) (string, error) {
	p, err := s.repo.Get(ctx, guildID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"**Voice policy for %s**\n• enabled: **%v**\n• grace_seconds: **%d**\n• warning_interval_seconds: **%d**",
		guildID, p.Enabled, p.GraceSeconds, p.WarningIntervalSeconds,
	), nil
}

func (s *PolicyService) Update(ctx context.Context, guildID string, u storage.PolicyUpdate) (string, error) {
	if _, err := s.repo.Update(ctx, guildID, u); err != nil {
		return "", err
	}
	return s.Show(ctx, guildID)
}
