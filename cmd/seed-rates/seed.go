package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dumeirei/marketplace-backend/internal/common/errors"
	adminService "github.com/dumeirei/marketplace-backend/internal/service/admin"
)

// RatePack YAML 费率包
type RatePack struct {
	Rates []adminService.CreateRateRequest `yaml:"rates"`
}

// SeedResult 导入结果
type SeedResult struct {
	Created int
	Skipped int
}

// LoadRatePack 读取费率包文件
func LoadRatePack(path string) (*RatePack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRatePack(data)
}

// ParseRatePack 解析费率包
func ParseRatePack(data []byte) (*RatePack, error) {
	var pack RatePack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse rate pack: %w", err)
	}
	if len(pack.Rates) == 0 {
		return nil, fmt.Errorf("rate pack has no rates")
	}
	return &pack, nil
}

// Seed 按顺序创建费率，skipExisting 为 true 时跳过已存在的编码
func Seed(ctx context.Context, svc *adminService.CommissionRateAdminService, pack *RatePack, skipExisting bool) (*SeedResult, error) {
	result := &SeedResult{}
	for i := range pack.Rates {
		req := &pack.Rates[i]
		if _, err := svc.CreateRate(ctx, req); err != nil {
			if skipExisting && stderrors.Is(err, errors.ErrCommissionRateCodeExists) {
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("rate %q: %w", req.Code, err)
		}
		result.Created++
	}
	return result, nil
}
