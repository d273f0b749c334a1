package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/repository"
	"gorm.io/gorm"
)

// MaxSequence 每个前缀每年可分配的最大序号
const MaxSequence = 999

var membershipIDPattern = regexp.MustCompile(`^([A-Z]+)-([0-9]{4})-([0-9]{3})$`)

// FormatMembershipID 格式化会员编号,例如 IEPSL-2024-001
func FormatMembershipID(prefix string, year int, seq int) string {
	return fmt.Sprintf("%s-%04d-%03d", prefix, year, seq)
}

// ParseMembershipID 解析会员编号
func ParseMembershipID(id string) (prefix string, year int, seq int, err error) {
	m := membershipIDPattern.FindStringSubmatch(id)
	if m == nil {
		return "", 0, 0, fmt.Errorf("invalid membership id %q", id)
	}
	year, _ = strconv.Atoi(m[2])
	seq, _ = strconv.Atoi(m[3])
	return m[1], year, seq, nil
}

// IsMembershipID 判断字符串是否为合法会员编号
func IsMembershipID(id string) bool {
	return membershipIDPattern.MatchString(id)
}

// MembershipIDGenerator 会员编号生成器
type MembershipIDGenerator interface {
	// Next 在调用方事务内分配下一个编号,事务回滚时编号一并回滚
	Next(ctx context.Context, tx *gorm.DB, year int) (string, error)
}

// membershipIDGenerator 基于计数器表的编号生成器
type membershipIDGenerator struct {
	prefix string
}

// NewMembershipIDGenerator 创建会员编号生成器
func NewMembershipIDGenerator(prefix string) MembershipIDGenerator {
	return &membershipIDGenerator{prefix: prefix}
}

// Next 分配下一个编号
func (g *membershipIDGenerator) Next(ctx context.Context, tx *gorm.DB, year int) (string, error) {
	seqRepo := repository.NewSequenceRepository(tx)

	// 1. 递增计数器,UPDATE 持有行锁直到事务结束
	affected, err := seqRepo.Increment(ctx, g.prefix, year)
	if err != nil {
		return "", fmt.Errorf("failed to increment membership sequence: %w", err)
	}

	// 2. 计数器不存在时,从已有的最大编号初始化,避免重复发放历史编号
	if affected == 0 {
		start, err := g.highestIssued(ctx, tx, year)
		if err != nil {
			return "", err
		}
		if err := seqRepo.Seed(ctx, g.prefix, year, start); err != nil {
			return "", fmt.Errorf("failed to seed membership sequence: %w", err)
		}
		if _, err := seqRepo.Increment(ctx, g.prefix, year); err != nil {
			return "", fmt.Errorf("failed to increment membership sequence: %w", err)
		}
	}

	// 3. 读取本事务分配到的值
	value, err := seqRepo.Current(ctx, g.prefix, year)
	if err != nil {
		return "", fmt.Errorf("failed to read membership sequence: %w", err)
	}
	if value > MaxSequence {
		return "", apperror.NewConflict("membership id sequence exhausted", strconv.Itoa(year))
	}

	return FormatMembershipID(g.prefix, year, value), nil
}

// highestIssued 返回该年份已发放的最大序号
func (g *membershipIDGenerator) highestIssued(ctx context.Context, tx *gorm.DB, year int) (int, error) {
	prefix := fmt.Sprintf("%s-%04d-", g.prefix, year)
	max, err := repository.NewApplicantRepository(tx).MaxMembershipID(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to find highest membership id: %w", err)
	}
	if max == "" {
		return 0, nil
	}
	// 不符合格式的历史数据不参与编号
	_, _, seq, err := ParseMembershipID(max)
	if err != nil {
		return 0, nil
	}
	return seq, nil
}
