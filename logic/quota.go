package logic

import (
	"errors"

	"github.com/linxy101-sys/too/models"
)

// ErrQuotaExceeded 额度用尽，提交前置检查失败
var ErrQuotaExceeded = errors.New("额度已用尽，请联系管理员充值")

// QuotaPolicy 批量提交的计费口径。历史版本里两种都出现过，按配置选
type QuotaPolicy int

const (
	// QuotaPerTask 每个成功提交的任务扣一次（默认）
	QuotaPerTask QuotaPolicy = iota
	// QuotaPerBatch 一批只扣一次
	QuotaPerBatch
)

// QuotaGate 额度门。提交入口在同一个临界区里 Available + Consume（先占住名额），
// 远端失败再 Refund 退回——两个并发提交卡在最后一个名额上时只放行一个。
type QuotaGate struct {
	Policy QuotaPolicy
}

// Available 还有剩余额度
func (g *QuotaGate) Available(d *models.UserData) bool {
	return d.UsageCount < d.QuotaLimit
}

// Consume 扣减 n 个额度
func (g *QuotaGate) Consume(d *models.UserData, n int64) {
	if n <= 0 {
		return
	}
	d.UsageCount += n
}

// Refund 退回 n 个额度（远端提交失败时把预占的名额还回去）
func (g *QuotaGate) Refund(d *models.UserData, n int64) {
	if n <= 0 {
		return
	}
	d.UsageCount -= n
	if d.UsageCount < 0 {
		d.UsageCount = 0
	}
}

// BatchCharge 按策略计算一批成功提交 submitted 个任务应扣的额度
func (g *QuotaGate) BatchCharge(submitted int) int64 {
	if submitted <= 0 {
		return 0
	}
	if g.Policy == QuotaPerBatch {
		return 1
	}
	return int64(submitted)
}
