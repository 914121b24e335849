package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mstgnz/storepay/infra/logger"
)

// SweepPolicy decides what happens to orders left pending for too long
type SweepPolicy string

const (
	// SweepKeep only reports stale orders; they stay pending
	SweepKeep SweepPolicy = "keep"
	// SweepFail moves stale orders to failed
	SweepFail SweepPolicy = "fail"
)

// ParseSweepPolicy maps a config value to a policy, defaulting to keep
func ParseSweepPolicy(s string) SweepPolicy {
	if SweepPolicy(strings.ToLower(strings.TrimSpace(s))) == SweepFail {
		return SweepFail
	}
	return SweepKeep
}

// SweepReport summarises one sweep
type SweepReport struct {
	Stale  int
	Failed []int64
}

// SweepPending finds orders pending for longer than olderThan and applies policy
func (s *Store) SweepPending(ctx context.Context, olderThan time.Duration, policy SweepPolicy) (*SweepReport, error) {
	cutoff := s.now().UTC().Add(-olderThan)

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT id FROM orders
		WHERE status = ? AND created_at < ?
		ORDER BY id`), StatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale orders: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	report := &SweepReport{Stale: len(ids)}
	if policy != SweepFail {
		return report, nil
	}

	for _, id := range ids {
		settlement, err := s.Settle(ctx, id, StatusFailed)
		if err != nil {
			return report, err
		}
		// a callback may have won the race; only count what this sweep changed
		if settlement.Applied {
			report.Failed = append(report.Failed, id)
		}
	}
	return report, nil
}

// RunSweeper calls SweepPending every interval until ctx is done
func (s *Store) RunSweeper(ctx context.Context, interval, olderThan time.Duration, policy SweepPolicy) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := s.SweepPending(ctx, olderThan, policy)
			if err != nil {
				logger.Error("Pending order sweep failed", err)
				continue
			}
			if report.Stale > 0 {
				logger.Info("Pending order sweep finished", logger.LogContext{Fields: map[string]any{
					"stale":  report.Stale,
					"failed": len(report.Failed),
					"policy": string(policy),
				}})
			}
		}
	}
}
