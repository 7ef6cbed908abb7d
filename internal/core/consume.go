package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// EmptyAction decides what happens to a batch consumed down to zero.
type EmptyAction int

const (
	// EmptyUndecided makes Consume stop with ErrEmptyActionRequired.
	EmptyUndecided EmptyAction = iota
	// EmptyDelete removes the emptied batch.
	EmptyDelete
	// EmptyRetain keeps the batch with quantity zero.
	EmptyRetain
)

// ParseEmptyAction maps "delete", "retain"/"keep" and "" to an EmptyAction.
func ParseEmptyAction(s string) (EmptyAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ask":
		return EmptyUndecided, nil
	case "delete":
		return EmptyDelete, nil
	case "retain", "keep":
		return EmptyRetain, nil
	default:
		return EmptyUndecided, invalid("onEmpty", "unknown action %q", s)
	}
}

// ConsumeRequest asks to take Amount out of a batch.
type ConsumeRequest struct {
	BatchID string
	Amount  decimal.Decimal
	OnEmpty EmptyAction
}

// ConsumeOutcome reports what Consume did to the batch.
type ConsumeOutcome string

const (
	Decremented   ConsumeOutcome = "decremented"
	Deleted       ConsumeOutcome = "deleted"
	RetainedEmpty ConsumeOutcome = "retained_empty"
)

// ConsumeResult describes a completed consumption. Batch holds the state after
// the change; for Deleted it is the batch as it was with quantity zero.
type ConsumeResult struct {
	Outcome   ConsumeOutcome
	Batch     Batch
	Remaining decimal.Decimal
}

// ParseAmount parses user supplied consumption text. Only positive finite
// decimal numbers are accepted.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, invalid("amount", "required")
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, invalid("amount", "not a number: %q", s)
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, invalid("amount", "must be greater than zero")
	}
	return amount, nil
}

// Consume subtracts req.Amount from the batch. When the result is exactly
// zero the caller must say whether to delete or retain the batch; otherwise
// ErrEmptyActionRequired is returned and nothing is written.
func (s *Service) Consume(ctx context.Context, req ConsumeRequest) (ConsumeResult, error) {
	var result ConsumeResult
	err := s.mutate(ctx, opConsumeBatch, req.BatchID, func(ctx context.Context) (string, error) {
		if !req.Amount.IsPositive() {
			return "", invalid("amount", "must be greater than zero")
		}
		batches, err := ReadCollection[Batch](ctx, s.records, s.keys.Batches)
		if err != nil {
			return "", err
		}
		idx := indexOf(batches, req.BatchID, batchID)
		if idx < 0 {
			return "", ErrNotFound{Entity: EntityBatch, ID: req.BatchID}
		}
		batch := batches[idx]
		current := decimal.NewFromFloat(batch.UsableQuantity())
		if req.Amount.GreaterThan(current) {
			return "", invalid("amount", "%s exceeds available quantity %s %s", req.Amount, current, batch.Unit)
		}
		remaining := current.Sub(req.Amount)
		batch.Quantity = remaining.InexactFloat64()

		switch {
		case remaining.IsPositive():
			batches[idx] = batch
			if err := WriteCollection(ctx, s.records, s.keys.Batches, batches); err != nil {
				return "", err
			}
			result = ConsumeResult{Outcome: Decremented, Batch: batch, Remaining: remaining}
		case req.OnEmpty == EmptyDelete:
			kept, _ := without(batches, req.BatchID, batchID)
			if err := WriteCollection(ctx, s.records, s.keys.Batches, kept); err != nil {
				return "", err
			}
			result = ConsumeResult{Outcome: Deleted, Batch: batch, Remaining: remaining}
		case req.OnEmpty == EmptyRetain:
			batches[idx] = batch
			if err := WriteCollection(ctx, s.records, s.keys.Batches, batches); err != nil {
				return "", err
			}
			result = ConsumeResult{Outcome: RetainedEmpty, Batch: batch, Remaining: remaining}
		default:
			return "", ErrEmptyActionRequired
		}
		s.logger.Info("batch consumed", "batch", batch.ID, "amount", req.Amount.String(),
			"remaining", remaining.String(), "outcome", string(result.Outcome))
		return fmt.Sprintf("consumed %s %s from batch %s (%s)", req.Amount, batch.Unit, batch.LotNumber, result.Outcome), nil
	})
	if err != nil {
		return ConsumeResult{}, err
	}
	return result, nil
}
