package service

import (
	"context"
	"errors"
	"fmt"

	"economy/events"
	"economy/models"

	log "github.com/sirupsen/logrus"
)

type settlementCoordinator struct {
	uowFactory UnitOfWorkFactory
	ledger     LedgerService
	sessions   *SessionStore
	calculator *PayoutCalculator
}

// NewSettlementCoordinator creates the service that turns resolved sessions into ledger writes
func NewSettlementCoordinator(uowFactory UnitOfWorkFactory, ledger LedgerService, sessions *SessionStore, calculator *PayoutCalculator) SettlementService {
	return &settlementCoordinator{
		uowFactory: uowFactory,
		ledger:     ledger,
		sessions:   sessions,
		calculator: calculator,
	}
}

func (c *settlementCoordinator) SpinAndSettle(ctx context.Context, sessionKey string) (*models.SettlementRecord, error) {
	return c.Settle(ctx, sessionKey, c.calculator.SpinOutcome())
}

func (c *settlementCoordinator) GetSettlement(ctx context.Context, sessionKey string) (*models.SettlementRecord, error) {
	record, err := c.uowFactory.Reader().SettlementRepository().Get(ctx, sessionKey)
	if err != nil {
		return nil, logStoreError("get settlement", log.Fields{"sessionKey": sessionKey}, err)
	}
	return record, nil
}

func (c *settlementCoordinator) Settle(ctx context.Context, sessionKey string, outcome int) (*models.SettlementRecord, error) {
	if !ValidOutcome(outcome) {
		return nil, fmt.Errorf("%w: outcome %d is not on the wheel", ErrInvalidBet, outcome)
	}

	session, err := c.sessions.BeginResolve(sessionKey)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrAlreadySettled) {
			return nil, err
		}
		// The session may have been settled and discarded already
		existing, getErr := c.uowFactory.Reader().SettlementRepository().Get(ctx, sessionKey)
		if getErr != nil {
			return nil, logStoreError("get settlement", log.Fields{"sessionKey": sessionKey}, getErr)
		}
		if existing != nil {
			return existing, nil
		}
		return nil, err
	}

	payout := c.calculator.Settle(session, outcome)

	record, claimed, err := c.apply(ctx, session, payout)
	if err != nil {
		// Session stays resolving so the sweeper can retry
		return nil, logStoreError("settle session", log.Fields{
			"sessionKey": sessionKey,
			"outcome":    outcome,
		}, err)
	}

	if !claimed {
		log.WithField("sessionKey", sessionKey).Info("Session already settled, returning stored result")
	}

	c.sessions.MarkSettled(sessionKey, record.Outcome)
	c.sessions.Discard(ctx, sessionKey)

	log.WithFields(log.Fields{
		"sessionKey":  sessionKey,
		"outcome":     record.Outcome,
		"winners":     record.Winners,
		"losers":      record.Losers,
		"totalPayout": record.TotalPayout,
	}).Info("Settled wagering session")
	return record, nil
}

// apply claims the session key and writes every participant's result in one
// unit of work. claimed is false when another caller settled the key first, in
// which case the stored record is returned and nothing is written.
func (c *settlementCoordinator) apply(ctx context.Context, session *models.Session, payout *models.PayoutResult) (*models.SettlementRecord, bool, error) {
	uow := c.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	record := &models.SettlementRecord{
		SessionKey:  session.Key,
		GameType:    session.GameType,
		Outcome:     payout.Outcome,
		TotalPayout: payout.TotalPayout,
		Winners:     len(payout.Winners),
		Losers:      len(payout.Losers),
	}

	claimed, err := uow.SettlementRepository().Claim(ctx, record)
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim session: %w", err)
	}
	if !claimed {
		existing, err := uow.SettlementRepository().Get(ctx, session.Key)
		if err != nil {
			return nil, false, fmt.Errorf("failed to get settlement: %w", err)
		}
		if existing == nil {
			return nil, false, fmt.Errorf("settlement for %s claimed but not found", session.Key)
		}
		return existing, false, nil
	}

	byUser := make(map[string]models.ParticipantResult, len(payout.Winners)+len(payout.Losers))
	for _, p := range payout.Winners {
		byUser[p.UserID] = p
	}
	for _, p := range payout.Losers {
		byUser[p.UserID] = p
	}

	tx := c.ledger.Tx(uow)
	metadata := func() map[string]any {
		return map[string]any{"session_key": session.Key, "outcome": payout.Outcome}
	}

	// Accounts are locked in user ID order
	results := make([]models.ParticipantResult, 0, len(byUser))
	for _, userID := range session.ParticipantIDs() {
		p := byUser[userID]

		if p.IsWinner() {
			award, err := tx.Award(ctx, userID, p.Net, session.GameType+" win", metadata())
			if err != nil {
				return nil, false, fmt.Errorf("failed to award %s: %w", userID, err)
			}
			p.Credited = award.CreditedAmount
		} else {
			if p.Net < 0 {
				debited, _, err := tx.Forfeit(ctx, userID, -p.Net, session.GameType+" loss", metadata())
				if err != nil {
					return nil, false, fmt.Errorf("failed to debit %s: %w", userID, err)
				}
				p.Debited = debited
			}
			loss, err := tx.RecordLoss(ctx, userID)
			if err != nil {
				return nil, false, fmt.Errorf("failed to record loss for %s: %w", userID, err)
			}
			p.ShieldUsed = loss.ShieldUsed
		}
		results = append(results, p)
	}

	record.Results = results
	if err := uow.SettlementRepository().SaveResults(ctx, record); err != nil {
		return nil, false, fmt.Errorf("failed to save settlement results: %w", err)
	}

	uow.EventBus().Publish(events.SessionSettledEvent{
		SessionKey:  record.SessionKey,
		GameType:    record.GameType,
		Outcome:     record.Outcome,
		Winners:     record.Winners,
		Losers:      record.Losers,
		TotalPayout: record.TotalPayout,
	})

	if err := uow.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit settlement: %w", err)
	}
	return record, true, nil
}
