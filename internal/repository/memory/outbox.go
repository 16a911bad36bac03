package memory

import (
	"context"
	"time"

	"checkout/internal/domain"
)

type OutboxRepository struct {
	store *Store
}

func (r *OutboxRepository) CreateMessageTx(_ context.Context, q domain.Querier, msg *domain.OutboxMessage) error {
	return r.store.with(q, func(st *state) error {
		st.outbox = append(st.outbox, *msg)
		return nil
	})
}

func (r *OutboxRepository) GetPendingMessages(_ context.Context, q domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	var out []domain.OutboxMessage
	err := r.store.with(q, func(st *state) error {
		for _, msg := range st.outbox {
			if msg.Status != domain.OutboxStatusPending {
				continue
			}
			out = append(out, msg)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *OutboxRepository) MarkMessagesAsSentTx(_ context.Context, q domain.Querier, ids []string) error {
	sent := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		sent[id] = struct{}{}
	}
	now := time.Now()
	return r.store.with(q, func(st *state) error {
		for i := range st.outbox {
			if _, ok := sent[st.outbox[i].ID]; ok {
				st.outbox[i].Status = domain.OutboxStatusSent
				st.outbox[i].SentAt = &now
			}
		}
		return nil
	})
}
