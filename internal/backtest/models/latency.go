package models

import (
	"hftsim/internal/types"
)

// LatencyModel computes simulated order latencies.
//
// Entry returns the local->exchange delay for an order request. A
// negative value signals a technical rejection: the request never
// reaches the exchange, and the local side sees the rejection notice
// after the absolute value of the returned latency.
//
// Response returns the exchange->local delay for a response.
type LatencyModel interface {
	Entry(timestamp int64, order *types.Order) int64
	Response(timestamp int64, order *types.Order) int64
}

// ConstantLatency applies fixed entry and response delays.
type ConstantLatency struct {
	EntryLatency    int64
	ResponseLatency int64
}

// NewConstantLatency creates a fixed-delay model.
func NewConstantLatency(entry, response int64) ConstantLatency {
	return ConstantLatency{EntryLatency: entry, ResponseLatency: response}
}

func (l ConstantLatency) Entry(_ int64, _ *types.Order) int64 {
	return l.EntryLatency
}

func (l ConstantLatency) Response(_ int64, _ *types.Order) int64 {
	return l.ResponseLatency
}

// BackoffLatency wraps a base model and rejects every n-th entry for
// technical reasons, surfacing the rejection after rejectAfter.
type BackoffLatency struct {
	Base        LatencyModel
	RejectEvery int
	RejectAfter int64

	count int
}

// NewBackoffLatency creates a model that rejects every rejectEvery-th
// request.
func NewBackoffLatency(base LatencyModel, rejectEvery int, rejectAfter int64) *BackoffLatency {
	return &BackoffLatency{Base: base, RejectEvery: rejectEvery, RejectAfter: rejectAfter}
}

func (l *BackoffLatency) Entry(timestamp int64, order *types.Order) int64 {
	l.count++
	if l.RejectEvery > 0 && l.count%l.RejectEvery == 0 {
		return -l.RejectAfter
	}
	return l.Base.Entry(timestamp, order)
}

func (l *BackoffLatency) Response(timestamp int64, order *types.Order) int64 {
	return l.Base.Response(timestamp, order)
}
