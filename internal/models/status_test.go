package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name    string
		current string
		items   []string
		want    string
	}{
		{"all delivered", StatusShipped, []string{StatusDelivered, StatusDelivered}, StatusDelivered},
		{"all cancelled", StatusPending, []string{StatusCancelled, StatusCancelled}, StatusCancelled},
		{"delivered and shipped", StatusPending, []string{StatusDelivered, StatusShipped}, StatusShipped},
		{"one packed one pending", StatusPending, []string{StatusPacked, StatusPending}, StatusPacked},
		{"shipped beats packed", StatusPending, []string{StatusPacked, StatusShipped, StatusConfirmed}, StatusShipped},
		{"confirmed", StatusPending, []string{StatusConfirmed, StatusPending}, StatusConfirmed},
		{"cancelled and pending unchanged", StatusPending, []string{StatusCancelled, StatusPending}, StatusPending},
		{"no match keeps override", StatusPacked, []string{StatusPending, StatusPending}, StatusPacked},
		{"delivered and cancelled unchanged", StatusShipped, []string{StatusDelivered, StatusCancelled}, StatusShipped},
		{"no items", StatusConfirmed, nil, StatusConfirmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateStatus(tt.current, tt.items))
		})
	}
}

func TestAggregateStatusIdempotent(t *testing.T) {
	items := []string{StatusPacked, StatusPending, StatusDelivered}

	first := AggregateStatus(StatusPending, items)
	second := AggregateStatus(first, items)

	assert.Equal(t, first, second)
}

func TestIsValidStatus(t *testing.T) {
	for _, s := range []string{StatusPending, StatusConfirmed, StatusPacked, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.True(t, IsValidStatus(s), s)
	}
	assert.False(t, IsValidStatus("pending"))
	assert.False(t, IsValidStatus(""))
	assert.False(t, IsValidStatus("Returned"))
}
