package mq

import (
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestRequeueOnce(t *testing.T) {
	failed := errors.New("smtp down")

	assert.True(t, RequeueOnce(amqp.Delivery{}, failed))
	assert.False(t, RequeueOnce(amqp.Delivery{Redelivered: true}, failed))
}
