package kafka

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"desci/pkg/platform/events"
)

func TestToRecord(t *testing.T) {
	e := events.Event{
		ID:        uuid.New(),
		Contract:  "payment",
		Topics:    []string{events.TopicPaymentMade, "report7"},
		Data:      []byte(`{"contributor":"C1","amount":"5000000"}`),
		Operation: "pay_contributors",
	}

	rec, err := toRecord(e)
	require.NoError(t, err)
	assert.Equal(t, "PAYMENT_MADE:report7", string(rec.Key))

	var back events.Event
	require.NoError(t, json.Unmarshal(rec.Value, &back))
	assert.Equal(t, e.ID, back.ID)
	assert.JSONEq(t, string(e.Data), string(back.Data))

	headers := map[string]string{}
	for _, h := range rec.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "payment", headers["contract"])
	assert.Equal(t, events.TopicPaymentMade, headers["event_tag"])
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "desci.events")
	assert.Error(t, err)

	_, err = New([]string{"localhost:9092"}, "")
	assert.Error(t, err)
}
