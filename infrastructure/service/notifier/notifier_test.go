package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, alert outbound.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	alert := outbound.Alert{Type: outbound.AlertRollbackExecuted, DomainID: "d1"}

	ok := new(MockNotifier)
	ok.On("Notify", mock.Anything, alert).Return(nil).Once()
	broken := new(MockNotifier)
	broken.On("Notify", mock.Anything, alert).Return(errors.New("redis down")).Once()
	last := new(MockNotifier)
	last.On("Notify", mock.Anything, alert).Return(nil).Once()

	err := Fanout{ok, broken, last}.Notify(context.Background(), alert)
	assert.EqualError(t, err, "redis down")

	ok.AssertExpectations(t)
	broken.AssertExpectations(t)
	last.AssertExpectations(t)
}

func TestLogNotifier_NeverFails(t *testing.T) {
	n := NewLogNotifier(logger.NewNopLogger())
	err := n.Notify(context.Background(), outbound.Alert{
		Type: outbound.AlertHallucinationSevere,
		Data: map[string]interface{}{"ticket_id": "t1"},
	})
	assert.NoError(t, err)
}
