package schedule

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/example/push-dispatcher/internal/apperr"
	"github.com/example/push-dispatcher/internal/gate"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) RunScheduled(ctx context.Context) (gate.Outcome, error) {
	args := m.Called(ctx)
	return args.Get(0).(gate.Outcome), args.Error(1)
}

func TestNewValidatesInput(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		tz      string
		wantErr bool
	}{
		{name: "monthly", spec: "0 9 25 * *", tz: "Asia/Tokyo"},
		{name: "descriptor", spec: "@daily", tz: ""},
		{name: "bad spec", spec: "every tuesday", tz: "UTC", wantErr: true},
		{name: "seconds field not accepted", spec: "0 0 9 25 * *", tz: "UTC", wantErr: true},
		{name: "bad timezone", spec: "@daily", tz: "Mars/Olympus", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(&mockRunner{}, tc.spec, tc.tz, zerolog.Nop())
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestFireLogsOutcome(t *testing.T) {
	tests := []struct {
		name    string
		outcome gate.Outcome
		err     error
		want    string
	}{
		{name: "sent", outcome: gate.OutcomeSent, want: "scheduled dispatch sent"},
		{name: "no tokens", outcome: gate.OutcomeNoRecipients, want: "found no push tokens"},
		{name: "failure", err: apperr.New(apperr.KindStoreFetch, "", errors.New("timeout")), want: "store_fetch"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			runner := new(mockRunner)
			runner.On("RunScheduled", mock.Anything).Return(tc.outcome, tc.err).Once()

			s, err := New(runner, "@daily", "UTC", zerolog.New(&buf))
			require.NoError(t, err)
			s.Fire(context.Background())

			runner.AssertExpectations(t)
			assert.Contains(t, buf.String(), tc.want)
		})
	}
}

func TestStartAndStop(t *testing.T) {
	s, err := New(&mockRunner{}, "@yearly", "UTC", zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.Len(t, s.c.Entries(), 1)
	s.Stop()
}
