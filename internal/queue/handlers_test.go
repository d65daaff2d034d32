package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServeMux_RoutesTrainingRuns(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		taskType string
		result   error
		wantRun  bool
		wantErr  error
	}{
		{name: "training run", taskType: TypeTrainingRun, wantRun: true},
		{name: "training failure passes through", taskType: TypeTrainingRun, result: boom, wantRun: true, wantErr: boom},
		{name: "unknown type", taskType: "email:send"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got *asynq.Task
			mux := NewServeMux(asynq.HandlerFunc(func(_ context.Context, task *asynq.Task) error {
				got = task
				return tc.result
			}))

			err := mux.ProcessTask(context.Background(), asynq.NewTask(tc.taskType, []byte(`{}`)))

			if !tc.wantRun {
				assert.Nil(t, got)
				assert.Error(t, err)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, TypeTrainingRun, got.Type())
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
