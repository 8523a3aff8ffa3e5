package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    *time.Time
		wantErr bool
	}{
		{name: "date only", body: `{"dueDate":"2026-02-19"}`, want: ptrTime(time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC))},
		{name: "rfc3339 with offset", body: `{"dueDate":"2026-02-19T12:00:00+02:00"}`, want: ptrTime(time.Date(2026, 2, 19, 10, 0, 0, 0, time.UTC))},
		{name: "no zone", body: `{"dueDate":"2026-02-19T08:30:00"}`, want: ptrTime(time.Date(2026, 2, 19, 8, 30, 0, 0, time.UTC))},
		{name: "null", body: `{"dueDate":null}`},
		{name: "blank", body: `{"dueDate":"  "}`},
		{name: "absent", body: `{}`},
		{name: "garbage", body: `{"dueDate":"tomorrow"}`, wantErr: true},
		{name: "not a string", body: `{"dueDate":42}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req UpdateTodoRequest
			err := json.Unmarshal([]byte(tt.body), &req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			got := req.DueDate.Ptr()
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %s", got)
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
