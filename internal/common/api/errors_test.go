package api

import (
	"errors"
	"fmt"
	"testing"

	"go-glsync/internal/common/models"
	"go-glsync/internal/glsync"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("app_id is required: %w", models.ErrValidation), 400},
		{fmt.Errorf("mapping abc: %w", models.ErrNotFound), 404},
		{fmt.Errorf("glsync: %w", glsync.ErrTransport), 502},
		{errors.New("boom"), 500},
	}
	for _, tt := range tests {
		if got := ErrorStatus(tt.err); got != tt.want {
			t.Errorf("ErrorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
