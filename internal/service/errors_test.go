package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"driftwood/internal/gateway"
)

func TestClassify(t *testing.T) {
	live := context.Background()

	appErr := classify(live, "delete post", &gateway.ApplicationError{Command: gateway.CmdDeletePost, Status: 404, Message: "not found"})
	assert.ErrorIs(t, appErr, ErrApplication)
	var opErr *Error
	assert.ErrorAs(t, appErr, &opErr)
	assert.Equal(t, 404, opErr.Status)

	transport := classify(live, "load sites", &gateway.TransportError{Command: gateway.CmdListSites, Err: errors.New("eof")})
	assert.ErrorIs(t, transport, ErrTransport)
	assert.NotErrorIs(t, transport, ErrApplication)

	ctx, cancel := context.WithCancel(live)
	cancel()
	canceled := classify(ctx, "load sites", &gateway.TransportError{Command: gateway.CmdListSites, Err: context.Canceled})
	assert.ErrorIs(t, canceled, context.Canceled)
	assert.NotErrorIs(t, canceled, ErrTransport)
}

func TestClassify_TransportDeadlineWithLiveContext(t *testing.T) {
	err := classify(context.Background(), "refresh sites",
		&gateway.TransportError{Command: gateway.CmdRefreshSites, Err: context.DeadlineExceeded})

	assert.ErrorIs(t, err, ErrTransport)
	notice, shown := Notify(err)
	assert.True(t, shown)
	assert.Equal(t, genericFailure, notice.Message)
}

func TestNotify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		shown bool
		want  Notice
	}{
		{name: "success", err: nil},
		{name: "aborted", err: fmt.Errorf("load sites: %w", context.Canceled)},
		{name: "state", err: &Error{Kind: KindState, Op: "select site", Message: "missing"}},
		{
			name:  "application",
			err:   &Error{Kind: KindApplication, Op: "delete post", Status: 404, Message: "not found"},
			shown: true,
			want:  Notice{Level: LevelError, Title: "Operation failed", Message: "not found"},
		},
		{
			name:  "validation",
			err:   &Error{Kind: KindValidation, Op: "create site", Message: "title is required"},
			shown: true,
			want:  Notice{Level: LevelError, Title: "Invalid input", Message: "title is required"},
		},
		{
			name:  "transport",
			err:   &Error{Kind: KindTransport, Op: "load sites", Message: genericFailure, Err: errors.New("dial tcp")},
			shown: true,
			want:  Notice{Level: LevelError, Title: "Operation failed", Message: genericFailure},
		},
		{
			name:  "transport deadline",
			err:   &Error{Kind: KindTransport, Op: "refresh sites", Message: genericFailure, Err: context.DeadlineExceeded},
			shown: true,
			want:  Notice{Level: LevelError, Title: "Operation failed", Message: genericFailure},
		},
		{
			name:  "unclassified",
			err:   errors.New("boom"),
			shown: true,
			want:  Notice{Level: LevelError, Title: "Operation failed", Message: genericFailure},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, shown := Notify(tt.err)
			assert.Equal(t, tt.shown, shown)
			assert.Equal(t, tt.want, got)
		})
	}
}
