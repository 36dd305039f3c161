package llm

import (
	"errors"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantStatus    int
	}{
		{
			name:          "rate limited",
			err:           &openai.APIError{HTTPStatusCode: 429, Message: "Rate limit reached"},
			wantTransient: true,
			wantStatus:    429,
		},
		{
			name:          "service unavailable",
			err:           &openai.APIError{HTTPStatusCode: 503, Message: "overloaded"},
			wantTransient: true,
			wantStatus:    503,
		},
		{
			name:          "bad request",
			err:           &openai.APIError{HTTPStatusCode: 400, Message: "invalid model"},
			wantTransient: false,
			wantStatus:    400,
		},
		{
			name:          "unauthorized",
			err:           &openai.APIError{HTTPStatusCode: 401, Message: "bad key"},
			wantTransient: false,
			wantStatus:    401,
		},
		{
			name:          "request error with status",
			err:           &openai.RequestError{HTTPStatusCode: 503, Err: errors.New("bad gateway")},
			wantTransient: true,
			wantStatus:    503,
		},
		{
			name:          "statusless rate limit hint",
			err:           fmt.Errorf("upstream proxy said: rate limit exceeded"),
			wantTransient: true,
			wantStatus:    0,
		},
		{
			name:          "plain network error",
			err:           fmt.Errorf("connection refused"),
			wantTransient: false,
			wantStatus:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classify(tt.err)

			var ue *UpstreamError
			if !errors.As(classified, &ue) {
				t.Fatalf("classify() did not return *UpstreamError, got %T", classified)
			}
			if got := IsTransient(classified); got != tt.wantTransient {
				t.Errorf("IsTransient() = %v, want %v", got, tt.wantTransient)
			}
			if ue.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", ue.Status, tt.wantStatus)
			}
			if !errors.Is(classified, tt.err) && ue.Err == nil {
				t.Errorf("classified error lost its cause")
			}
		})
	}
}

func TestIsTransient_UnrelatedError(t *testing.T) {
	if IsTransient(errors.New("some other failure")) {
		t.Error("IsTransient() = true for an unclassified error")
	}
}
