package transducer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestIsTransient_ClassifiedErrors(t *testing.T) {
	if !IsTransient(Transient("svc", errors.New("reset"))) {
		t.Error("TransientError should be transient")
	}
	if IsTransient(Permanent("svc", errors.New("bad key"))) {
		t.Error("PermanentError should not be transient")
	}
}

func TestIsTransient_WrappedClassifiedErrors(t *testing.T) {
	wrapped := fmt.Errorf("node 2: %w", Permanent("svc", errors.New("bad key")))
	if IsTransient(wrapped) {
		t.Error("wrapped PermanentError should not be transient")
	}
	wrapped = fmt.Errorf("node 2: %w", Transient("svc", errors.New("reset")))
	if !IsTransient(wrapped) {
		t.Error("wrapped TransientError should be transient")
	}
}

func TestIsTransient_DeadlineExceeded(t *testing.T) {
	if !IsTransient(context.DeadlineExceeded) {
		t.Error("deadline expiry should be transient")
	}
}

func TestIsTransient_NetError(t *testing.T) {
	var err error = &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	if !IsTransient(err) {
		t.Error("net.Error should be transient")
	}
}

func TestIsTransient_PlainError(t *testing.T) {
	if IsTransient(errors.New("something else")) {
		t.Error("unclassified errors should not be transient")
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, tc := range cases {
		err := classifyStatus("svc", tc.status)
		if got := IsTransient(err); got != tc.transient {
			t.Errorf("status %d: transient = %v, want %v", tc.status, got, tc.transient)
		}
	}
}

func TestErrorMessagesNameService(t *testing.T) {
	te := Transient("ollama", errors.New("timeout"))
	if got := te.Error(); got != "ollama: transient failure: timeout" {
		t.Errorf("unexpected message: %q", got)
	}
	pe := Permanent("google", errors.New("bad credentials"))
	if got := pe.Error(); got != "google: permanent failure: bad credentials" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestUnwrap(t *testing.T) {
	base := errors.New("root cause")
	if !errors.Is(Transient("svc", base), base) {
		t.Error("TransientError should unwrap to its cause")
	}
	if !errors.Is(Permanent("svc", base), base) {
		t.Error("PermanentError should unwrap to its cause")
	}
}
