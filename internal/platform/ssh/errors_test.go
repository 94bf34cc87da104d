package ssh

import (
	"errors"
	"strings"
	"testing"
)

func TestRedact(t *testing.T) {
	orig := &CommandError{
		Host:     "w0",
		Command:  "kubeadm join 10.0.0.10:6443 --token abcdef.0123456789abcdef",
		Output:   "token abcdef.0123456789abcdef rejected",
		ExitCode: 1,
		Err:      errors.New("exit status 1"),
	}

	err := Redact(orig, "abcdef.0123456789abcdef", "abcdef.****")
	if strings.Contains(err.Error(), "0123456789abcdef") {
		t.Fatalf("secret not masked: %v", err)
	}
	if !strings.Contains(err.Error(), "--token abcdef.****") {
		t.Errorf("masked command missing: %v", err)
	}
	if code, ok := ExitCode(err); !ok || code != 1 {
		t.Errorf("exit code lost: %d %v", code, ok)
	}
	if !strings.Contains(orig.Command, "0123456789abcdef") {
		t.Error("original error was modified")
	}
}

func TestRedact_PlainError(t *testing.T) {
	err := Redact(errors.New("dial failed for s3cr3t"), "s3cr3t", "****")
	if err.Error() != "dial failed for ****" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestRedact_Untouched(t *testing.T) {
	orig := errors.New("connection refused")
	if err := Redact(orig, "s3cr3t", "****"); err != orig {
		t.Errorf("error without secret should be returned as is, got %v", err)
	}
	if err := Redact(nil, "s3cr3t", "****"); err != nil {
		t.Errorf("nil should stay nil, got %v", err)
	}
}
