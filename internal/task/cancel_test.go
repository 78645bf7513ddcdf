package task

import (
	"testing"
	"time"
)

func TestCancelTokenOneShot(t *testing.T) {
	tok := NewCancelToken()

	if tok.Cancelled() {
		t.Fatal("new token reports cancelled")
	}

	tok.Cancel("first")
	tok.Cancel("second")

	if !tok.Cancelled() {
		t.Error("Cancelled() = false after Cancel")
	}
	if tok.Reason() != "first" {
		t.Errorf("Reason() = %q, want first reason to win", tok.Reason())
	}

	select {
	case <-tok.Done():
	case <-time.After(time.Second):
		t.Error("Done() not closed after Cancel")
	}
}

func TestCancelTokenCallbacks(t *testing.T) {
	tok := NewCancelToken()

	var got []string
	tok.OnCancel(func(reason string) { got = append(got, "a:"+reason) })
	tok.OnCancel(func(reason string) { got = append(got, "b:"+reason) })

	tok.Cancel("shutdown")

	if len(got) != 2 || got[0] != "a:shutdown" || got[1] != "b:shutdown" {
		t.Errorf("callbacks fired = %v", got)
	}
}

func TestCancelTokenLateSubscriber(t *testing.T) {
	tok := NewCancelToken()
	tok.Cancel("done")

	fired := false
	tok.OnCancel(func(reason string) {
		fired = true
		if reason != "done" {
			t.Errorf("late callback reason = %q, want done", reason)
		}
	})

	if !fired {
		t.Error("callback registered after Cancel did not fire immediately")
	}
}

func TestContextCopiesConfig(t *testing.T) {
	cfg := Config{
		Timeout: time.Minute,
		Env:     map[string]string{"MODE": "fast"},
	}

	tc := NewContext(nil, cfg, nil, nil)
	tc.Config.Env["MODE"] = "slow"

	if cfg.Env["MODE"] != "fast" {
		t.Error("mutating the context config leaked into the source config")
	}
	if tc.Cancel == nil {
		t.Error("NewContext did not default the cancel token")
	}
	if tc.Cancel.Cancelled() {
		t.Error("fresh context token already cancelled")
	}
}
