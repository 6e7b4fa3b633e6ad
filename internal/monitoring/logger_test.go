package monitoring

import "testing"

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("assessed %d segments", 10)
	if !called {
		t.Error("custom logger was not called")
	}

	// nil installs a no-op that must not panic and must not call anything
	called = false
	SetLogger(nil)
	Logf("voting complete")
	if called {
		t.Error("no-op logger should not have triggered the old callback")
	}
}

func TestLogfDefault(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
}
