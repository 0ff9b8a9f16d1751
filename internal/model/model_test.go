package model

import "testing"

func TestIsValidGitHash(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"ab", false},
		{"abc", true},
		{"ABCDEF0123456789", true},
		{"not-hex!", false},
		{"g12", false},
		{string(make([]byte, 64)), false}, // all NUL bytes, not hex
	}
	for _, c := range cases {
		if got := IsValidGitHash(c.in); got != c.want {
			t.Errorf("IsValidGitHash(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	if IsValidGitHash(string(long)) {
		t.Errorf("IsValidGitHash accepted a 65-character hash")
	}

	max := make([]byte, 64)
	for i := range max {
		max[i] = 'f'
	}
	if !IsValidGitHash(string(max)) {
		t.Errorf("IsValidGitHash rejected a 64-character hash")
	}
}

func TestStatusString(t *testing.T) {
	if StatusRunning.String() != "Running" {
		t.Errorf("StatusRunning.String() = %q, want Running", StatusRunning.String())
	}
}

func TestStatusFromStringRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusRunning, StatusSuccess, StatusFailed, StatusTimeout, StatusSkipped} {
		got, err := StatusFromString(s.String())
		if err != nil {
			t.Fatalf("StatusFromString(%q) returned error: %v", s.String(), err)
		}
		if got != s {
			t.Errorf("StatusFromString(%q) = %v, want %v", s.String(), got, s)
		}
	}
	if _, err := StatusFromString("bogus"); err == nil {
		t.Errorf("StatusFromString(\"bogus\") expected error, got nil")
	}
}

func TestTargetFromString(t *testing.T) {
	for _, s := range []string{"qemu", "Qemu"} {
		got, err := TargetFromString(s)
		if err != nil || got != TargetQemu {
			t.Errorf("TargetFromString(%q) = (%v, %v), want (TargetQemu, nil)", s, got, err)
		}
	}
	for _, s := range []string{"real_hardware", "RealHardware"} {
		got, err := TargetFromString(s)
		if err != nil || got != TargetRealHardware {
			t.Errorf("TargetFromString(%q) = (%v, %v), want (TargetRealHardware, nil)", s, got, err)
		}
	}
	if _, err := TargetFromString("gpu"); err == nil {
		t.Errorf("TargetFromString(\"gpu\") expected error, got nil")
	}
}

func TestFinishRetCode(t *testing.T) {
	if code := FinishRetCode(StatusSuccess); code == nil || *code != 0 {
		t.Errorf("FinishRetCode(Success) = %v, want 0", code)
	}
	if code := FinishRetCode(StatusFailed); code == nil || *code != 1 {
		t.Errorf("FinishRetCode(Failed) = %v, want 1", code)
	}
	if code := FinishRetCode(StatusTimeout); code == nil || *code != 124 {
		t.Errorf("FinishRetCode(Timeout) = %v, want 124", code)
	}
	if code := FinishRetCode(StatusSkipped); code != nil {
		t.Errorf("FinishRetCode(Skipped) = %v, want nil", code)
	}
}

func TestRequiredTestsNeedsTarget(t *testing.T) {
	needs := []RequiredTests{RequiredAllTests, RequiredAllTestsExcept, RequiredOnlySpecifiedTests}
	for _, r := range needs {
		if !r.NeedsTarget() {
			t.Errorf("%v.NeedsTarget() = false, want true", r)
		}
	}
	noNeed := []RequiredTests{RequiredNoTestsOnlyCompile, RequiredNotEvenCompile}
	for _, r := range noNeed {
		if r.NeedsTarget() {
			t.Errorf("%v.NeedsTarget() = true, want false", r)
		}
	}
}

func TestMentionedTestNames(t *testing.T) {
	s := "foo  bar\tbaz\nqux"
	setup := TestSetup{MentionedTests: &s}
	got := setup.MentionedTestNames()
	want := []string{"foo", "bar", "baz", "qux"}
	if len(got) != len(want) {
		t.Fatalf("MentionedTestNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MentionedTestNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	empty := TestSetup{}
	if names := empty.MentionedTestNames(); names != nil {
		t.Errorf("MentionedTestNames() on nil field = %v, want nil", names)
	}
}
