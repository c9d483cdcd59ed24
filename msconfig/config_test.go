package msconfig

import "testing"

func TestValidateRejectsOutOfRangeMonitorFraction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequiredConfirmations = 10

	cfg.MonitorFraction = 0
	if err := cfg.validate(); err == nil {
		t.Fatal("expected error for monitorfraction = 0")
	}

	cfg.MonitorFraction = 1
	if err := cfg.validate(); err == nil {
		t.Fatal("expected error for monitorfraction = 1")
	}

	cfg.MonitorFraction = 0.8
	if err := cfg.validate(); err != nil {
		t.Fatalf("unexpected error for monitorfraction = 0.8: %v", err)
	}
}

func TestValidateRejectsZeroConfirmations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MonitorFraction = 0.8
	cfg.RequiredConfirmations = 0

	if err := cfg.validate(); err == nil {
		t.Fatal("expected error for requiredconfirmations = 0")
	}
}

func TestDefaultConfigSeedsAmbientDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DataDir != defaultDataDirname {
		t.Errorf("datadir = %q, want %q", cfg.DataDir, defaultDataDirname)
	}
	if cfg.DebugLevel != "info" {
		t.Errorf("debuglevel = %q, want info", cfg.DebugLevel)
	}
}
