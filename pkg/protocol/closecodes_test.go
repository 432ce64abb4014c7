package protocol

import "testing"

func TestCloseCodeClassification(t *testing.T) {
	tests := []struct {
		code      CloseCode
		fatal     bool
		resumable bool
	}{
		{CloseUnknownError, false, true},
		{CloseUnknownOpcode, false, true},
		{CloseDecodeError, false, true},
		{CloseNotAuthenticated, false, true},
		{CloseAuthenticationFailed, true, false},
		{CloseAlreadyAuthenticated, false, false},
		{CloseInvalidSequence, false, false},
		{CloseRateLimited, false, true},
		{CloseSessionTimeout, false, false},
		{CloseInvalidShard, true, false},
		{CloseShardingRequired, true, false},
		{CloseInvalidAPIVersion, true, false},
		{CloseInvalidCapabilities, true, false},
		{CloseDisallowedCapability, true, false},
		// Network-level closes are never fatal.
		{CloseCode(1000), false, true},
		{CloseCode(1006), false, true},
	}

	for _, tc := range tests {
		t.Run(tc.code.String(), func(t *testing.T) {
			if got := tc.code.Fatal(); got != tc.fatal {
				t.Errorf("CloseCode(%d).Fatal() = %v, want %v", int(tc.code), got, tc.fatal)
			}
			if got := tc.code.Resumable(); got != tc.resumable {
				t.Errorf("CloseCode(%d).Resumable() = %v, want %v", int(tc.code), got, tc.resumable)
			}
		})
	}
}

func TestCloseCodeString(t *testing.T) {
	if got := CloseAuthenticationFailed.String(); got != "AuthenticationFailed" {
		t.Errorf("String() = %q", got)
	}
	if got := CloseCode(1006).String(); got != "Unknown" {
		t.Errorf("String() = %q, want Unknown for non-platform code", got)
	}
}
