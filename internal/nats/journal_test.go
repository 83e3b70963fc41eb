package nats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFrameSubject(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b", "chat.frames.0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b"},
		{"msg.1", "chat.frames.msg_1"},
		{"a*b>c d", "chat.frames.a_b_c_d"},
	}
	for _, tt := range tests {
		if got := FrameSubject(tt.id); got != tt.want {
			t.Errorf("FrameSubject(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestLoadTLSConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(garbage, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		ca      string
		cert    string
		key     string
		wantErr string
	}{
		{"missing CA", filepath.Join(dir, "absent.pem"), "", "", "read NATS CA file"},
		{"bad CA", garbage, "", "", "parse NATS CA certificate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadTLSConfig(tt.ca, tt.cert, tt.key)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
