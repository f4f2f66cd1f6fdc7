package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/finance-analytics/internal/domain"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"report_u1_March_2024_ab12cd34.pdf", false},
		{"", true},
		{"..", true},
		{"../etc/passwd", true},
		{"nested/report.pdf", true},
		{`..\report.pdf`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantPrefix string
		wantErr    bool
	}{
		{uri: "gs://reports-bucket/monthly/pdf/", wantBucket: "reports-bucket", wantPrefix: "monthly/pdf"},
		{uri: "gs://reports-bucket", wantBucket: "reports-bucket"},
		{uri: "gs://", wantErr: true},
		{uri: "s3://bucket/x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, prefix, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI error = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.wantBucket || prefix != tt.wantPrefix {
				t.Errorf("got (%q, %q), want (%q, %q)", bucket, prefix, tt.wantBucket, tt.wantPrefix)
			}
		})
	}
}

func TestDirStore(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "reports")
	s, err := NewDirStore(root)
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}

	if _, err := s.Get(ctx, "missing.pdf"); !domain.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}

	if err := s.Put(ctx, "r.pdf", []byte("%PDF-1.3")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	data, err := s.Get(ctx, "r.pdf")
	if err != nil || string(data) != "%PDF-1.3" {
		t.Fatalf("Get = %q, %v", data, err)
	}

	entries, _ := os.ReadDir(root)
	if len(entries) != 1 {
		t.Errorf("expected only the artifact in the directory, got %d entries", len(entries))
	}

	if err := s.Delete(ctx, "r.pdf"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "r.pdf"); err != nil {
		t.Errorf("second Delete should be a no-op, got %v", err)
	}
	if err := s.Put(ctx, "../escape.pdf", nil); err == nil {
		t.Error("expected Put to reject a path")
	}
}
