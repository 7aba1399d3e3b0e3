package webapp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildAPIURLRelativeOnServer(t *testing.T) {
	if got := BuildAPIURL("/api/jobs"); got != "/api/jobs" {
		t.Errorf("BuildAPIURL() = %q, want relative path", got)
	}
	if got := UploadField(); got != DefaultUploadField {
		t.Errorf("UploadField() = %q, want %q", got, DefaultUploadField)
	}
}

func TestConversionArchiveURL(t *testing.T) {
	tests := []struct {
		name, id, archive, want string
	}{
		{"no name", "01J0", "", "/api/conversions/01J0/archive"},
		{"plain name", "01J0", "report", "/api/conversions/01J0/archive?name=report"},
		{"escaped name", "01J0", "q1 report&more", "/api/conversions/01J0/archive?name=q1+report%26more"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConversionArchiveURL(tt.id, tt.archive); got != tt.want {
				t.Errorf("ConversionArchiveURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArchiveBaseName(t *testing.T) {
	tests := map[string]string{
		"report.pdf":    "report",
		"REPORT.PDF":    "REPORT",
		"scan.2024.pdf": "scan.2024",
		"notes.txt":     "notes.txt",
		".pdf":          ".pdf",
		"no-extension":  "no-extension",
	}
	for name, want := range tests {
		if got := (Conversion{Name: name}).ArchiveBaseName(); got != want {
			t.Errorf("ArchiveBaseName(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestNewArchiveRequest(t *testing.T) {
	conversions := []Conversion{
		{Name: "a.pdf", Format: "png", Images: []string{"/uploads/1/0.png", "/uploads/1/1.png"}},
		{Name: "b.pdf", Format: "jpeg", Images: []string{"/uploads/2/0.jpg"}},
		{Name: "failed.pdf", Status: "failed"},
		{Name: "c.pdf", Images: []string{"/uploads/3/0.png"}},
	}

	got := NewArchiveRequest("images", conversions)
	want := ArchiveRequest{
		ArchiveName: "images",
		Entries: []ArchiveEntry{
			{Source: "/uploads/1/0.png", Name: "a-1", Format: "png"},
			{Source: "/uploads/1/1.png", Name: "a-2", Format: "png"},
			{Source: "/uploads/2/0.jpg", Name: "b-1", Format: "jpeg"},
			{Source: "/uploads/3/0.png", Name: "c-1", Format: "png"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NewArchiveRequest() mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error field", 422, `{"error":"document load failed"}`, "document load failed"},
		{"no error field", 500, `{"message":"x"}`, "request failed with status 500"},
		{"not json", 502, `Bad Gateway`, "request failed with status 502"},
		{"null body", 404, `null`, "request failed with status 404"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := apiError(tt.status, tt.body); got != tt.want {
				t.Errorf("apiError() = %q, want %q", got, tt.want)
			}
		})
	}
}
