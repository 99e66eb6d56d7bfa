package streams

import (
	"testing"
)

func TestParseSpec(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Spec
		wantErr bool
	}{
		{
			name: "plain kind",
			raw:  "button_press",
			want: Spec{Type: TypeButtonPress},
		},
		{
			name: "transcription with region",
			raw:  "transcription:en-US",
			want: Spec{Type: TypeTranscription, Param: "en-US"},
		},
		{
			name: "transcription bare language",
			raw:  "transcription:es",
			want: Spec{Type: TypeTranscription, Param: "es"},
		},
		{
			name:    "transcription missing language",
			raw:     "transcription",
			wantErr: true,
		},
		{
			name:    "transcription garbage language",
			raw:     "transcription:english!!",
			wantErr: true,
		},
		{
			name: "translation pair",
			raw:  "translation:es-ES-to-en-US",
			want: Spec{Type: TypeTranslation, Param: "es-ES-to-en-US"},
		},
		{
			name:    "translation missing target",
			raw:     "translation:es-ES",
			wantErr: true,
		},
		{
			name: "location stream with tier",
			raw:  "location_stream:high",
			want: Spec{Type: TypeLocationStream, Param: "high"},
		},
		{
			name: "location stream bare",
			raw:  "location_stream",
			want: Spec{Type: TypeLocationStream},
		},
		{
			name:    "location stream unknown tier",
			raw:     "location_stream:superPrecise",
			wantErr: true,
		},
		{
			name:    "unknown kind",
			raw:     "telepathy",
			wantErr: true,
		},
		{
			name:    "param on plain kind",
			raw:     "button_press:left",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSpec(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSpec(%q) = %v, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSpec(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseSpec(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSpecRoundTrip(t *testing.T) {
	for _, raw := range []string{"vad", "transcription:en-US", "translation:fr-FR-to-en-US", "location_stream:kilometer"} {
		spec, err := ParseSpec(raw)
		if err != nil {
			t.Fatalf("ParseSpec(%q): %v", raw, err)
		}
		if spec.String() != raw {
			t.Errorf("round trip %q -> %q", raw, spec.String())
		}
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name  string
		sub   string
		event string
		want  bool
	}{
		{"exact plain", "button_press", "button_press", true},
		{"different plain", "button_press", "head_position", false},
		{"same language", "transcription:en-US", "transcription:en-US", true},
		{"different language", "transcription:en-US", "transcription:es-ES", false},
		{"all covers anything", "all", "transcription:en-US", true},
		{"wildcard covers anything", "*", "vad", true},
		{"bare location covers tiered", "location_stream", "location_stream:high", true},
		{"tiered location exact", "location_stream:high", "location_stream:high", true},
		{"tiered location mismatch", "location_stream:high", "location_stream:reduced", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := ParseSpec(tt.sub)
			if err != nil {
				t.Fatalf("sub: %v", err)
			}
			ev, err := ParseSpec(tt.event)
			if err != nil {
				t.Fatalf("event: %v", err)
			}
			if got := sub.Matches(ev); got != tt.want {
				t.Errorf("%q.Matches(%q) = %v, want %v", tt.sub, tt.event, got, tt.want)
			}
		})
	}
}

func TestParseSpecsRejectsWholesale(t *testing.T) {
	_, err := ParseSpecs([]string{"button_press", "transcription:notalanguage"})
	if err == nil {
		t.Fatal("expected error for malformed entry")
	}
}
