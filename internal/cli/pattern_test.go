package cli

import (
	"reflect"
	"testing"
)

// TestMatchServices tests exact and glob service matching
func TestMatchServices(t *testing.T) {
	services := []string{"github", "gitlab", "aws", "GitHub Enterprise"}

	tests := []struct {
		name    string
		pattern string
		want    []string
		wantErr bool
	}{
		{"exact", "aws", []string{"aws"}, false},
		{"exact case-insensitive", "GITHUB", []string{"github"}, false},
		{"glob prefix", "git*", []string{"github", "gitlab", "GitHub Enterprise"}, false},
		{"glob single char", "gitla?", []string{"gitlab"}, false},
		{"no exact match", "bitbucket", nil, true},
		{"no glob match", "zzz*", nil, true},
		{"invalid pattern", "[", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchServices(tt.pattern, services)
			if tt.wantErr {
				if err == nil {
					t.Error("MatchServices() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("MatchServices() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MatchServices() = %v, want %v", got, tt.want)
			}
		})
	}
}
