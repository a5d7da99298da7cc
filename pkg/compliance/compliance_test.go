package compliance_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudesh1611/scanreport/pkg/compliance"
	"github.com/sudesh1611/scanreport/pkg/log"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    compliance.Record
		wantErr bool
	}{
		{
			name:  "happy path",
			input: `{"id": 41, "title": "(CIS_Docker_v1.2.0 - 4.1) Image should be created with a non-root user", "description": "It is a good practice to run the container as a non-root user", "severity": "high", "cause": "", "type": "image"}`,
			want: compliance.Record{
				Title:       "(CIS_Docker_v1.2.0 - 4.1) Image should be created with a non-root user",
				Description: "It is a good practice to run the container as a non-root user",
				Severity:    "high",
			},
		},
		{
			name:  "nulls",
			input: `{"title": "t", "cause": null}`,
			want:  compliance.Record{Title: "t"},
		},
		{
			name:    "array",
			input:   `[{"title": "t"}]`,
			wantErr: true,
		},
		{
			name:    "malformed",
			input:   `{"title": `,
			wantErr: true,
		},
		{
			name:    "wrong field type",
			input:   `{"title": 5}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compliance.Parse([]byte(tt.input))
			if tt.wantErr {
				require.ErrorIs(t, err, compliance.ErrInvalidRecord)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSet(t *testing.T) {
	s := compliance.NewSet(compliance.WithLogger(log.NewFileLogger(filepath.Join(t.TempDir(), "test.log"), false)))
	raw := []byte(`{"title": "b", "severity": "high", "cause": "c", "description": "d"}`)
	require.NoError(t, s.Add(raw))
	require.NoError(t, s.Add(raw))
	require.NoError(t, s.Add([]byte(`{"title": "a", "severity": "low"}`)))
	assert.Error(t, s.Add([]byte(`nope`)))

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []compliance.Record{
		{Title: "a", Severity: "low"},
		{Title: "b", Severity: "high", Cause: "c", Description: "d"},
	}, s.All())
}
