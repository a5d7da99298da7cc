package blackduck_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudesh1611/scanreport/pkg/provider/blackduck"
)

func TestParseHref(t *testing.T) {
	tests := []struct {
		name    string
		href    string
		want    blackduck.ComponentRef
		wantErr error
	}{
		{
			name: "with origin",
			href: "https://bd.example.com/api/components/C1/versions/V1/origins/O1/vulnerabilities",
			want: blackduck.ComponentRef{ComponentID: "C1", ComponentVersionID: "V1", OriginID: "O1"},
		},
		{
			name: "project scoped with origin",
			href: "https://bd.example.com/api/projects/P1/versions/PV1/components/C1/versions/V1/origins/O1",
			want: blackduck.ComponentRef{ComponentID: "C1", ComponentVersionID: "V1", OriginID: "O1"},
		},
		{
			name: "without origin",
			href: "https://bd.example.com/api/components/C1/versions/V1",
			want: blackduck.ComponentRef{ComponentID: "C1", ComponentVersionID: "V1"},
		},
		{
			name: "surrounding whitespace",
			href: "  https://bd.example.com/api/components/C1/versions/V1/origins/O1  ",
			want: blackduck.ComponentRef{ComponentID: "C1", ComponentVersionID: "V1", OriginID: "O1"},
		},
		{
			name:    "no components segment",
			href:    "https://bd.example.com/api/projects/P1",
			wantErr: blackduck.ErrMalformedHref,
		},
		{
			name:    "empty component id",
			href:    "https://bd.example.com/api/components//versions/V1",
			wantErr: blackduck.ErrMalformedHref,
		},
		{
			name:    "empty",
			href:    "",
			wantErr: blackduck.ErrMalformedHref,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := blackduck.ParseHref(tt.href)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
