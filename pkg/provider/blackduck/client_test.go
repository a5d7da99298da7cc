package blackduck_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudesh1611/scanreport/pkg/provider/blackduck"
)

type fakeServer struct {
	authCalls     atomic.Int32
	guidancePaths []string
	authStatus    int
	guidance      string
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/tokens/authenticate":
		s.authCalls.Add(1)
		if r.Header.Get("Authorization") != "token secret" || s.authStatus != 0 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"bearerToken": "bearer-1", "expiresInMilliseconds": 3600000}`))
	case r.Method == http.MethodGet:
		if r.Header.Get("Authorization") != "Bearer bearer-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		s.guidancePaths = append(s.guidancePaths, r.URL.Path)
		if s.guidance == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(s.guidance))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newClient(t *testing.T, url string) *blackduck.Client {
	logger, _ := testLogger(t)
	return blackduck.NewClient(context.Background(), url, "secret",
		blackduck.WithHTTPClient(blackduck.NewHTTPClient(5*time.Second, false)),
		blackduck.WithClientLogger(logger),
	)
}

func TestClient_UpgradeGuidance(t *testing.T) {
	tests := []struct {
		name     string
		ref      blackduck.ComponentRef
		guidance string
		want     string
		wantPath string
	}{
		{
			name:     "both terms",
			ref:      blackduck.ComponentRef{ComponentID: "C1", ComponentVersionID: "V1", OriginID: "O1"},
			guidance: `{"shortTerm": {"versionName": "1.1.1k"}, "longTerm": {"versionName": "3.0.0"}}`,
			want:     "Short Term: 1.1.1k,Long Term: 3.0.0",
			wantPath: "/api/components/C1/versions/V1/origins/O1/upgrade-guidance",
		},
		{
			name:     "origin name preferred",
			ref:      blackduck.ComponentRef{ComponentID: "C1", ComponentVersionID: "V1", OriginID: "O1"},
			guidance: `{"shortTerm": {"versionName": "1.1.1k", "originName": "1.1.1k-1+deb10"}}`,
			want:     "Short Term: 1.1.1k-1+deb10,",
			wantPath: "/api/components/C1/versions/V1/origins/O1/upgrade-guidance",
		},
		{
			name:     "no origin",
			ref:      blackduck.ComponentRef{ComponentID: "C3", ComponentVersionID: "V3"},
			guidance: `{"longTerm": {"versionName": "1.36"}}`,
			want:     "Long Term: 1.36",
			wantPath: "/api/components/C3/versions/V3/upgrade-guidance",
		},
		{
			name:     "not found",
			ref:      blackduck.ComponentRef{ComponentID: "C4", ComponentVersionID: "V4"},
			want:     "",
			wantPath: "/api/components/C4/versions/V4/upgrade-guidance",
		},
		{
			name:     "broken body",
			ref:      blackduck.ComponentRef{ComponentID: "C5", ComponentVersionID: "V5"},
			guidance: `{"shortTerm": `,
			want:     "",
			wantPath: "/api/components/C5/versions/V5/upgrade-guidance",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeServer{guidance: tt.guidance}
			ts := httptest.NewServer(fs)
			defer ts.Close()

			got := newClient(t, ts.URL+"/").UpgradeGuidance(context.Background(), tt.ref)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, []string{tt.wantPath}, fs.guidancePaths)
		})
	}
}

func TestClient_TokenReuse(t *testing.T) {
	fs := &fakeServer{guidance: `{"longTerm": {"versionName": "2.0"}}`}
	ts := httptest.NewServer(fs)
	defer ts.Close()

	c := newClient(t, ts.URL)
	ref := blackduck.ComponentRef{ComponentID: "C1", ComponentVersionID: "V1"}
	for i := 0; i < 3; i++ {
		require.Equal(t, "Long Term: 2.0", c.UpgradeGuidance(context.Background(), ref))
	}
	assert.EqualValues(t, 1, fs.authCalls.Load())
	assert.Len(t, fs.guidancePaths, 3)
}

func TestClient_AuthenticationFailure(t *testing.T) {
	fs := &fakeServer{authStatus: http.StatusUnauthorized, guidance: `{"longTerm": {"versionName": "2.0"}}`}
	ts := httptest.NewServer(fs)
	defer ts.Close()

	got := newClient(t, ts.URL).UpgradeGuidance(context.Background(),
		blackduck.ComponentRef{ComponentID: "C1", ComponentVersionID: "V1"})
	assert.Equal(t, "", got)
	assert.Empty(t, fs.guidancePaths)
}
